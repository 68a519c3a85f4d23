// Package gateway implements the outbound HTTP client for the Gupshup
// WhatsApp API: one operation per outbound content kind, all funneled
// through a single form-encoded POST to the message-submission endpoint.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAPIURL is Gupshup's production API base.
const DefaultAPIURL = "https://api.gupshup.io/sm/api/v1"

// DefaultTemplateLanguage is used when a template send does not name a
// language tag.
const DefaultTemplateLanguage = "pt_BR"

// Config holds the per-channel credentials. Clients are cheap value holders
// constructed per request path; they carry no mutable state and may not be
// shared across channels.
type Config struct {
	APIURL      string // defaults to DefaultAPIURL
	APIKey      string
	AppName     string
	SourcePhone string
}

// Client issues HTTP calls against the Gupshup API for one channel.
// It performs no retries; callers decide whether a failure is retryable.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a client for one channel. A nil httpClient gets a
// 15s-timeout default.
func NewClient(cfg Config, logger *slog.Logger, httpClient *http.Client) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.With("component", "gupshup_client", "app", cfg.AppName),
	}
}

// SendText sends a plain text message. hsm marks the message as a
// pre-approved template body for delivery outside the service window.
func (c *Client) SendText(ctx context.Context, destination, text string, hsm bool) (*SendResult, error) {
	msg := textMessage{Type: "text", Text: text}
	if hsm {
		msg.IsHSM = "true"
	} else {
		msg.IsHSM = "false"
	}
	return c.send(ctx, destination, msg)
}

func (c *Client) SendImage(ctx context.Context, destination, mediaURL, caption string) (*SendResult, error) {
	return c.send(ctx, destination, mediaMessage{Type: "image", OriginalURL: mediaURL, Caption: caption})
}

func (c *Client) SendVideo(ctx context.Context, destination, mediaURL, caption string) (*SendResult, error) {
	return c.send(ctx, destination, mediaMessage{Type: "video", OriginalURL: mediaURL, Caption: caption})
}

func (c *Client) SendAudio(ctx context.Context, destination, mediaURL string) (*SendResult, error) {
	return c.send(ctx, destination, mediaMessage{Type: "audio", OriginalURL: mediaURL})
}

// SendDocument sends a file message; Gupshup's wire type for documents is "file".
func (c *Client) SendDocument(ctx context.Context, destination, mediaURL, filename, caption string) (*SendResult, error) {
	return c.send(ctx, destination, mediaMessage{Type: "file", OriginalURL: mediaURL, Filename: filename, Caption: caption})
}

func (c *Client) SendLocation(ctx context.Context, destination string, latitude, longitude float64, label, address string) (*SendResult, error) {
	return c.send(ctx, destination, locationMessage{
		Type:      "location",
		Latitude:  latitude,
		Longitude: longitude,
		Label:     label,
		Address:   address,
	})
}

// SendTemplate sends a pre-approved template (HSM). The API supports only
// positional placeholders: params are flattened, in slice order, into the
// template's body parameters. Callers must pass values in the template's
// declared slot order; a misordered slice silently mis-populates slots on
// the provider side.
func (c *Client) SendTemplate(ctx context.Context, destination, template, language string, params []string) (*SendResult, error) {
	if language == "" {
		language = DefaultTemplateLanguage
	}
	msg := templateMessage{
		IsHSM:    "true",
		Type:     "template",
		Template: template,
		Language: language,
	}
	if len(params) > 0 {
		body := templateComponent{Type: "body"}
		for _, value := range params {
			body.Parameters = append(body.Parameters, templateParam{Type: "text", Text: value})
		}
		msg.Components = []templateComponent{body}
	}
	return c.send(ctx, destination, msg)
}

// send serializes the composite payload and POSTs it form-encoded to /msg.
func (c *Client) send(ctx context.Context, destination string, message any) (*SendResult, error) {
	msgJSON, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("marshal gupshup message: %w", err)
	}

	form := url.Values{}
	form.Set("channel", "whatsapp")
	form.Set("source", c.cfg.SourcePhone)
	form.Set("destination", destination)
	if c.cfg.AppName != "" {
		form.Set("src.name", c.cfg.AppName)
	}
	form.Set("message", string(msgJSON))

	status, body, err := c.postForm(ctx, c.cfg.APIURL+"/msg", form)
	if err != nil {
		return nil, err
	}

	var resp sendResponse
	if unmarshalErr := json.Unmarshal(body, &resp); unmarshalErr != nil && status < 300 {
		c.logger.WarnContext(ctx, "unparseable gupshup send response", "status_code", status, "body", truncate(body))
		return nil, fmt.Errorf("decode gupshup send response: %w", unmarshalErr)
	}

	if status >= 300 || resp.Status != "submitted" {
		perr := &ProviderError{HTTPStatus: status, Message: resp.Message}
		if resp.Error != nil {
			perr.Code = resp.Error.Code
			if perr.Message == "" {
				perr.Message = resp.Error.Message
			}
		}
		if perr.Message == "" {
			perr.Message = truncate(body)
		}
		c.logger.WarnContext(ctx, "gupshup send rejected",
			"status_code", status, "error_code", perr.Code, "error_message", perr.Message)
		return nil, perr
	}

	c.logger.InfoContext(ctx, "gupshup message submitted",
		"destination", destination, "provider_message_id", resp.MessageID)
	return &SendResult{Status: resp.Status, MessageID: resp.MessageID}, nil
}

// ListTemplates returns the approved templates of the channel's app.
func (c *Client) ListTemplates(ctx context.Context) ([]Template, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/template/list/%s", c.cfg.APIURL, c.cfg.AppName))
	if err != nil {
		return nil, err
	}
	var resp struct {
		Templates []Template `json:"templates"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode template list: %w", err)
	}
	return resp.Templates, nil
}

// ListOptInUsers returns the users who opted in to the channel's app.
func (c *Client) ListOptInUsers(ctx context.Context) ([]OptInUser, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/users/%s", c.cfg.APIURL, c.cfg.AppName))
	if err != nil {
		return nil, err
	}
	var resp struct {
		Users []OptInUser `json:"users"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode opt-in user list: %w", err)
	}
	return resp.Users, nil
}

// OptIn registers a phone number for business-initiated messaging. The
// endpoint returns no structured body; a 2xx is success.
func (c *Client) OptIn(ctx context.Context, phone string) error {
	form := url.Values{}
	form.Set("user", phone)
	status, body, err := c.postForm(ctx, fmt.Sprintf("%s/app/opt/in/%s", c.cfg.APIURL, c.cfg.AppName), form)
	if err != nil {
		return err
	}
	if status >= 300 {
		return &ProviderError{HTTPStatus: status, Message: truncate(body)}
	}
	c.logger.InfoContext(ctx, "gupshup opt-in registered", "phone", phone)
	return nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("build gupshup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(ctx, req)
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build gupshup request: %w", err)
	}
	status, body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, &ProviderError{HTTPStatus: status, Message: truncate(body)}
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, req *http.Request) (int, []byte, error) {
	req.Header.Set("apikey", c.cfg.APIKey)

	c.logger.DebugContext(ctx, "gupshup request", "method", req.Method, "url", req.URL.Path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("gupshup request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read gupshup response: %w", err)
	}
	c.logger.DebugContext(ctx, "gupshup response", "status_code", resp.StatusCode)
	return resp.StatusCode, body, nil
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
