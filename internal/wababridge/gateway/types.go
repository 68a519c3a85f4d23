package gateway

import "fmt"

// SendResult is a successful submission. Gupshup acknowledges with
// status "submitted" and a provider-assigned message id that later
// message-event callbacks are keyed by.
type SendResult struct {
	Status    string
	MessageID string
}

// ProviderError is a rejection by the Gupshup API: either a non-2xx HTTP
// response or a 2xx response whose body carries status "error". It is
// distinct from transport-level failures so callers can tell a rejected
// send from a network problem.
type ProviderError struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gupshup: %s (code %s, http %d)", e.Message, e.Code, e.HTTPStatus)
	}
	return fmt.Sprintf("gupshup: %s (http %d)", e.Message, e.HTTPStatus)
}

// sendResponse is the wire shape of POST /msg responses.
type sendResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"messageId"`
	Message   string `json:"message"`
	Error     *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Template is one pre-approved template (HSM) as listed by the provider.
type Template struct {
	ElementName  string `json:"elementName"`
	LanguageCode string `json:"languageCode"`
	Category     string `json:"category"`
	TemplateType string `json:"templateType"`
	BodyText     string `json:"bodyText"`
	Status       string `json:"status"`
	CreatedOn    int64  `json:"createdOn"`
	ModifiedOn   int64  `json:"modifiedOn"`
}

// OptInUser is one opted-in user as listed by the provider.
type OptInUser struct {
	CountryCode          string `json:"countryCode"`
	Phone                string `json:"phone"`
	OptinStatus          string `json:"optinStatus"`
	OptinSource          string `json:"optinSource"`
	OptinTimeStamp       int64  `json:"optinTimeStamp"`
	LastMessageTimeStamp int64  `json:"lastMessageTimeStamp"`
}

// Outbound message shapes, serialized into the form field "message".

type textMessage struct {
	IsHSM string `json:"isHSM,omitempty"`
	Type  string `json:"type"`
	Text  string `json:"text"`
}

type mediaMessage struct {
	Type        string `json:"type"`
	OriginalURL string `json:"originalUrl"`
	PreviewURL  string `json:"previewUrl,omitempty"`
	Caption     string `json:"caption,omitempty"`
	Filename    string `json:"filename,omitempty"`
}

type locationMessage struct {
	Type      string  `json:"type"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Label     string  `json:"label,omitempty"`
	Address   string  `json:"address,omitempty"`
}

type templateMessage struct {
	IsHSM      string              `json:"isHSM"`
	Type       string              `json:"type"`
	Template   string              `json:"template"`
	Language   string              `json:"language,omitempty"`
	Components []templateComponent `json:"components,omitempty"`
}

type templateComponent struct {
	Type       string          `json:"type"`
	Parameters []templateParam `json:"parameters"`
}

type templateParam struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
