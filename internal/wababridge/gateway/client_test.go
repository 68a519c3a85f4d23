package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(serverURL string) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(Config{
		APIURL:      serverURL,
		APIKey:      "test-api-key",
		AppName:     "test-app",
		SourcePhone: "5511988887777",
	}, logger, nil)
}

func decodeForm(t *testing.T, r *http.Request) url.Values {
	t.Helper()
	bodyBytes, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	form, err := url.ParseQuery(string(bodyBytes))
	require.NoError(t, err)
	return form
}

func TestClient_SendText_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/msg", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("apikey"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		form := decodeForm(t, r)
		assert.Equal(t, "whatsapp", form.Get("channel"))
		assert.Equal(t, "5511988887777", form.Get("source"))
		assert.Equal(t, "5511999998888", form.Get("destination"))
		assert.Equal(t, "test-app", form.Get("src.name"))

		var msg map[string]any
		require.NoError(t, json.Unmarshal([]byte(form.Get("message")), &msg))
		assert.Equal(t, "text", msg["type"])
		assert.Equal(t, "hello there", msg["text"])
		assert.Equal(t, "false", msg["isHSM"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"submitted","messageId":"gs-msg-001"}`)
	}))
	defer server.Close()

	result, err := testClient(server.URL).SendText(context.Background(), "5511999998888", "hello there", false)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "submitted", result.Status)
	assert.Equal(t, "gs-msg-001", result.MessageID)
}

func TestClient_SendText_HSMFlag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		form := decodeForm(t, r)
		var msg map[string]any
		require.NoError(t, json.Unmarshal([]byte(form.Get("message")), &msg))
		assert.Equal(t, "true", msg["isHSM"])
		fmt.Fprint(w, `{"status":"submitted","messageId":"gs-msg-002"}`)
	}))
	defer server.Close()

	_, err := testClient(server.URL).SendText(context.Background(), "5511999998888", "window expired", true)
	require.NoError(t, err)
}

func TestClient_SendDocument_WireTypeIsFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		form := decodeForm(t, r)
		var msg map[string]any
		require.NoError(t, json.Unmarshal([]byte(form.Get("message")), &msg))
		assert.Equal(t, "file", msg["type"])
		assert.Equal(t, "https://cdn.example.com/report.pdf", msg["originalUrl"])
		assert.Equal(t, "report.pdf", msg["filename"])
		assert.Equal(t, "monthly report", msg["caption"])
		fmt.Fprint(w, `{"status":"submitted","messageId":"gs-msg-003"}`)
	}))
	defer server.Close()

	_, err := testClient(server.URL).SendDocument(context.Background(),
		"5511999998888", "https://cdn.example.com/report.pdf", "report.pdf", "monthly report")
	require.NoError(t, err)
}

func TestClient_SendTemplate_PositionalParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		form := decodeForm(t, r)

		var msg struct {
			IsHSM      string `json:"isHSM"`
			Type       string `json:"type"`
			Template   string `json:"template"`
			Language   string `json:"language"`
			Components []struct {
				Type       string `json:"type"`
				Parameters []struct {
					Type string `json:"type"`
					Text string `json:"text"`
				} `json:"parameters"`
			} `json:"components"`
		}
		require.NoError(t, json.Unmarshal([]byte(form.Get("message")), &msg))

		assert.Equal(t, "true", msg.IsHSM)
		assert.Equal(t, "template", msg.Type)
		assert.Equal(t, "appointment_reminder", msg.Template)
		assert.Equal(t, "pt_BR", msg.Language)

		require.Len(t, msg.Components, 1)
		assert.Equal(t, "body", msg.Components[0].Type)
		require.Len(t, msg.Components[0].Parameters, 2)
		assert.Equal(t, "text", msg.Components[0].Parameters[0].Type)
		assert.Equal(t, "Ana", msg.Components[0].Parameters[0].Text)
		assert.Equal(t, "10:00", msg.Components[0].Parameters[1].Text)

		fmt.Fprint(w, `{"status":"submitted","messageId":"gs-msg-004"}`)
	}))
	defer server.Close()

	_, err := testClient(server.URL).SendTemplate(context.Background(),
		"5511999998888", "appointment_reminder", "", []string{"Ana", "10:00"})
	require.NoError(t, err)
}

func TestClient_Send_ErrorStatusBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"error","message":"Invalid Destination"}`)
	}))
	defer server.Close()

	result, err := testClient(server.URL).SendText(context.Background(), "bad", "hi", false)
	require.Error(t, err)
	assert.Nil(t, result)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusOK, perr.HTTPStatus)
	assert.Equal(t, "Invalid Destination", perr.Message)
}

func TestClient_Send_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"status":"error","error":{"code":"401","message":"Authentication Failed"}}`)
	}))
	defer server.Close()

	_, err := testClient(server.URL).SendText(context.Background(), "5511999998888", "hi", false)
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusUnauthorized, perr.HTTPStatus)
	assert.Equal(t, "401", perr.Code)
	assert.Equal(t, "Authentication Failed", perr.Message)
}

func TestClient_Send_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := testClient(server.URL).SendText(context.Background(), "5511999998888", "hi", false)
	require.Error(t, err)

	var perr *ProviderError
	assert.False(t, errors.As(err, &perr), "transport failures must not map to ProviderError")
}

func TestClient_ListTemplates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/template/list/test-app", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("apikey"))
		fmt.Fprint(w, `{"status":"success","templates":[
			{"elementName":"welcome","languageCode":"pt_BR","status":"APPROVED","bodyText":"Ola {{1}}"},
			{"elementName":"invoice","languageCode":"en_US","status":"APPROVED"}
		]}`)
	}))
	defer server.Close()

	templates, err := testClient(server.URL).ListTemplates(context.Background())
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, "welcome", templates[0].ElementName)
	assert.Equal(t, "pt_BR", templates[0].LanguageCode)
	assert.Equal(t, "Ola {{1}}", templates[0].BodyText)
	assert.Equal(t, "invoice", templates[1].ElementName)
}

func TestClient_ListOptInUsers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/test-app", r.URL.Path)
		fmt.Fprint(w, `{"users":[{"countryCode":"55","phone":"5511999998888","optinStatus":"OPT_IN"}]}`)
	}))
	defer server.Close()

	users, err := testClient(server.URL).ListOptInUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "5511999998888", users[0].Phone)
	assert.Equal(t, "OPT_IN", users[0].OptinStatus)
}

func TestClient_OptIn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/app/opt/in/test-app", r.URL.Path)
		form := decodeForm(t, r)
		assert.Equal(t, "5511999998888", form.Get("user"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := testClient(server.URL).OptIn(context.Background(), "5511999998888")
	require.NoError(t, err)
}

func TestClient_OptIn_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "invalid phone")
	}))
	defer server.Close()

	err := testClient(server.URL).OptIn(context.Background(), "nope")
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusBadRequest, perr.HTTPStatus)
	assert.Contains(t, perr.Message, "invalid phone")
}
