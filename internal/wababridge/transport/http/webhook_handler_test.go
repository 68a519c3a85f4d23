package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/omnidesk/wababridge/internal/wababridge/domain"
)

// --- Mocks ---

type MockChannelRepository struct {
	mock.Mock
}

func (m *MockChannelRepository) GetByWebhookToken(ctx context.Context, token string) (*domain.Channel, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Channel), args.Error(1)
}

func (m *MockChannelRepository) GetByID(ctx context.Context, id int64) (*domain.Channel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Channel), args.Error(1)
}

type MockDispatcher struct {
	mock.Mock
	done chan struct{}
}

func (m *MockDispatcher) Dispatch(ctx context.Context, channel *domain.Channel, env *domain.WebhookEnvelope) error {
	args := m.Called(ctx, channel, env)
	if m.done != nil {
		close(m.done)
	}
	return args.Error(0)
}

func setupWebhookTest(t *testing.T) (*chi.Mux, *MockChannelRepository, *MockDispatcher) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	channels := new(MockChannelRepository)
	dispatcher := new(MockDispatcher)

	router := chi.NewRouter()
	NewWebhookHandler(channels, dispatcher, logger).RegisterRoutes(router)
	return router, channels, dispatcher
}

// --- Tests ---

func TestWebhookHandler_Verify(t *testing.T) {
	router, channels, _ := setupWebhookTest(t)
	channel := &domain.Channel{ID: 1, Name: "Support", TenantID: 10}

	t.Run("echoes the challenge verbatim", func(t *testing.T) {
		channels.On("GetByWebhookToken", mock.Anything, "tok-1").Return(channel, nil).Once()

		req := httptest.NewRequest("GET", "/wabahooks/gupshup/verify/tok-1?hub.challenge=challenge-abc", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "challenge-abc", rec.Body.String())
	})

	t.Run("verifies without a challenge", func(t *testing.T) {
		channels.On("GetByWebhookToken", mock.Anything, "tok-1").Return(channel, nil).Once()

		req := httptest.NewRequest("GET", "/wabahooks/gupshup/verify/tok-1", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "webhook verified")
	})

	t.Run("unknown token is forbidden", func(t *testing.T) {
		channels.On("GetByWebhookToken", mock.Anything, "bad-token").
			Return(nil, domain.ErrChannelNotFound).Once()

		req := httptest.NewRequest("GET", "/wabahooks/gupshup/verify/bad-token?hub.challenge=x", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestWebhookHandler_Status(t *testing.T) {
	router, channels, _ := setupWebhookTest(t)

	channel := &domain.Channel{ID: 1, Name: "Support", Number: "5511988887777", Status: "active"}
	channels.On("GetByWebhookToken", mock.Anything, "tok-1").Return(channel, nil)

	req := httptest.NewRequest("GET", "/wabahooks/gupshup/status/tok-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "active")
	assert.Contains(t, rec.Body.String(), "5511988887777")
}

func TestWebhookHandler_Receive_AcksAndProcesses(t *testing.T) {
	router, channels, dispatcher := setupWebhookTest(t)
	channel := &domain.Channel{ID: 1, TenantID: 10}
	dispatcher.done = make(chan struct{})

	channels.On("GetByWebhookToken", mock.Anything, "tok-1").Return(channel, nil)
	dispatcher.On("Dispatch", mock.Anything, channel, mock.MatchedBy(func(env *domain.WebhookEnvelope) bool {
		return env.Type == domain.EventTypeMessage && env.App == "test-app"
	})).Return(nil)

	body := `{"app":"test-app","type":"message","payload":{"id":"wamid-1","type":"text","text":"hi"}}`
	req := httptest.NewRequest("POST", "/wabahooks/gupshup/tok-1", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case <-dispatcher.done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher was not invoked after acknowledgment")
	}
	dispatcher.AssertExpectations(t)
}

func TestWebhookHandler_Receive_UnknownToken(t *testing.T) {
	router, channels, dispatcher := setupWebhookTest(t)

	channels.On("GetByWebhookToken", mock.Anything, "bad-token").
		Return(nil, domain.ErrChannelNotFound)

	req := httptest.NewRequest("POST", "/wabahooks/gupshup/bad-token", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookHandler_Receive_MalformedBodyStillAcked(t *testing.T) {
	router, channels, dispatcher := setupWebhookTest(t)
	channel := &domain.Channel{ID: 1, TenantID: 10}

	channels.On("GetByWebhookToken", mock.Anything, "tok-1").Return(channel, nil)

	req := httptest.NewRequest("POST", "/wabahooks/gupshup/tok-1", strings.NewReader("not-json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// The token resolved, so the provider gets its 200; the decode failure
	// is confined to background processing.
	assert.Equal(t, http.StatusOK, rec.Code)
	time.Sleep(50 * time.Millisecond)
	dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookHandler_Receive_ProcessingPanicIsConfined(t *testing.T) {
	router, channels, dispatcher := setupWebhookTest(t)
	channel := &domain.Channel{ID: 1, TenantID: 10}
	invoked := make(chan struct{})

	channels.On("GetByWebhookToken", mock.Anything, "tok-1").Return(channel, nil)
	dispatcher.On("Dispatch", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			close(invoked)
			panic("boom")
		}).Return(nil)

	body := `{"app":"test-app","type":"message","payload":{}}`
	req := httptest.NewRequest("POST", "/wabahooks/gupshup/tok-1", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	select {
	case <-invoked:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher was not invoked")
	}
}
