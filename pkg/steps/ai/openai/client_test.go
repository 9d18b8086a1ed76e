package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-go-golems/codechat/pkg/conversation"
	"github.com/go-go-golems/codechat/pkg/steps"
	"github.com/go-go-golems/codechat/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	cs := settings.NewClientSettings()
	cs.BaseURL = &server.URL
	return NewClient(cs, WithLogger(zerolog.Nop())), &hits
}

func testRequest() Request {
	return Request{
		Messages: []conversation.Message{
			{Role: conversation.RoleSystem, Content: conversation.FormatAttachment("a.py", "print(1)")},
			{Role: conversation.RoleUser, Content: "what does this do?"},
		},
		APIKey:    "sk-test",
		Model:     "gpt-4o-mini",
		MaxTokens: 128,
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestCompleteSuccess(t *testing.T) {
	var got capturedRequest
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		writeJSON(w, http.StatusOK, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "It prints 1."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 4, "total_tokens": 14}
		}`)
	})

	reply, err := c.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "It prints 1.", reply)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 128, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "Code attachment - a.py:\n```\nprint(1)\n```", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestCompleteUnauthorizedCarriesUpstreamMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"error":{"message":"invalid_api_key"}}`)
	})

	_, err := c.Complete(context.Background(), testRequest())
	require.Error(t, err)

	var apiErr *steps.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid_api_key", apiErr.Message)
	assert.Contains(t, err.Error(), "invalid_api_key")
}

func TestCompleteServerErrorWithoutPayload(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})

	_, err := c.Complete(context.Background(), testRequest())
	var apiErr *steps.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.NotEmpty(t, apiErr.Message)
}

func TestCompleteEmptyChoicesIsInvalidResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id": "chatcmpl-1", "object": "chat.completion", "choices": []}`)
	})

	_, err := c.Complete(context.Background(), testRequest())
	var invalid *steps.InvalidResponseError
	require.True(t, errors.As(err, &invalid))

	var apiErr *steps.APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestCompleteMissingChoicesIsInvalidResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id": "chatcmpl-1"}`)
	})

	_, err := c.Complete(context.Background(), testRequest())
	var invalid *steps.InvalidResponseError
	require.True(t, errors.As(err, &invalid))
}

func TestCompleteMissingAPIKeyDoesNotCallEndpoint(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("endpoint should not be called")
	})

	req := testRequest()
	req.APIKey = "  "
	_, err := c.Complete(context.Background(), req)
	require.ErrorIs(t, err, steps.ErrMissingClientAPIKey)
	assert.True(t, steps.IsConfigurationError(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestCompleteRequiresModelAndMessages(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	req := testRequest()
	req.Model = ""
	_, err := c.Complete(context.Background(), req)
	require.ErrorIs(t, err, steps.ErrMissingModel)

	req = testRequest()
	req.Messages = nil
	_, err = c.Complete(context.Background(), req)
	require.ErrorIs(t, err, steps.ErrNoMessages)

	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestCompleteTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	cs := settings.NewClientSettings()
	cs.BaseURL = &url
	c := NewClient(cs, WithLogger(zerolog.Nop()))

	_, err := c.Complete(context.Background(), testRequest())
	var apiErr *steps.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 0, apiErr.StatusCode)
	assert.NotEmpty(t, apiErr.Message)
}

func TestConvertMessagesRejectsUnknownRole(t *testing.T) {
	_, err := ConvertMessages([]conversation.Message{{Role: "tool", Content: "x"}})
	require.Error(t, err)
}

func TestNewRequestFromSettings(t *testing.T) {
	ss := settings.NewStepSettings()
	key := "sk-from-settings"
	ss.Client.APIKey = &key

	req := NewRequest(ss, []conversation.Message{{Role: conversation.RoleUser, Content: "hi"}})
	assert.Equal(t, "sk-from-settings", req.APIKey)
	assert.Equal(t, settings.DefaultEngine, req.Model)
	assert.Equal(t, settings.DefaultMaxResponseTokens, req.MaxTokens)
	assert.Len(t, req.Messages, 1)
}
