package openai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-go-golems/codechat/pkg/conversation"
	"github.com/go-go-golems/codechat/pkg/steps"
	"github.com/go-go-golems/codechat/pkg/steps/ai/settings"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Request is everything needed for one completion call.
type Request struct {
	Messages  []conversation.Message
	APIKey    string
	Model     string
	MaxTokens int
}

// NewRequest fills in the credentials and model parameters from ss.
func NewRequest(ss *settings.StepSettings, messages []conversation.Message) Request {
	return Request{
		Messages:  messages,
		APIKey:    ss.Client.GetAPIKey(),
		Model:     ss.Chat.GetEngine(),
		MaxTokens: ss.Chat.GetMaxResponseTokens(),
	}
}

// Completer sends a transcript to a chat-completion endpoint and returns the reply.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Client issues exactly one chat-completion request per Complete call. It
// does not retry and does not touch the conversation.
type Client struct {
	settings   *settings.ClientSettings
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ Completer = (*Client)(nil)

type ClientOption func(*Client)

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(clientSettings *settings.ClientSettings, options ...ClientOption) *Client {
	if clientSettings == nil {
		clientSettings = settings.NewClientSettings()
	}
	ret := &Client{
		settings: clientSettings,
		logger:   log.Logger,
	}
	for _, option := range options {
		option(ret)
	}
	if ret.httpClient == nil {
		if timeout := clientSettings.GetTimeout(); timeout > 0 {
			ret.httpClient = &http.Client{Timeout: timeout}
		}
	}
	return ret
}

func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return "", steps.ErrMissingClientAPIKey
	}
	if req.Model == "" {
		return "", steps.ErrMissingModel
	}
	if len(req.Messages) == 0 {
		return "", steps.ErrNoMessages
	}

	completionRequest, err := MakeCompletionRequest(req)
	if err != nil {
		return "", err
	}

	client := MakeClient(c.settings, req.APIKey, c.httpClient)

	start := time.Now()
	c.logger.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Int("max_tokens", req.MaxTokens).
		Str("base_url", c.settings.GetBaseURL()).
		Msg("sending chat completion request")

	resp, err := client.CreateChatCompletion(ctx, *completionRequest)
	if err != nil {
		mapped := mapError(err)
		c.logger.Warn().Err(mapped).Dur("elapsed", time.Since(start)).Msg("chat completion failed")
		return "", mapped
	}

	if len(resp.Choices) == 0 {
		return "", &steps.InvalidResponseError{Reason: "response contains no choices"}
	}

	c.logger.Debug().
		Str("id", resp.ID).
		Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Dur("elapsed", time.Since(start)).
		Msg("chat completion received")

	return resp.Choices[0].Message.Content, nil
}
