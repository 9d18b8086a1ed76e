package openai

import (
	"net/http"

	"github.com/go-go-golems/codechat/pkg/conversation"
	"github.com/go-go-golems/codechat/pkg/steps"
	"github.com/go-go-golems/codechat/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"
)

// MakeClient builds a go-openai client for a single call.
func MakeClient(clientSettings *settings.ClientSettings, apiKey string, httpClient *http.Client) *go_openai.Client {
	config := go_openai.DefaultConfig(apiKey)
	config.BaseURL = clientSettings.GetBaseURL()
	if clientSettings != nil && clientSettings.Organization != nil {
		config.OrgID = *clientSettings.Organization
	}
	if httpClient != nil {
		config.HTTPClient = httpClient
	}
	return go_openai.NewClientWithConfig(config)
}

func ConvertMessages(messages []conversation.Message) ([]go_openai.ChatCompletionMessage, error) {
	res := make([]go_openai.ChatCompletionMessage, len(messages))
	for i, message := range messages {
		switch message.Role {
		case conversation.RoleSystem:
		case conversation.RoleAssistant:
		case conversation.RoleUser:
		default:
			return nil, errors.Errorf("invalid role: %s (should be one of system, assistant, user)", message.Role)
		}
		res[i] = go_openai.ChatCompletionMessage{
			Role:    string(message.Role),
			Content: message.Content,
		}
	}

	return res, nil
}

// MakeCompletionRequest builds the {model, messages, max_tokens} body.
func MakeCompletionRequest(req Request) (*go_openai.ChatCompletionRequest, error) {
	msgs, err := ConvertMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	return &go_openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  msgs,
		MaxTokens: req.MaxTokens,
	}, nil
}

// mapError turns a go-openai error into an *steps.APIError, keeping the
// upstream message when the provider sent one.
func mapError(err error) error {
	var apiErr *go_openai.APIError
	if errors.As(err, &apiErr) {
		return &steps.APIError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}

	var reqErr *go_openai.RequestError
	if errors.As(err, &reqErr) {
		msg := reqErr.Error()
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &steps.APIError{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    msg,
			Err:        err,
		}
	}

	return &steps.APIError{
		Message: err.Error(),
		Err:     err,
	}
}
