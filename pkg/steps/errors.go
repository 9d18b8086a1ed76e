package steps

import (
	"fmt"

	"github.com/pkg/errors"
)

// Configuration errors are raised before any request is attempted.
var (
	ErrMissingClientSettings = errors.New("missing client settings")
	ErrMissingClientAPIKey   = errors.New("missing API key: set openai-api-key in the config file or CODECHAT_OPENAI_API_KEY")
	ErrMissingModel          = errors.New("no model specified")
	ErrNoMessages            = errors.New("no messages to send")
)

// IsConfigurationError reports whether err stems from missing or invalid settings.
func IsConfigurationError(err error) bool {
	for _, e := range []error{ErrMissingClientSettings, ErrMissingClientAPIKey, ErrMissingModel} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// APIError is a failed call to the completion endpoint: transport failure,
// non-2xx status, or an error payload returned by the provider.
type APIError struct {
	// StatusCode is 0 when no HTTP response was received.
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("completion API error: %s", e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// InvalidResponseError is a successful response whose body does not have the
// expected shape, e.g. no choices.
type InvalidResponseError struct {
	Reason string
}

func (e *InvalidResponseError) Error() string {
	return "invalid completion response: " + e.Reason
}
