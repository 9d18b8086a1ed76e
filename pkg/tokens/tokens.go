// Package tokens estimates how many tokens a text costs a model. The counts
// are informational, nothing is truncated or rejected based on them.
package tokens

import (
	"github.com/go-go-golems/codechat/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"
)

type Counter struct {
	codec tokenizer.Codec
}

// NewCounter picks the codec of model, falling back to cl100k_base for
// models the tokenizer does not know.
func NewCounter(model string) (*Counter, error) {
	if model != "" {
		c, err := tokenizer.ForModel(tokenizer.Model(model))
		if err == nil {
			return &Counter{codec: c}, nil
		}
	}
	c, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, errors.Wrap(err, "could not create tokenizer")
	}
	return &Counter{codec: c}, nil
}

func (c *Counter) Count(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return 0, errors.Wrap(err, "could not encode text")
	}
	return len(ids), nil
}

// CountMessages sums the content tokens of messages. Per-message overhead of
// the chat format is not included.
func (c *Counter) CountMessages(messages []conversation.Message) (int, error) {
	total := 0
	for _, m := range messages {
		n, err := c.Count(m.Content)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
