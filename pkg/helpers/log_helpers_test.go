package helpers

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestWatermillZerologAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)
	adapter := NewWatermill(logger).With(watermill.LogFields{"topic": "chat"})

	adapter.Info("subscribed", nil)
	adapter.Debug("noise", nil)
	assert.Empty(t, buf.String())

	adapter.Error("publish failed", errors.New("closed"), watermill.LogFields{"message_uuid": "1"})
	out := buf.String()
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, `"component":"watermill"`)
	assert.Contains(t, out, `"topic":"chat"`)
	assert.Contains(t, out, `"message_uuid":"1"`)
	assert.Contains(t, out, `"error":"closed"`)
}
