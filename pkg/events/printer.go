package events

import (
	"bytes"
	"io"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
)

// JSONLinesPrinterFunc returns a router handler that writes every event
// payload to w as one line of JSON. Write errors are returned and the message
// is acked anyway, events are not redelivered.
func JSONLinesPrinterFunc(w io.Writer) func(msg *message.Message) error {
	var mu sync.Mutex

	return func(msg *message.Message) error {
		defer msg.Ack()

		mu.Lock()
		defer mu.Unlock()

		line := bytes.TrimRight(msg.Payload, "\n")
		if _, err := w.Write(append(line, '\n')); err != nil {
			return err
		}
		return nil
	}
}
