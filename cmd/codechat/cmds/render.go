package cmds

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/codechat/pkg/events"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
)

// renderer prints session events for a human. Replies go to out, everything
// else to info.
type renderer struct {
	out  io.Writer
	info io.Writer
	md   *glamour.TermRenderer
}

var _ events.EventPublisher = (*renderer)(nil)

func newRenderer(out io.Writer, info io.Writer) *renderer {
	ret := &renderer{out: out, info: info}

	// only style markdown when a person is looking at it
	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		md, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			log.Warn().Err(err).Msg("Could not create markdown renderer")
		} else {
			ret.md = md
		}
	}

	return ret
}

func (r *renderer) markdown(s string) string {
	if r.md == nil {
		return s
	}
	styled, err := r.md.Render(s)
	if err != nil {
		log.Debug().Err(err).Msg("Could not render markdown")
		return s
	}
	return styled
}

// Publish lets the renderer stand in for a PublisherManager when no router
// is needed.
func (r *renderer) Publish(e events.Event) error {
	return r.Render(e)
}

func (r *renderer) Render(e events.Event) error {
	var err error
	switch e_ := e.(type) {
	case *events.EventResponse:
		_, err = fmt.Fprintln(r.out, r.markdown(e_.Content))
	case *events.EventError:
		_, err = fmt.Fprintf(r.info, "error: %s\n", e_.Content)
	case *events.EventCodeAttached:
		_, err = fmt.Fprintf(r.info, "attached %s (%s, %d bytes)\n", e_.FileName, e_.FileType, len(e_.Content))
	case *events.EventFileRemoved:
		_, err = fmt.Fprintf(r.info, "removed %s\n", e_.FileName)
	default:
		switch e.Type() {
		case events.EventTypeClear:
			_, err = fmt.Fprintln(r.info, "conversation cleared")
		case events.EventTypeContextCleared:
			_, err = fmt.Fprintln(r.info, "attachments cleared")
		default:
			log.Debug().Str("type", string(e.Type())).Msg("Ignoring event")
		}
	}
	return err
}
