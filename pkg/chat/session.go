package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/go-go-golems/codechat/pkg/attach"
	"github.com/go-go-golems/codechat/pkg/conversation"
	"github.com/go-go-golems/codechat/pkg/events"
	"github.com/go-go-golems/codechat/pkg/steps"
	"github.com/go-go-golems/codechat/pkg/steps/ai/openai"
	"github.com/go-go-golems/codechat/pkg/steps/ai/settings"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

var (
	ErrAskInFlight        = errors.New("a question is already being answered, wait for the reply before asking again")
	ErrAttachNotSupported = errors.New("attaching files is not supported by this session")
	ErrClearedWhileAsking = errors.New("conversation was cleared while waiting for the reply")
)

// Session translates UI actions into transcript mutations and completion
// calls. Each handled action produces exactly one outbound event.
type Session struct {
	ID string

	store     *conversation.Store
	completer openai.Completer
	resolver  attach.Resolver
	publisher events.EventPublisher
	settings  *settings.StepSettings

	// inFlight admits a single outstanding completion call.
	inFlight *semaphore.Weighted
	logger   zerolog.Logger

	// generation counts ClearConversation actions. A reply is only appended
	// if no clear happened since its question was asked.
	mu         sync.Mutex
	generation uint64
}

type SessionOption func(*Session)

func WithLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

func WithResolver(resolver attach.Resolver) SessionOption {
	return func(s *Session) {
		s.resolver = resolver
	}
}

func WithStore(store *conversation.Store) SessionOption {
	return func(s *Session) {
		s.store = store
	}
}

func WithID(id string) SessionOption {
	return func(s *Session) {
		s.ID = id
	}
}

func NewSession(
	stepSettings *settings.StepSettings,
	completer openai.Completer,
	publisher events.EventPublisher,
	options ...SessionOption,
) *Session {
	if stepSettings == nil {
		stepSettings = settings.NewStepSettings()
	}
	ret := &Session{
		ID:        uuid.NewString(),
		completer: completer,
		publisher: publisher,
		// later changes to the caller's settings do not leak into the session
		settings:  stepSettings.Clone(),
		inFlight:  semaphore.NewWeighted(1),
		logger:    log.Logger,
	}
	for _, option := range options {
		option(ret)
	}
	ret.logger = ret.logger.With().Str("session_id", ret.ID).Logger()
	if ret.store == nil {
		ret.store = conversation.NewStore(conversation.WithLogger(ret.logger))
	}
	return ret
}

func (s *Session) Store() *conversation.Store {
	return s.store
}

func (s *Session) AttachedFiles() []conversation.AttachedFile {
	return s.store.AttachedFiles()
}

// Handle runs a single action. Failures are published as an error event and
// also returned, so callers that only care about the outcome can check it.
func (s *Session) Handle(ctx context.Context, a Action) error {
	if a == nil {
		return s.fail(errors.New("action is nil"))
	}
	s.logger.Debug().Str("action", string(a.Kind())).Msg("handling action")

	if err := a.Validate(); err != nil {
		return s.fail(err)
	}

	switch a_ := a.(type) {
	case AskQuestion:
		return s.ask(ctx, a_.Text)
	case ClearConversation:
		s.mu.Lock()
		s.store.ClearAll()
		s.generation++
		s.mu.Unlock()
		s.publish(events.NewClearEvent())
	case AttachCode:
		return s.attach(ctx, a_)
	case RemoveFile:
		n := s.store.RemoveFile(a_.FileName)
		s.logger.Debug().Str("file_name", a_.FileName).Int("removed", n).Msg("removed file")
		s.publish(events.NewFileRemovedEvent(a_.FileName))
	case ClearContext:
		n := s.store.ClearContext()
		s.logger.Debug().Int("removed", n).Msg("cleared context")
		s.publish(events.NewContextClearedEvent())
	default:
		return s.fail(errors.Errorf("unsupported action %s", a.Kind()))
	}
	return nil
}

// HandleJSON decodes a JSON action and handles it. Decoding errors are
// reported like any other failure.
func (s *Session) HandleJSON(ctx context.Context, b []byte) error {
	a, err := DecodeAction(b)
	if err != nil {
		return s.fail(err)
	}
	return s.Handle(ctx, a)
}

// Report publishes err as an error event, for failures that happen outside of
// an action, like a line that could not be read.
func (s *Session) Report(err error) error {
	return s.fail(err)
}

func (s *Session) ask(ctx context.Context, text string) error {
	if !s.inFlight.TryAcquire(1) {
		return s.fail(ErrAskInFlight)
	}
	defer s.inFlight.Release(1)

	// The user turn stays in the transcript whatever happens next, so the
	// question can be resent once the problem is fixed.
	s.mu.Lock()
	s.store.AppendUser(text)
	generation := s.generation
	s.mu.Unlock()

	if s.settings.Client.GetAPIKey() == "" {
		return s.fail(steps.ErrMissingClientAPIKey)
	}
	if s.completer == nil {
		return s.fail(steps.ErrMissingClientSettings)
	}

	req := openai.NewRequest(s.settings, s.store.AsRequestMessages())
	reply, err := s.completer.Complete(ctx, req)
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		s.logger.Debug().Int("reply_length", len(reply)).Msg("dropping reply to a cleared conversation")
		return s.fail(ErrClearedWhileAsking)
	}
	s.store.AppendAssistant(reply)
	s.mu.Unlock()

	s.publish(events.NewResponseEvent(reply))
	return nil
}

func (s *Session) attach(ctx context.Context, a AttachCode) error {
	a.FileName = strings.TrimSpace(a.FileName)

	var f *attach.File
	if a.IsInline() {
		if s.settings.Attach != nil && s.settings.Attach.MaxSize > 0 && int64(len(a.Content)) > s.settings.Attach.MaxSize {
			return s.fail(errors.Errorf("%s is %d bytes, larger than the %d bytes attachment limit",
				a.FileName, len(a.Content), s.settings.Attach.MaxSize))
		}
		fileType := a.FileType
		if fileType == "" {
			fileType = attach.FileTypeFromPath(a.FileName)
		}
		f = &attach.File{
			FileName: a.FileName,
			FileType: fileType,
			Content:  a.Content,
		}
	} else {
		if s.resolver == nil {
			return s.fail(ErrAttachNotSupported)
		}
		var err error
		f, err = s.resolver.Resolve(ctx, a.Path)
		if err != nil {
			return s.fail(err)
		}
	}

	if s.settings.Attach != nil && s.settings.Attach.Mode == settings.AttachModeUpsert {
		n := s.store.UpsertFile(f.FileName, f.FileType, f.Content)
		s.logger.Debug().Str("file_name", f.FileName).Int("replaced", n).Msg("upserted file")
	} else {
		s.store.AttachFileWithType(f.FileName, f.FileType, f.Content)
	}

	s.publish(events.NewCodeAttachedEvent(f.FileName, f.FileType, f.Content))
	return nil
}

func (s *Session) fail(err error) error {
	ev := s.logger.Warn().Err(err)
	if steps.IsConfigurationError(err) {
		ev = ev.Bool("configuration", true)
	}
	ev.Msg("action failed")
	s.publish(events.NewErrorEvent(err))
	return err
}

func (s *Session) publish(e events.Event) {
	if s.publisher == nil {
		return
	}
	if tagger, ok := e.(interface{ WithSessionID(string) }); ok {
		tagger.WithSessionID(s.ID)
	}
	if err := s.publisher.Publish(e); err != nil {
		s.logger.Warn().Err(err).Str("event", string(e.Type())).Msg("failed to publish event")
	}
}
