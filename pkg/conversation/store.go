// Package conversation holds the chat transcript of a single session.
//
// The transcript is an ordered list of turns. User and assistant turns form the
// dialogue, system turns carry attached source files. Turns are only ever
// appended or removed; nothing is reordered or edited in place, and
// AsRequestMessages projects the transcript verbatim, so attachments stay
// interleaved wherever they were added.
package conversation

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Store struct {
	mu     sync.RWMutex
	t      transcript
	logger zerolog.Logger
}

type StoreOption func(*Store)

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithTurns seeds the store, mostly useful in tests.
func WithTurns(turns ...Turn) StoreOption {
	return func(s *Store) {
		s.t.turns = append(s.t.turns, turns...)
	}
}

func NewStore(options ...StoreOption) *Store {
	ret := &Store{
		logger: log.Logger,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Apply runs a single mutation under the write lock and returns the number of
// turns it removed.
func (s *Store) Apply(m Mutation) (int, error) {
	if m == nil {
		return 0, errors.New("mutation is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.t.removed = 0
	before := len(s.t.turns)
	if err := m.Apply(&s.t); err != nil {
		return 0, errors.Wrapf(err, "mutation %s failed", m.Name())
	}
	s.logger.Debug().
		Str("mutation", m.Name()).
		Int("before", before).
		Int("after", len(s.t.turns)).
		Msg("transcript mutated")
	return s.t.removed, nil
}

func (s *Store) mustApply(m Mutation) int {
	n, err := s.Apply(m)
	if err != nil {
		// only reachable with an invalid role, which the exported mutators never build
		s.logger.Error().Err(err).Str("mutation", m.Name()).Msg("could not apply mutation")
	}
	return n
}

func (s *Store) AppendUser(text string) {
	s.mustApply(MutateAppendUser(text))
}

func (s *Store) AppendAssistant(text string) {
	s.mustApply(MutateAppendAssistant(text))
}

// AttachFile appends a system turn holding content, formatted as a fenced
// "Code attachment" block. Repeated calls with the same fileName accumulate.
func (s *Store) AttachFile(fileName string, content string) {
	s.mustApply(MutateAttachFile(fileName, "", content))
}

// AttachFileWithType is AttachFile that also records the file type for the
// AttachedFiles view. The file type is never sent to the model.
func (s *Store) AttachFileWithType(fileName string, fileType string, content string) {
	s.mustApply(MutateAttachFile(fileName, fileType, content))
}

// UpsertFile replaces the attachments for fileName with a single new one,
// appended at the end. It returns the number of turns replaced.
func (s *Store) UpsertFile(fileName string, fileType string, content string) int {
	return s.mustApply(MutateUpsertFile(fileName, fileType, content))
}

// RemoveFile removes every attachment turn for fileName and returns how many
// were removed. Removing an unknown file is a no-op.
func (s *Store) RemoveFile(fileName string) int {
	return s.mustApply(MutateRemoveFile(fileName))
}

// ClearContext removes all system turns and keeps the dialogue.
func (s *Store) ClearContext() int {
	return s.mustApply(MutateClearContext())
}

func (s *Store) ClearAll() {
	s.mustApply(MutateClearAll())
}

// AsRequestMessages returns the transcript in storage order, unfiltered.
func (s *Store) AsRequestMessages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret := make([]Message, 0, len(s.t.turns))
	for _, t := range s.t.turns {
		ret = append(ret, t.Message())
	}
	return ret
}

// Turns returns a copy of the transcript.
func (s *Store) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret := make([]Turn, len(s.t.turns))
	copy(ret, s.t.turns)
	return ret
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.t.turns)
}

// AttachedFile is the UI-facing view of an attachment.
type AttachedFile struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
}

// AttachedFiles lists the attached files, one entry per file name, in the
// order they were first attached.
func (s *Store) AttachedFiles() []AttachedFile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[string]bool{}
	ret := []AttachedFile{}
	for _, t := range s.t.turns {
		if t.Role != RoleSystem || t.FileName == "" || seen[t.FileName] {
			continue
		}
		seen[t.FileName] = true
		ret = append(ret, AttachedFile{FileName: t.FileName, FileType: t.FileType})
	}
	return ret
}

// HasFile reports whether at least one attachment turn exists for fileName.
func (s *Store) HasFile(fileName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.t.turns {
		if t.IsAttachmentFor(fileName) {
			return true
		}
	}
	return false
}
