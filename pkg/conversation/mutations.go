package conversation

import (
	"fmt"
)

// Mutation represents a deterministic change to the transcript.
type Mutation interface {
	Apply(s *transcript) error
	Name() string
}

type transcript struct {
	turns []Turn
	// removed counts the turns dropped by the last filtering mutation.
	removed int
}

type appendTurnMutation struct {
	turn Turn
}

func (m appendTurnMutation) Apply(t *transcript) error {
	if !m.turn.Role.IsValid() {
		return fmt.Errorf("unsupported role %q", m.turn.Role)
	}
	t.turns = append(t.turns, m.turn)
	return nil
}

func (m appendTurnMutation) Name() string { return "append_" + string(m.turn.Role) }

// MutateAppendUser appends a user turn. The text is not validated here.
func MutateAppendUser(text string) Mutation {
	return appendTurnMutation{turn: NewTurn(RoleUser, text)}
}

// MutateAppendAssistant appends an assistant turn.
func MutateAppendAssistant(text string) Mutation {
	return appendTurnMutation{turn: NewTurn(RoleAssistant, text)}
}

// MutateAttachFile appends a system turn for fileName, without checking for an
// existing attachment of the same name.
func MutateAttachFile(fileName string, fileType string, content string) Mutation {
	return appendTurnMutation{turn: NewAttachmentTurn(fileName, fileType, content)}
}

// filterMutation drops every turn for which drop returns true.
type filterMutation struct {
	name string
	drop func(Turn) bool
}

func (m filterMutation) Apply(t *transcript) error {
	kept := make([]Turn, 0, len(t.turns))
	for _, turn := range t.turns {
		if m.drop(turn) {
			continue
		}
		kept = append(kept, turn)
	}
	t.removed = len(t.turns) - len(kept)
	t.turns = kept
	return nil
}

func (m filterMutation) Name() string { return m.name }

// MutateRemoveFile removes every system turn attached for fileName.
func MutateRemoveFile(fileName string) Mutation {
	return filterMutation{
		name: "remove_file",
		drop: func(t Turn) bool { return t.IsAttachmentFor(fileName) },
	}
}

// MutateClearContext removes all system turns.
func MutateClearContext() Mutation {
	return filterMutation{
		name: "clear_context",
		drop: func(t Turn) bool { return t.Role == RoleSystem },
	}
}

// MutateClearAll empties the transcript.
func MutateClearAll() Mutation {
	return filterMutation{
		name: "clear_all",
		drop: func(Turn) bool { return true },
	}
}

type sequenceMutation struct {
	name string
	muts []Mutation
}

func (m sequenceMutation) Apply(t *transcript) error {
	total := 0
	for _, mut := range m.muts {
		t.removed = 0
		if err := mut.Apply(t); err != nil {
			return fmt.Errorf("%s: %w", mut.Name(), err)
		}
		total += t.removed
	}
	t.removed = total
	return nil
}

func (m sequenceMutation) Name() string { return m.name }

// MutateUpsertFile drops the existing attachments for fileName and appends a
// fresh one at the end of the transcript.
func MutateUpsertFile(fileName string, fileType string, content string) Mutation {
	return sequenceMutation{
		name: "upsert_file",
		muts: []Mutation{
			MutateRemoveFile(fileName),
			MutateAttachFile(fileName, fileType, content),
		},
	}
}
