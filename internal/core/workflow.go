package core

// workflow.go drives one ingestion run through its stages:
//
//	Idle → FileLoaded → ColumnsValidated → TypesValidated → ReadyToWrite → Writing → Completed
//	                                                                              ↘ Failed
//
// Every arrow is one explicit command. Step is the only transition function:
// it takes the current state by value and returns the next one. Nothing
// advances on its own. A mapping pass that leaves references unresolved
// keeps the run in TypesValidated so the reference data can be fixed and the
// mapping retried.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/procure/internal/frame"
	"github.com/JonMunkholm/procure/internal/logging"
	"github.com/JonMunkholm/procure/internal/store"
)

// Stage is a workflow position.
type Stage string

const (
	StageIdle             Stage = "idle"
	StageFileLoaded       Stage = "file_loaded"
	StageColumnsValidated Stage = "columns_validated"
	StageTypesValidated   Stage = "types_validated"
	StageReadyToWrite     Stage = "ready_to_write"
	StageWriting          Stage = "writing"
	StageCompleted        Stage = "completed"
	StageFailed           Stage = "failed"
)

// Terminal reports whether no command can leave the stage.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// CommandKind names a user command.
type CommandKind string

const (
	CmdLoad            CommandKind = "load"
	CmdValidateColumns CommandKind = "validate-columns"
	CmdValidateTypes   CommandKind = "validate-types"
	CmdMap             CommandKind = "map"
	CmdWrite           CommandKind = "write"
)

// ParseCommand accepts the commands a client may send after loading.
func ParseCommand(s string) (CommandKind, error) {
	switch CommandKind(s) {
	case CmdValidateColumns, CmdValidateTypes, CmdMap, CmdWrite:
		return CommandKind(s), nil
	}
	return "", fmt.Errorf("%w: unknown command %q", ErrInvalidTransition, s)
}

// Command is one user action. FileName and Data are used by CmdLoad only.
type Command struct {
	Kind     CommandKind
	FileName string
	Data     []byte
}

// Message levels.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Message is a human-readable note attached to a run.
type Message struct {
	Level string    `json:"level"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

// State is the whole of an ingestion run.
type State struct {
	ID        string         `json:"id"`
	Stage     Stage          `json:"stage"`
	FileName  string         `json:"file_name,omitempty"`
	Frame     *frame.Frame   `json:"frame,omitempty"`
	Preview   *frame.Frame   `json:"preview,omitempty"`
	Mapping   *MappingReport `json:"mapping,omitempty"`
	Write     *WriteResult   `json:"write,omitempty"`
	Messages  []Message      `json:"messages"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewState returns an Idle run.
func NewState(id string, now time.Time) State {
	return State{ID: id, Stage: StageIdle, Messages: []Message{}, CreatedAt: now, UpdatedAt: now}
}

// Deps are the collaborators a step may use.
type Deps struct {
	Store       store.Store
	References  []ReferenceTable
	Columns     []ColumnSpec
	Target      WriteTarget
	PreviewRows int
	Now         func() time.Time
}

var ErrInvalidTransition = errors.New("invalid workflow transition")

// allowed maps each command to the stage it must start from.
var allowed = map[CommandKind]Stage{
	CmdLoad:            StageIdle,
	CmdValidateColumns: StageFileLoaded,
	CmdValidateTypes:   StageColumnsValidated,
	CmdMap:             StageTypesValidated,
	CmdWrite:           StageReadyToWrite,
}

// NextCommand returns the command a client sends to move a run on from
// stage s. Idle and terminal stages have none.
func NextCommand(s Stage) (CommandKind, bool) {
	for kind, from := range allowed {
		if from == s && kind != CmdLoad {
			return kind, true
		}
	}
	return "", false
}

// Step applies cmd to s. A command issued from the wrong stage returns
// ErrInvalidTransition and s unchanged. Any other failure moves the run to
// Failed and returns the cause.
func Step(ctx context.Context, s State, cmd Command, deps Deps) (State, error) {
	from, ok := allowed[cmd.Kind]
	if !ok {
		return s, fmt.Errorf("%w: unknown command %q", ErrInvalidTransition, cmd.Kind)
	}
	if s.Stage != from && !(cmd.Kind == CmdWrite && s.Stage == StageWriting) {
		return s, fmt.Errorf("%w: cannot %s from stage %s", ErrInvalidTransition, cmd.Kind, s.Stage)
	}

	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	next := s
	next.Messages = append([]Message(nil), s.Messages...)
	log := logging.WithFields(ctx, "session_id", s.ID, "command", string(cmd.Kind))

	var err error
	switch cmd.Kind {
	case CmdLoad:
		err = stepLoad(&next, cmd, deps)
	case CmdValidateColumns:
		err = stepValidateColumns(&next, deps)
	case CmdValidateTypes:
		err = stepValidateTypes(&next, deps)
	case CmdMap:
		err = stepMap(ctx, &next, deps)
	case CmdWrite:
		err = stepWrite(ctx, &next, deps)
	}

	stamp := now()
	for i := len(s.Messages); i < len(next.Messages); i++ {
		next.Messages[i].At = stamp
	}
	next.UpdatedAt = stamp

	if err != nil {
		next.Stage = StageFailed
		next.Error = err.Error()
		next.Messages = append(next.Messages, Message{Level: LevelError, Text: err.Error(), At: stamp})
		log.Warn("workflow step failed", "from", s.Stage, "error", err)
		return next, err
	}
	log.Info("workflow step", "from", s.Stage, "to", next.Stage)
	return next, nil
}

// MarkWriting moves a ReadyToWrite run into Writing so observers can see a
// write loop is under way.
func MarkWriting(s State, now time.Time) (State, error) {
	if s.Stage != StageReadyToWrite {
		return s, fmt.Errorf("%w: cannot %s from stage %s", ErrInvalidTransition, CmdWrite, s.Stage)
	}
	s.Stage = StageWriting
	s.UpdatedAt = now
	return s, nil
}

func stepLoad(s *State, cmd Command, deps Deps) error {
	s.FileName = cmd.FileName
	f, err := frame.Read(cmd.FileName, bytes.NewReader(cmd.Data), frame.ReadOptions{Required: requiredNames(deps.Columns)})
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.FileName, err)
	}
	if f.Len() == 0 {
		return fmt.Errorf("%s: %w", cmd.FileName, ErrNoRows)
	}

	s.Frame = f
	s.Preview = f.Head(deps.PreviewRows)
	s.Stage = StageFileLoaded
	s.Messages = append(s.Messages, Message{
		Level: LevelInfo,
		Text:  fmt.Sprintf("Loaded %s: %d rows, %d columns.", cmd.FileName, f.Len(), len(f.Columns())),
	})
	return nil
}

func stepValidateColumns(s *State, deps Deps) error {
	if err := ValidateColumns(s.Frame, requiredNames(deps.Columns)); err != nil {
		return err
	}
	s.Stage = StageColumnsValidated
	s.Messages = append(s.Messages, Message{Level: LevelSuccess, Text: "All required columns are present."})
	return nil
}

func stepValidateTypes(s *State, deps Deps) error {
	f := s.Frame.Clone()
	if err := CoerceTypes(f, deps.Columns); err != nil {
		return err
	}
	s.Frame = f
	s.Preview = f.Head(deps.PreviewRows)
	s.Stage = StageTypesValidated
	s.Messages = append(s.Messages, Message{Level: LevelSuccess, Text: "Numeric and date columns were converted."})
	return nil
}

func stepMap(ctx context.Context, s *State, deps Deps) error {
	sets, err := LoadReferences(ctx, deps.Store, deps.References)
	if err != nil {
		return err
	}
	mapped, report := MapFields(s.Frame, deps.References, BuildResolver(sets))
	s.Frame = mapped
	s.Preview = mapped.Head(deps.PreviewRows)
	s.Mapping = &report

	if !report.Resolved() {
		for _, w := range report.Warnings {
			s.Messages = append(s.Messages, Message{Level: LevelWarning, Text: w.Message})
		}
		return nil
	}
	s.Stage = StageReadyToWrite
	s.Messages = append(s.Messages, Message{Level: LevelSuccess, Text: report.Confirmation})
	return nil
}

func stepWrite(ctx context.Context, s *State, deps Deps) error {
	result, err := WriteRows(ctx, deps.Store, deps.Target, s.Frame)
	s.Write = &result
	if err != nil {
		return err
	}
	s.Stage = StageCompleted
	s.Messages = append(s.Messages, Message{
		Level: LevelSuccess,
		Text:  fmt.Sprintf("Wrote %d purchase orders to %s.", len(result.Written), deps.Target.Table),
	})
	return nil
}

func requiredNames(specs []ColumnSpec) []string {
	var out []string
	for _, spec := range specs {
		if spec.Required {
			out = append(out, spec.Name)
		}
	}
	return out
}
