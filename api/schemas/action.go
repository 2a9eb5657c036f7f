package schemas

import (
	"fmt"
	"strconv"

	json "github.com/json-iterator/go"
)

// ActionKind names one entry of the fixed action vocabulary offered to the oracle.
type ActionKind string

const (
	ActionClick       ActionKind = "click"
	ActionInput       ActionKind = "input"
	ActionSubmit      ActionKind = "submit"
	ActionHistoryBack ActionKind = "history_back"
	ActionNavigate    ActionKind = "navigate"
	ActionWriteMemory ActionKind = "write_memory"
	ActionStop        ActionKind = "stop"
)

// ActionVocabulary lists every kind the planner may emit, in prompt order.
var ActionVocabulary = []ActionKind{
	ActionClick,
	ActionInput,
	ActionSubmit,
	ActionHistoryBack,
	ActionNavigate,
	ActionWriteMemory,
	ActionStop,
}

// Known reports whether k is part of the action vocabulary.
func (k ActionKind) Known() bool {
	for _, v := range ActionVocabulary {
		if v == k {
			return true
		}
	}
	return false
}

func (k ActionKind) String() string { return string(k) }

// ActionParams is the kind-specific parameter record of an Action. The concrete
// type always matches Action.Kind; consumers switch on the type rather than
// probing optional fields.
type ActionParams interface {
	Kind() ActionKind
}

// ClickParams targets a snapshot element for a pointer click.
type ClickParams struct {
	ID int64 `json:"id"`
}

// InputParams writes text into the text-entry surface nearest the element.
type InputParams struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// SubmitParams submits the form enclosing the element.
type SubmitParams struct {
	ID int64 `json:"id"`
}

// HistoryBackParams carries no fields.
type HistoryBackParams struct{}

// NavigateParams replaces the page location.
type NavigateParams struct {
	URL string `json:"url"`
}

// WriteMemoryParams appends a persisted note.
type WriteMemoryParams struct {
	Text string `json:"text"`
}

// StopParams ends the run.
type StopParams struct{}

// UnknownParams holds an action whose kind is outside the vocabulary.
type UnknownParams struct {
	Name string `json:"name"`
}

func (ClickParams) Kind() ActionKind       { return ActionClick }
func (InputParams) Kind() ActionKind       { return ActionInput }
func (SubmitParams) Kind() ActionKind      { return ActionSubmit }
func (HistoryBackParams) Kind() ActionKind { return ActionHistoryBack }
func (NavigateParams) Kind() ActionKind    { return ActionNavigate }
func (WriteMemoryParams) Kind() ActionKind { return ActionWriteMemory }
func (StopParams) Kind() ActionKind        { return ActionStop }
func (p UnknownParams) Kind() ActionKind   { return ActionKind(p.Name) }

// Action is a single planned interaction. Purpose is an audit annotation only
// and is never interpreted.
type Action struct {
	Params  ActionParams `json:"params"`
	Purpose string       `json:"purpose,omitempty"`
}

// Kind returns the action kind, derived from the parameter record.
func (a Action) Kind() ActionKind {
	if a.Params == nil {
		return ""
	}
	return a.Params.Kind()
}

// TargetID returns the element id the action references, if any.
func (a Action) TargetID() (int64, bool) {
	switch p := a.Params.(type) {
	case ClickParams:
		return p.ID, true
	case InputParams:
		return p.ID, true
	case SubmitParams:
		return p.ID, true
	default:
		return 0, false
	}
}

// Signature identifies the action for repetition analysis: the kind joined with
// its target id (empty when the kind has no target).
func (a Action) Signature() string {
	id, ok := a.TargetID()
	if !ok {
		return string(a.Kind()) + ":"
	}
	return string(a.Kind()) + ":" + strconv.FormatInt(id, 10)
}

// Mutating reports whether executing the action can change the page or the
// persisted notes.
func (a Action) Mutating() bool {
	switch a.Params.(type) {
	case StopParams, UnknownParams, nil:
		return false
	default:
		return true
	}
}

// MarshalJSON writes the kind next to the parameters, in the same shape the
// oracle uses, so recorded history stays unambiguous.
func (a Action) MarshalJSON() ([]byte, error) {
	return json.ConfigCompatibleWithStandardLibrary.Marshal(struct {
		Kind    ActionKind   `json:"action"`
		Params  ActionParams `json:"params"`
		Purpose string       `json:"purpose,omitempty"`
	}{a.Kind(), a.Params, a.Purpose})
}

func (a Action) String() string {
	if id, ok := a.TargetID(); ok {
		return fmt.Sprintf("%s(id=%d)", a.Kind(), id)
	}
	return string(a.Kind())
}
