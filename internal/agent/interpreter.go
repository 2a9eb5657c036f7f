// File: internal/agent/interpreter.go
package agent

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/axpilot/api/schemas"
	"github.com/xkilldash9x/axpilot/internal/llmutil"
)

// wireAction is the oracle's JSON shape for one action.
type wireAction struct {
	Action  string     `json:"action"`
	Params  wireParams `json:"params"`
	Purpose string     `json:"purpose"`
}

type wireParams struct {
	ID      flexID `json:"id"`
	Text    string `json:"text"`
	URL     string `json:"url"`
	Purpose string `json:"purpose"`
}

// flexID accepts an element id written as a JSON number or a numeric string.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
	}
	if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
		*f = flexID(n)
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil || v != math.Trunc(v) || math.IsInf(v, 0) {
		return fmt.Errorf("invalid element id %s", b)
	}
	*f = flexID(v)
	return nil
}

// Interpret extracts the action list from raw oracle text. It returns nil when
// the text holds no parseable JSON array or any element is malformed; an empty
// array yields an empty, non-nil slice. It never panics and is a pure function
// of raw.
func Interpret(raw string) []schemas.Action {
	wire, err := llmutil.ParseJSONResponse[[]wireAction](raw)
	if err != nil || wire == nil {
		return nil
	}
	actions := make([]schemas.Action, 0, len(*wire))
	for _, w := range *wire {
		a, ok := w.toAction()
		if !ok {
			return nil
		}
		actions = append(actions, a)
	}
	return actions
}

func (w wireAction) toAction() (schemas.Action, bool) {
	kind := schemas.ActionKind(strings.ToLower(strings.TrimSpace(w.Action)))
	if kind == "" {
		return schemas.Action{}, false
	}

	purpose := w.Params.Purpose
	if purpose == "" {
		purpose = w.Purpose
	}

	id := int64(w.Params.ID)
	var params schemas.ActionParams
	switch kind {
	case schemas.ActionClick:
		params = schemas.ClickParams{ID: id}
	case schemas.ActionInput:
		params = schemas.InputParams{ID: id, Text: w.Params.Text}
	case schemas.ActionSubmit:
		params = schemas.SubmitParams{ID: id}
	case schemas.ActionHistoryBack:
		params = schemas.HistoryBackParams{}
	case schemas.ActionNavigate:
		params = schemas.NavigateParams{URL: strings.TrimSpace(w.Params.URL)}
	case schemas.ActionWriteMemory:
		params = schemas.WriteMemoryParams{Text: w.Params.Text}
	case schemas.ActionStop:
		params = schemas.StopParams{}
	default:
		params = schemas.UnknownParams{Name: string(kind)}
	}
	return schemas.Action{Params: params, Purpose: purpose}, true
}

// interpretRaw is Interpret with jsoniter's error surfaced, for logging.
func interpretRaw(raw string) ([]schemas.Action, error) {
	if actions := Interpret(raw); actions != nil {
		return actions, nil
	}
	region, err := llmutil.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	var probe []json.RawMessage
	if err := json.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(region, &probe); err != nil {
		return nil, fmt.Errorf("response is not a JSON array: %w", err)
	}
	return nil, fmt.Errorf("response array holds a malformed action")
}
