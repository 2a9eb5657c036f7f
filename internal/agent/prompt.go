// File: internal/agent/prompt.go
package agent

import (
	"fmt"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/axpilot/api/schemas"
)

// DefaultHistoryTail is how many trailing history entries a prompt shows.
const DefaultHistoryTail = 10

// PromptBuilder turns the run's observable state into one oracle request. It
// holds no state between calls and yields identical requests for identical
// inputs.
type PromptBuilder struct {
	HistoryTail int
	Options     schemas.GenerationOptions
}

// Build assembles the request for one planning step.
func (b PromptBuilder) Build(goal string, snap *schemas.Snapshot, history []schemas.HistoryEntry, notes []schemas.Note) schemas.GenerationRequest {
	return schemas.GenerationRequest{
		SystemPrompt: systemPrompt(),
		UserPrompt:   b.userPrompt(goal, snap, history, notes),
		Options:      b.Options,
	}
}

// systemPrompt is the fixed instruction set: vocabulary, output contract, rules.
func systemPrompt() string {
	var sb strings.Builder
	sb.WriteString(`You are a browser operating agent. You see a web page only through its accessibility snapshot: a JSON list of elements with an "id", a "role" and a "name".
Choose the next interactions that move the page toward the user's goal.

Available actions:
`)
	for _, k := range schemas.ActionVocabulary {
		sb.WriteString("    - ")
		sb.WriteString(actionHelp[k])
		sb.WriteByte('\n')
	}
	sb.WriteString(`
Output format:
    Respond with a JSON array of action objects, even for a single action:
    [{"action": "click", "params": {"id": 12, "purpose": "open the search form"}}]
    Every action object has "action" (one of the names above) and "params". Put a short "purpose" in params.
    Output only the JSON array. No prose, no markdown.

Rules:
    - An "id" must be one of the ids in the current snapshot. Any other id is invalid and will fail.
    - An action that is expected to navigate the page (following a link, submitting a form, navigate, history_back) must be the LAST action in the array. Ids from this snapshot are not valid after a navigation.
    - Use "stop" once the goal is achieved or cannot be achieved.
    - Do not repeat an action that already failed with the same id; choose a different element or approach.
    - Use "write_memory" to keep facts you will need later; saved notes are shown to you on every step.`)
	return sb.String()
}

var actionHelp = map[schemas.ActionKind]string{
	schemas.ActionClick:       `click: click an element. params: {"id": <element id>}`,
	schemas.ActionInput:       `input: type text into a text field. params: {"id": <element id>, "text": "<text>"}`,
	schemas.ActionSubmit:      `submit: submit the form containing an element. params: {"id": <element id>}`,
	schemas.ActionHistoryBack: `history_back: go back to the previous page. params: {}`,
	schemas.ActionNavigate:    `navigate: open a URL (http or https). params: {"url": "<url>"}`,
	schemas.ActionWriteMemory: `write_memory: save a note for later steps. params: {"text": "<note>"}`,
	schemas.ActionStop:        `stop: end the task. params: {}`,
}

func (b PromptBuilder) userPrompt(goal string, snap *schemas.Snapshot, history []schemas.HistoryEntry, notes []schemas.Note) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Goal: %s\n\n", strings.TrimSpace(goal))

	url := ""
	if snap != nil {
		url = snap.URL
	}
	fmt.Fprintf(&sb, "Current URL: %s\n\n", url)

	sb.WriteString("Accessibility snapshot:\n")
	sb.WriteString(snapshotJSON(snap))
	sb.WriteByte('\n')
	if snap != nil && snap.Truncated {
		sb.WriteString("(The snapshot was truncated; elements later in the page are not listed.)\n")
	}

	sb.WriteString("\nRecent actions:\n")
	tail := b.HistoryTail
	if tail <= 0 {
		tail = DefaultHistoryTail
	}
	start := len(history) - tail
	if start < 0 {
		start = 0
	}
	if start == len(history) {
		sb.WriteString("(none)\n")
	}
	for _, h := range history[start:] {
		sb.WriteString(formatHistoryEntry(h))
		sb.WriteByte('\n')
	}

	sb.WriteString("\nSaved notes:\n")
	if len(notes) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, n := range notes {
		fmt.Fprintf(&sb, "- %s: %s\n", n.Title, n.Content)
	}

	sb.WriteString("\nDecide the next actions. Respond with a JSON array only.")
	return sb.String()
}

func snapshotJSON(snap *schemas.Snapshot) string {
	elements := []schemas.Element{}
	if snap != nil && snap.Elements != nil {
		elements = snap.Elements
	}
	out, err := json.ConfigCompatibleWithStandardLibrary.MarshalToString(elements)
	if err != nil {
		// Element holds only scalars; this cannot fail.
		return "[]"
	}
	return out
}

func formatHistoryEntry(h schemas.HistoryEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "step %d: %s", h.StepIndex, describeAction(h.Action))
	if h.Action.Purpose != "" {
		fmt.Fprintf(&sb, " (%s)", h.Action.Purpose)
	}
	o := h.Outcome
	if o.Succeeded() {
		sb.WriteString(" -> success")
		if o.URLChanged {
			sb.WriteString(", page changed")
		}
	} else {
		fmt.Fprintf(&sb, " -> failed %s", o.Error)
		if o.Message != "" {
			fmt.Fprintf(&sb, ": %s", o.Message)
		}
	}
	return sb.String()
}

func describeAction(a schemas.Action) string {
	switch p := a.Params.(type) {
	case schemas.InputParams:
		return fmt.Sprintf("input(id=%d, text=%q)", p.ID, p.Text)
	case schemas.NavigateParams:
		return fmt.Sprintf("navigate(url=%s)", p.URL)
	case schemas.WriteMemoryParams:
		return fmt.Sprintf("write_memory(text=%q)", p.Text)
	default:
		return a.String()
	}
}
