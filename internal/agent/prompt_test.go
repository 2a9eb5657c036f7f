// File: internal/agent/prompt_test.go
package agent

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/axpilot/api/schemas"
)

func testSnapshot() *schemas.Snapshot {
	return &schemas.Snapshot{
		URL: "https://example.com/search",
		Elements: []schemas.Element{
			{ID: 3, Role: "textbox", Name: "Search"},
			{ID: 4, Role: "button", Name: "Go"},
		},
		CapturedAt: time.Unix(1700000000, 0),
	}
}

func TestPromptBuilder_Deterministic(t *testing.T) {
	b := PromptBuilder{Options: schemas.GenerationOptions{Temperature: 0.2, MaxTokens: 512, ForceJSONFormat: true}}
	history := []schemas.HistoryEntry{
		{StepIndex: 0, Action: schemas.Action{Params: schemas.InputParams{ID: 3, Text: "go"}}, Outcome: schemas.Success(false, "tag:input")},
	}
	notes := []schemas.Note{{ID: "n1", Title: "Memory_1", Content: "price is 10"}}

	first := b.Build("find the docs", testSnapshot(), history, notes)
	second := b.Build("find the docs", testSnapshot(), history, notes)
	assert.Equal(t, first, second)
	assert.Equal(t, b.Options, first.Options)
}

func TestPromptBuilder_SystemPrompt(t *testing.T) {
	req := PromptBuilder{}.Build("goal", testSnapshot(), nil, nil)
	for _, k := range schemas.ActionVocabulary {
		assert.Contains(t, req.SystemPrompt, string(k)+":", "vocabulary entry %s", k)
	}
	assert.Contains(t, req.SystemPrompt, "JSON array")
	assert.Contains(t, req.SystemPrompt, "must be the LAST action")
}

func TestPromptBuilder_UserPrompt(t *testing.T) {
	t.Run("empty history and notes", func(t *testing.T) {
		req := PromptBuilder{}.Build("  buy milk  ", testSnapshot(), nil, nil)
		p := req.UserPrompt
		assert.Contains(t, p, "Goal: buy milk\n")
		assert.Contains(t, p, "Current URL: https://example.com/search")
		assert.Contains(t, p, `{"id":3,"role":"textbox","name":"Search","ignored":false}`)
		assert.Equal(t, 2, strings.Count(p, "(none)"))
		assert.NotContains(t, p, "truncated")
	})

	t.Run("nil snapshot", func(t *testing.T) {
		req := PromptBuilder{}.Build("g", nil, nil, nil)
		assert.Contains(t, req.UserPrompt, "Accessibility snapshot:\n[]\n")
	})

	t.Run("truncated snapshot is flagged", func(t *testing.T) {
		snap := testSnapshot()
		snap.Truncated = true
		req := PromptBuilder{}.Build("g", snap, nil, nil)
		assert.Contains(t, req.UserPrompt, "snapshot was truncated")
	})

	t.Run("history is tailed", func(t *testing.T) {
		var history []schemas.HistoryEntry
		for i := 0; i < 5; i++ {
			history = append(history, schemas.HistoryEntry{
				StepIndex: i,
				Action:    schemas.Action{Params: schemas.ClickParams{ID: int64(100 + i)}},
				Outcome:   schemas.Failure(schemas.ErrCodeNodeResolution, fmt.Sprintf("gone %d", i)),
			})
		}
		req := PromptBuilder{HistoryTail: 2}.Build("g", testSnapshot(), history, nil)
		assert.NotContains(t, req.UserPrompt, "click(id=102)")
		assert.Contains(t, req.UserPrompt, "step 3: click(id=103) -> failed NodeResolutionError: gone 3")
		assert.Contains(t, req.UserPrompt, "step 4: click(id=104)")
	})

	t.Run("notes are listed", func(t *testing.T) {
		notes := []schemas.Note{{Title: "Memory_1", Content: "alpha"}, {Title: "Memory_2", Content: "beta"}}
		req := PromptBuilder{}.Build("g", testSnapshot(), nil, notes)
		assert.Contains(t, req.UserPrompt, "- Memory_1: alpha\n- Memory_2: beta\n")
	})
}

func TestFormatHistoryEntry(t *testing.T) {
	tests := []struct {
		entry schemas.HistoryEntry
		want  string
	}{
		{
			entry: schemas.HistoryEntry{StepIndex: 1, Action: schemas.Action{Params: schemas.ClickParams{ID: 9}, Purpose: "open"}, Outcome: schemas.Success(true, "via:js")},
			want:  "step 1: click(id=9) (open) -> success, page changed",
		},
		{
			entry: schemas.HistoryEntry{StepIndex: 2, Action: schemas.Action{Params: schemas.NavigateParams{URL: "https://a.example"}}, Outcome: schemas.Success(true, "")},
			want:  "step 2: navigate(url=https://a.example) -> success, page changed",
		},
		{
			entry: schemas.HistoryEntry{StepIndex: 3, Action: schemas.Action{Params: schemas.WriteMemoryParams{Text: "x"}}, Outcome: schemas.Failure(schemas.ErrCodeExecutionFailure, "")},
			want:  `step 3: write_memory(text="x") -> failed ExecutionFailure`,
		},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, formatHistoryEntry(tt.entry))
	}
}
