package schemas

import "time"

// -- Accessibility Snapshot Schemas --

// Element is one accessibility node reduced to what the planner needs. ID is the
// backend DOM node id and is only meaningful for the document load it was
// captured from.
type Element struct {
	ID      int64  `json:"id"`
	Role    string `json:"role"`
	Name    string `json:"name"`
	Ignored bool   `json:"ignored"`
}

// Snapshot is the bounded, filtered accessibility view of a page captured for a
// single planning step. It is never reused across steps.
type Snapshot struct {
	URL        string    `json:"url"`
	Elements   []Element `json:"elements"`
	Truncated  bool      `json:"truncated"`
	CapturedAt time.Time `json:"captured_at"`
}

// Contains reports whether an element with the given id was captured.
func (s *Snapshot) Contains(id int64) bool {
	if s == nil {
		return false
	}
	for _, el := range s.Elements {
		if el.ID == id {
			return true
		}
	}
	return false
}

// Len returns the number of captured elements; nil snapshots have none.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Elements)
}
