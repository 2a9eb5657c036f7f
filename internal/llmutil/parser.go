// internal/llmutil/parser.go
package llmutil

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var (
	// \x60 is a backtick; raw strings cannot contain one.

	// fenceRegex matches an opening fence with an optional language tag, or a closing fence.
	fenceRegex = regexp.MustCompile("\x60\x60\x60[a-zA-Z0-9_-]*")

	json = jsoniter.ConfigCompatibleWithStandardLibrary
)

// ErrNoJSON is returned when a response holds no bracketed region.
var ErrNoJSON = errors.New("no JSON region found in response")

// StripFences removes markdown code fence markers, keeping what they wrap.
func StripFences(response string) string {
	return strings.TrimSpace(fenceRegex.ReplaceAllString(response, ""))
}

// ExtractJSON returns the outermost bracketed region of response: from the
// first '[' or '{' to the last matching closer. Conversational text around the
// region is discarded.
func ExtractJSON(response string) (string, error) {
	response = StripFences(response)

	start := strings.IndexAny(response, "[{")
	if start == -1 {
		return "", ErrNoJSON
	}
	closer := "]"
	if response[start] == '{' {
		closer = "}"
	}
	end := strings.LastIndex(response, closer)
	if end <= start {
		return "", ErrNoJSON
	}
	return response[start : end+1], nil
}

// ParseJSONResponse extracts the JSON region of an LLM response and decodes it
// into T.
func ParseJSONResponse[T any](response string) (*T, error) {
	region, err := ExtractJSON(response)
	if err != nil {
		return nil, err
	}
	var result T
	if err := json.UnmarshalFromString(region, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, Truncate(region, 500))
	}
	return &result, nil
}

// Truncate shortens s to at most maxLen bytes for logging.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
