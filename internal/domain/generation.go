package domain

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateParams contains the input for one tool invocation.
type GenerateParams struct {
	UserID uuid.UUID
	Tool   ToolID
	Input  string
}

// Generation is the outcome of a tool invocation.
//
// Recorded is false when the content was delivered but the usage could not
// be charged, for example because the limit was crossed by this very
// generation or the store was unreachable.
type Generation struct {
	Tool      ToolID       `json:"tool"`
	Content   string       `json:"content"`
	WordCount int64        `json:"word_count"`
	Recorded  bool         `json:"recorded"`
	Usage     *UsageStatus `json:"usage,omitempty"`
}

// CountWords returns the number of whitespace-separated words in s.
func CountWords(s string) int64 {
	return int64(len(strings.Fields(s)))
}
