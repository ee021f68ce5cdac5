package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const MaxTextLength = 5000

// ValidateTranscript checks the payload before any work is queued.
func ValidateTranscript(p TranscriptPayload) error {
	if p.ConversationID == "" {
		return WrapError(ErrValidation, "validate transcript", errors.New("conversation_id is required"))
	}
	return ValidateText(p.Text)
}

// ValidateText rejects blank text and text longer than MaxTextLength code points.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return WrapError(ErrValidation, "validate text", errors.New("text cannot be empty"))
	}
	if n := utf8.RuneCountInString(text); n > MaxTextLength {
		return WrapError(ErrValidation, "validate text", fmt.Errorf("text exceeds %d characters (got %d)", MaxTextLength, n))
	}
	return nil
}
