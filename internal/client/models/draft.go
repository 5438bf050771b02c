package models

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/moodlog/internal/common"
)

// MaxTextLen bounds the reflection text, in runes.
const MaxTextLen = 500

// Draft is what the guided flow hands to the pipeline.
type Draft struct {
	MoodLevel int
	Text      string
	Zone      string
}

func (d Draft) Validate() error {
	if d.MoodLevel < MoodMin || d.MoodLevel > MoodMax {
		return fmt.Errorf("%w: mood must be within %d..%d", common.ErrInvalidDraft, MoodMin, MoodMax)
	}
	text := strings.TrimSpace(d.Text)
	if text == "" {
		return fmt.Errorf("%w: text is empty", common.ErrInvalidDraft)
	}
	if utf8.RuneCountInString(text) > MaxTextLen {
		return fmt.Errorf("%w: text longer than %d characters", common.ErrInvalidDraft, MaxTextLen)
	}
	return nil
}
