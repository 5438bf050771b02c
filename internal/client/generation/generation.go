// Package generation holds the content collaborators of the enrichment
// pipeline: the text generator that writes the reply bundle and the image
// generator that illustrates an entry.
package generation

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/moodlog/internal/common"
)

const (
	MaxTags     = 3
	themeMinLen = 2
	themeMaxLen = 4
)

type Request struct {
	Text      string
	MoodLevel int
}

// Bundle is the generated content for one entry.
type Bundle struct {
	Reply      string   `json:"reply"`
	Tags       []string `json:"tags"`
	Theme      string   `json:"theme"`
	LuckyItem  string   `json:"luckyItem"`
	Relaxation string   `json:"relaxation"`
	Quote      string   `json:"quote,omitempty"`
}

type Generator interface {
	Generate(ctx context.Context, req Request) (Bundle, error)
}

type ImageRequest struct {
	Text      string
	MoodLevel int
	Zone      string
}

// ImageGenerator returns a reference (usually a URL) to an illustration.
type ImageGenerator interface {
	Image(ctx context.Context, req ImageRequest) (string, error)
}

// Fallback is the content used when generation fails or times out.
func Fallback() Bundle {
	return Bundle{
		Reply:      "Thank you for sharing. Take a slow breath, you are doing fine.",
		Tags:       []string{"#pause"},
		Theme:      "Rest",
		LuckyItem:  "a warm cup",
		Relaxation: "Breathe in for four counts, out for six.",
	}
}

// Normalize trims the bundle, prefixes tags with '#', keeps at most
// MaxTags of them and checks the theme length.
func (b Bundle) Normalize() (Bundle, error) {
	out := Bundle{
		Reply:      strings.TrimSpace(b.Reply),
		Theme:      strings.TrimSpace(b.Theme),
		LuckyItem:  strings.TrimSpace(b.LuckyItem),
		Relaxation: strings.TrimSpace(b.Relaxation),
		Quote:      strings.TrimSpace(b.Quote),
	}

	for _, t := range b.Tags {
		t = strings.TrimSpace(t)
		if t == "" || t == "#" {
			continue
		}
		if !strings.HasPrefix(t, "#") {
			t = "#" + t
		}
		out.Tags = append(out.Tags, t)
		if len(out.Tags) == MaxTags {
			break
		}
	}

	if out.Reply == "" {
		return Bundle{}, fmt.Errorf("%w: empty reply", common.ErrMalformedGeneration)
	}
	if n := utf8.RuneCountInString(out.Theme); n < themeMinLen || n > themeMaxLen {
		return Bundle{}, fmt.Errorf("%w: theme %q must be %d-%d characters", common.ErrMalformedGeneration, out.Theme, themeMinLen, themeMaxLen)
	}
	if len(out.Tags) == 0 {
		return Bundle{}, fmt.Errorf("%w: no tags", common.ErrMalformedGeneration)
	}
	return out, nil
}

// Unavailable is used when no text generator is configured.
type Unavailable struct{}

func (Unavailable) Generate(context.Context, Request) (Bundle, error) {
	return Bundle{}, common.ErrGenerationUnavailable
}

func (Unavailable) Image(context.Context, ImageRequest) (string, error) {
	return "", common.ErrGenerationUnavailable
}
