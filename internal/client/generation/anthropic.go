package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/dmitrijs2005/moodlog/internal/common"
	"github.com/dmitrijs2005/moodlog/internal/logging"
)

const (
	DefaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 512
)

// Anthropic writes reply bundles with the Messages API.
type Anthropic struct {
	client anthropic.Client
	model  string
	logger logging.Logger
}

var _ Generator = (*Anthropic)(nil)

func NewAnthropic(apiKey, model string, logger logging.Logger, opts ...option.RequestOption) *Anthropic {
	if model == "" {
		model = DefaultModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Anthropic{
		client: anthropic.NewClient(opts...),
		model:  model,
		logger: logger.With("module", "generation"),
	}
}

func (a *Anthropic) Generate(ctx context.Context, req Request) (Bundle, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: defaultMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(req))),
		},
	})
	if err != nil {
		return Bundle{}, fmt.Errorf("%w: llm api call: %v", common.ErrGenerationUnavailable, err)
	}
	if len(msg.Content) == 0 {
		return Bundle{}, fmt.Errorf("%w: empty response", common.ErrMalformedGeneration)
	}

	b, err := parseBundle(msg.Content[0].Text)
	if err != nil {
		return Bundle{}, err
	}
	a.logger.Debug(ctx, "bundle generated", "theme", b.Theme, "tags", len(b.Tags))
	return b, nil
}

func parseBundle(text string) (Bundle, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return Bundle{}, fmt.Errorf("%w: %v", common.ErrMalformedGeneration, err)
	}
	if !json.Valid([]byte(raw)) {
		return Bundle{}, fmt.Errorf("%w: response does not contain valid JSON", common.ErrMalformedGeneration)
	}

	var b Bundle
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return Bundle{}, fmt.Errorf("%w: %v", common.ErrMalformedGeneration, err)
	}
	return b.Normalize()
}

func buildPrompt(req Request) string {
	return fmt.Sprintf(`You are a gentle companion in a shared mood journal.

Someone rated their mood %d out of 100 (0 is the lowest) and wrote:
%q

Output ONLY a valid JSON object matching this exact schema:
{
  "reply": "<two short, warm sentences addressed to the writer>",
  "tags": ["#<one word>", "#<one word>"],
  "theme": "<a 2-4 character theme word>",
  "luckyItem": "<a small everyday object>",
  "relaxation": "<one concrete relaxation suggestion>",
  "quote": "<an optional short quote, or empty>"
}

Rules:
- At most 3 tags
- Never give medical advice
- Output ONLY the JSON, no markdown, no explanations`, req.MoodLevel, req.Text)
}

// extractJSON finds the first complete JSON object in a string.
func extractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return s[start : end+1], nil
}
