package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/paracket/paracket/pkg/util"
)

// Adaptation is the result of adapting the master message for one platform.
type Adaptation struct {
	Content   string `json:"content"`
	Length    int    `json:"length"`
	MaxLength int    `json:"max_length"`
}

// Generator produces platform-native content from a prompt. Production uses
// the OpenAI chat API; tests inject a fake.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Adapter turns a master message into per-platform content honoring each
// platform's length ceiling.
type Adapter struct {
	gen    Generator
	logger *zap.Logger
}

func New(gen Generator, logger *zap.Logger) *Adapter {
	return &Adapter{gen: gen, logger: logger}
}

// Adapt produces content for a single platform. The length ceiling is
// enforced deterministically after generation: oversized output is truncated
// to max_length-3 characters plus an ellipsis marker, and a quote pair
// wrapping the whole output is stripped.
func (a *Adapter) Adapt(ctx context.Context, company string, brandVoice map[string]any, masterMessage, platform string) (*Adaptation, error) {
	spec, ok := Spec(platform)
	if !ok {
		return nil, fmt.Errorf("unknown platform %q", platform)
	}

	systemPrompt := fmt.Sprintf(
		"You are a social media expert for %s. Adapt content to different platforms while maintaining brand voice. Return only the adapted content.",
		company)
	userPrompt := buildPrompt(company, brandVoice, masterMessage, platform, spec)

	raw, err := a.gen.Generate(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("adaptation for %s failed: %w", platform, err)
	}

	content := util.StripWrappingQuotes(strings.TrimSpace(raw))
	if content == "" {
		return nil, fmt.Errorf("adaptation for %s returned empty content", platform)
	}
	content = util.TruncateWithEllipsis(content, spec.MaxLength)

	a.logger.Debug("Adapted master message",
		zap.String("platform", platform),
		zap.Int("length", util.RuneLen(content)),
		zap.Int("max_length", spec.MaxLength))

	return &Adaptation{
		Content:   content,
		Length:    util.RuneLen(content),
		MaxLength: spec.MaxLength,
	}, nil
}

// AdaptAll adapts the master message for each requested platform. Unknown
// platform names fail the whole call rather than being skipped silently.
func (a *Adapter) AdaptAll(ctx context.Context, company string, brandVoice map[string]any, masterMessage string, platforms []string) (map[string]Adaptation, error) {
	adaptations := make(map[string]Adaptation, len(platforms))
	for _, platform := range platforms {
		adaptation, err := a.Adapt(ctx, company, brandVoice, masterMessage, platform)
		if err != nil {
			return nil, err
		}
		adaptations[platform] = *adaptation
	}
	return adaptations, nil
}

func buildPrompt(company string, brandVoice map[string]any, masterMessage, platform string, spec PlatformSpec) string {
	voiceJSON, err := json.MarshalIndent(brandVoice, "", "  ")
	if err != nil {
		voiceJSON = []byte("{}")
	}
	voice := string(voiceJSON)
	if len(voice) > 1000 {
		voice = voice[:1000] + "..."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are adapting content for %s to be posted on %s.\n\n", company, platform)
	fmt.Fprintf(&sb, "BRAND VOICE PROFILE:\n%s\n\n", voice)
	fmt.Fprintf(&sb, "MASTER MESSAGE:\n%s\n\n", masterMessage)
	fmt.Fprintf(&sb, "PLATFORM: %s\nSTYLE: %s\nFORMAT: %s\nMAX LENGTH: %d characters\n\n", platform, spec.Style, spec.Format, spec.MaxLength)
	fmt.Fprintf(&sb, "TASK:\nAdapt the master message for %s while:\n", platform)
	fmt.Fprintf(&sb, "1. Maintaining %s's exact brand voice\n", company)
	fmt.Fprintf(&sb, "2. Following %s's culture and best practices\n", platform)
	fmt.Fprintf(&sb, "3. Staying within %d characters\n", spec.MaxLength)
	sb.WriteString("4. Keeping the core message and value intact\n")
	sb.WriteString("5. Making it native to the platform (not just shortened/lengthened)\n\n")

	if platform == PlatformReddit {
		sb.WriteString("For Reddit:\n")
		sb.WriteString("FIRST LINE = Title only (plain text, no markdown, no 'Title:' prefix)\n")
		sb.WriteString("REMAINING LINES = Body paragraphs\n\n")
	}

	sb.WriteString("Return ONLY the adapted content, no explanations or meta-commentary.\n")
	return sb.String()
}

// OpenAIGenerator is the production Generator backed by the OpenAI chat API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, model string) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing OpenAI API key")
	}
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIGenerator{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.75,
		MaxTokens:   1500,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
