// Package report turns a classification plus retrieved knowledge into a
// Markdown diagnosis report via a chat model.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"smartagri-server-go/internal/domain/rag"
	"smartagri-server-go/internal/platform/errors"
)

// Input carries everything a report needs.
type Input struct {
	Category  string // Disease or Pest
	Name      string // Chinese scientific name
	LatinName string
	Documents []rag.Document
}

// Generator produces reports through a chat completion model.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *slog.Logger
}

// NewGenerator wraps an existing OpenAI client.
func NewGenerator(client *openai.Client, model string, temperature float32, maxTokens int, logger *slog.Logger) *Generator {
	if model == "" {
		model = openai.GPT4oMini
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger,
	}
}

// Generate renders the category template with the retrieved context and asks
// the model for the final report.
func (g *Generator) Generate(ctx context.Context, input Input) (string, error) {
	prompt, err := buildPrompt(input)
	if err != nil {
		return "", err
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", errors.Wrap(errors.KindReport, "report.Generate", "chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(errors.KindReport, "report.Generate", "model returned no choices")
	}

	g.logger.Debug("report generated", "name", input.Name, "category", input.Category,
		"tokens", resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}

// buildPrompt fills the template placeholders.
func buildPrompt(input Input) (string, error) {
	tmpl, err := templateFor(input.Category)
	if err != nil {
		return "", err
	}
	return strings.NewReplacer(
		"{diagnosis_name}", input.Name,
		"{diagnosis_en_name}", input.LatinName,
		"{context}", formatContext(input.Documents),
	).Replace(tmpl), nil
}

// formatContext joins retrieved passages into numbered sections.
func formatContext(docs []rag.Document) string {
	if len(docs) == 0 {
		return "未检索到相关上下文信息。"
	}
	var b strings.Builder
	for i, doc := range docs {
		fmt.Fprintf(&b, "【上下文片段 %d】\n%s\n", i+1, doc.Content)
		if i < len(docs)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
