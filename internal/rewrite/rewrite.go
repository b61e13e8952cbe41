// Package rewrite polishes ticket text with an LLM.
package rewrite

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Completer sends a system and user prompt and returns the model's text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// AnthropicCompleter implements Completer with the Anthropic Messages API.
type AnthropicCompleter struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewAnthropicCompleter creates a client with the given API key and model.
func NewAnthropicCompleter(apiKey, model string, opts ...option.RequestOption) *AnthropicCompleter {
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicCompleter{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// Complete implements Completer.
func (c *AnthropicCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}
	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in API response")
}

// Style selects the tone of a rewrite.
type Style string

const (
	StyleClear  Style = "clear"
	StyleFormal Style = "formal"
	StyleBrief  Style = "brief"
)

var styleGuidance = map[Style]string{
	StyleClear:  "Make it clear and well structured. Keep every fact, URL and ticket reference.",
	StyleFormal: "Use a polite, professional tone. Keep every fact, URL and ticket reference.",
	StyleBrief:  "Make it as short as possible without dropping facts, URLs or ticket references.",
}

// Assistant rewrites helpdesk text.
type Assistant struct {
	completer Completer
}

// NewAssistant wraps completer.
func NewAssistant(completer Completer) *Assistant {
	return &Assistant{completer: completer}
}

// Rewrite returns text rewritten in style. Unknown styles mean StyleClear.
func (a *Assistant) Rewrite(ctx context.Context, text string, style Style) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	guidance, ok := styleGuidance[style]
	if !ok {
		guidance = styleGuidance[StyleClear]
	}
	system := "You rewrite helpdesk ticket descriptions written by employees. " + guidance +
		" Reply with the rewritten text only, in markdown, without preamble or code fences."

	out, err := a.completer.Complete(ctx, system, text)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if strings.HasPrefix(out, "```") {
		lines := strings.SplitN(out, "\n", 2)
		if len(lines) > 1 {
			out = lines[1]
		}
		if idx := strings.LastIndex(out, "```"); idx >= 0 {
			out = out[:idx]
		}
		out = strings.TrimSpace(out)
	}
	if out == "" {
		return "", fmt.Errorf("empty rewrite")
	}
	return out, nil
}
