// Package claude provides Anthropic Claude API integration.
package claude

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dilumka1020/pravy-voice-bot-v2/internal/storage"
)

const (
	// DefaultModel is the model used when none is configured.
	DefaultModel = "claude-3-7-sonnet-20250219"
	// DefaultMaxTokens keeps spoken replies short.
	DefaultMaxTokens = 1000
)

// ErrNoUserTurn is returned when the history has nothing for the model to answer.
var ErrNoUserTurn = errors.New("conversation has no user turn")

// Client wraps the Anthropic SDK client.
type Client struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewClient creates a new Claude API client. Extra request options are passed
// through to the SDK (base URL, retries, HTTP client).
func NewClient(apiKey, model string, maxTokens int64, opts ...option.RequestOption) *Client {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Model returns the configured model ID.
func (c *Client) Model() string {
	return c.model
}

// Reply sends the conversation to Claude and returns the text of its answer.
func (c *Client) Reply(ctx context.Context, systemPrompt string, turns []storage.Turn) (string, error) {
	messages := BuildMessages(turns)
	if len(messages) == 0 {
		return "", ErrNoUserTurn
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  messages,
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	return ExtractTextContent(msg), nil
}

// BuildMessages converts stored turns into message params. Leading assistant
// turns are dropped because the API requires the first message to come from
// the user, and consecutive turns of the same role are folded into one message.
func BuildMessages(turns []storage.Turn) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(turns))
	var lastRole storage.Role

	for _, turn := range turns {
		if len(messages) == 0 && turn.Role != storage.RoleUser {
			continue
		}

		if turn.Role == lastRole {
			last := &messages[len(messages)-1]
			last.Content = append(last.Content, anthropic.NewTextBlock(turn.Content))
			continue
		}

		switch turn.Role {
		case storage.RoleUser:
			messages = append(messages, BuildUserMessage(turn.Content))
		case storage.RoleAssistant:
			messages = append(messages, BuildAssistantMessage(turn.Content))
		default:
			continue
		}
		lastRole = turn.Role
	}

	return messages
}

// BuildUserMessage creates a user message param.
func BuildUserMessage(content string) anthropic.MessageParam {
	return anthropic.NewUserMessage(anthropic.NewTextBlock(content))
}

// BuildAssistantMessage creates an assistant message param.
func BuildAssistantMessage(content string) anthropic.MessageParam {
	return anthropic.NewAssistantMessage(anthropic.NewTextBlock(content))
}

// ExtractTextContent joins the text blocks of a message with single spaces.
func ExtractTextContent(msg *anthropic.Message) string {
	var parts []string
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			if text := strings.TrimSpace(b.Text); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, " ")
}
