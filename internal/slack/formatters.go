// Package slack provides Slack message formatting utilities.
package slack

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/slack-go/slack"

	"github.com/dilumka1020/pravy-voice-bot-v2/internal/storage"
)

// maxSectionText is Slack's limit for the text of a section block.
const maxSectionText = 3000

// FormatBold wraps text in bold markers.
func FormatBold(text string) string {
	return fmt.Sprintf("*%s*", text)
}

// FormatItalic wraps text in italic markers.
func FormatItalic(text string) string {
	return fmt.Sprintf("_%s_", text)
}

// TruncateText truncates text to at most maxLen bytes with ellipsis,
// cutting on a rune boundary.
func TruncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return text[:runeCut(text, maxLen)]
	}
	return text[:runeCut(text, maxLen-3)] + "..."
}

// runeCut returns the largest index <= n that starts a rune in text.
func runeCut(text string, n int) int {
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return n
}

// BuildHeaderBlock creates a header block.
func BuildHeaderBlock(text string) *slack.HeaderBlock {
	return slack.NewHeaderBlock(
		slack.NewTextBlockObject(slack.PlainTextType, text, false, false),
	)
}

// BuildSectionBlock creates a section block with markdown text.
func BuildSectionBlock(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, TruncateText(text, maxSectionText), false, false),
		nil, nil,
	)
}

// BuildDividerBlock creates a divider block.
func BuildDividerBlock() *slack.DividerBlock {
	return slack.NewDividerBlock()
}

// BuildContextBlock creates a context block with text elements.
func BuildContextBlock(texts ...string) *slack.ContextBlock {
	elements := make([]slack.MixedElement, len(texts))
	for i, text := range texts {
		elements[i] = slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
	}
	return slack.NewContextBlock("", elements...)
}

// FormatTurn renders one turn as a transcript line.
func FormatTurn(turn storage.Turn) string {
	speaker := "Caller"
	if turn.Role == storage.RoleAssistant {
		speaker = "Assistant"
	}
	return fmt.Sprintf("%s %s", FormatBold(speaker+":"), turn.Content)
}

// FormatTranscriptText renders a plain-text fallback for notifications.
func FormatTranscriptText(summary CallSummary) string {
	return fmt.Sprintf("Call %s from %s ended (%s), %d turns",
		summary.CallSID, callerLabel(summary.From), summary.Status, len(summary.Transcript))
}

// BuildTranscriptBlocks renders a finished call as Block Kit blocks. Turns are
// packed into as few sections as the per-section text limit allows.
func BuildTranscriptBlocks(summary CallSummary) []slack.Block {
	blocks := []slack.Block{
		BuildHeaderBlock("Call transcript"),
		BuildContextBlock(
			FormatBold("Caller:")+" "+callerLabel(summary.From),
			FormatBold("Status:")+" "+summary.Status,
			FormatBold("Ended:")+" "+summary.EndedAt.UTC().Format(time.RFC1123),
		),
		BuildDividerBlock(),
	}

	var sb strings.Builder
	for _, turn := range summary.Transcript {
		line := FormatTurn(turn)
		if sb.Len() > 0 && sb.Len()+len(line)+1 > maxSectionText {
			blocks = append(blocks, BuildSectionBlock(sb.String()))
			sb.Reset()
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(line)
	}
	if sb.Len() > 0 {
		blocks = append(blocks, BuildSectionBlock(sb.String()))
	}

	blocks = append(blocks, BuildContextBlock(FormatItalic(fmt.Sprintf("Call SID %s", summary.CallSID))))
	return blocks
}

func callerLabel(from string) string {
	if from == "" {
		return "unknown"
	}
	return from
}
