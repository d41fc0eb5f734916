// Package claude provides system prompt management.
package claude

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DefaultSystemPrompt is the base system prompt for the voice assistant.
const DefaultSystemPrompt = `You are a helpful and friendly voice assistant for Pravy Consulting.
Your responses should be concise, conversational, and optimized for speech.
Keep answers brief (2-3 sentences) unless asked for more detail.
Use natural, casual language and a friendly tone.
Avoid complex formatting or visual elements since your responses will be read aloud.
Prioritize clarity and direct answers to user queries. You can refer to https://pravyconsulting.com for more information about the company.
If the user asks for more information, you can provide it in a follow-up message.`

// ErrEmptyPrompt is returned when a system prompt has no content.
var ErrEmptyPrompt = errors.New("system prompt is empty")

// LoadSystemPrompt reads a system prompt from a file.
func LoadSystemPrompt(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read system prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("%s: %w", path, ErrEmptyPrompt)
	}
	return prompt, nil
}

// PromptSource holds the current system prompt. It can be replaced at
// runtime through Set or by watching a prompt file.
type PromptSource struct {
	mu     sync.RWMutex
	prompt string
}

// NewPromptSource creates a prompt source, falling back to DefaultSystemPrompt
// when prompt is blank.
func NewPromptSource(prompt string) *PromptSource {
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultSystemPrompt
	}
	return &PromptSource{prompt: prompt}
}

// Get returns the current prompt.
func (p *PromptSource) Get() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prompt
}

// Set replaces the current prompt.
func (p *PromptSource) Set(prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ErrEmptyPrompt
	}

	p.mu.Lock()
	p.prompt = prompt
	p.mu.Unlock()
	return nil
}

// Watch reloads the prompt whenever path changes, until ctx is cancelled.
// The parent directory is watched so editors that replace the file by
// rename are picked up too.
func (p *PromptSource) Watch(ctx context.Context, path string, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			prompt, err := LoadSystemPrompt(path)
			if err != nil {
				logger.Warn("keeping previous system prompt", "path", path, "error", err)
				continue
			}
			if err := p.Set(prompt); err == nil {
				logger.Info("system prompt reloaded", "path", path, "chars", len(prompt))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("prompt watcher error", "error", err)
		}
	}
}
