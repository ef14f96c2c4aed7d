// Package chat streams replies from an OpenAI compatible chat model while
// keeping a bounded conversation history across turns.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const defaultMaxHistory = 20

type Config struct {
	APIKey string

	// BaseURL points the client at a compatible provider. Empty uses the
	// OpenAI default.
	BaseURL string

	Model string

	// SystemPrompt is prepended to every request and never counted
	// against the history window.
	SystemPrompt string

	// MaxHistory caps how many past messages are replayed per request.
	// Oldest messages are dropped first. Zero means the default of 20.
	MaxHistory int

	MaxTokens int
}

// Client holds the conversation. Not safe for concurrent use; the pipeline
// runs one turn at a time.
type Client struct {
	client    *openai.Client
	model     string
	system    string
	maxTokens int

	maxHistory int
	history    []openai.ChatCompletionMessage
}

func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is empty")
	}

	if cfg.Model == "" {
		return nil, fmt.Errorf("model is empty")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}

	return &Client{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		system:     cfg.SystemPrompt,
		maxTokens:  cfg.MaxTokens,
		maxHistory: maxHistory,
	}, nil
}

// Stream sends the user text and returns a channel of reply fragments in
// arrival order. The fragment channel closes when the reply completes; the
// error channel then carries at most one error. The user message and the
// assembled reply join the history only after a successful stream, so a
// failed turn can be retried without duplicate context.
func (c *Client) Stream(ctx context.Context, text string) (<-chan string, <-chan error) {
	fragments := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(fragments)
		defer close(errc)

		userMsg := openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: text,
		}

		stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			Messages:  c.requestMessages(userMsg),
		})
		if err != nil {
			errc <- fmt.Errorf("chat: %w", err)
			return
		}
		defer stream.Close()

		var reply strings.Builder

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				errc <- fmt.Errorf("chat: stream: %w", err)
				return
			}

			if len(resp.Choices) == 0 {
				continue
			}

			fragment := resp.Choices[0].Delta.Content
			if fragment == "" {
				continue
			}

			reply.WriteString(fragment)

			select {
			case fragments <- fragment:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}

		c.remember(userMsg, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleAssistant,
			Content: reply.String(),
		})
	}()

	return fragments, errc
}

// Reset drops the conversation history, keeping the system prompt.
func (c *Client) Reset() {
	c.history = nil
}

// History reports how many messages the window currently holds.
func (c *Client) History() int {
	return len(c.history)
}

func (c *Client) requestMessages(userMsg openai.ChatCompletionMessage) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(c.history)+2)

	if c.system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: c.system,
		})
	}

	messages = append(messages, c.history...)

	return append(messages, userMsg)
}

func (c *Client) remember(userMsg, assistantMsg openai.ChatCompletionMessage) {
	c.history = append(c.history, userMsg, assistantMsg)

	if excess := len(c.history) - c.maxHistory; excess > 0 {
		c.history = c.history[excess:]
	}
}
