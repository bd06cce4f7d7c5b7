package pluginhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

const (
	// DefaultChatURL is an OpenAI-compatible chat completions endpoint
	DefaultChatURL = "https://api.openai.com/v1/chat/completions"

	// DefaultChatModel is the completion model used when none is set
	DefaultChatModel = "gpt-4o-mini"

	chatRoleSystem    = "system"
	chatRoleUser      = "user"
	chatRoleAssistant = "assistant"
)

// ChatOptions configures the support chat's completion API. It has its
// own key and never sees the marketplace access token.
type ChatOptions struct {
	URL        string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// chatService implements ChatService
type chatService struct {
	client     *Client
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
}

func newChatService(c *Client) *chatService {
	s := &chatService{
		client:     c,
		url:        DefaultChatURL,
		model:      DefaultChatModel,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}

	if opts := c.options.Chat; opts != nil {
		if opts.URL != "" {
			s.url = opts.URL
		}
		if opts.Model != "" {
			s.model = opts.Model
		}
		if opts.HTTPClient != nil {
			s.httpClient = opts.HTTPClient
		}
		s.apiKey = opts.APIKey
	}

	return s
}

// Enabled reports whether a completion API key is configured
func (s *chatService) Enabled() bool {
	return s.apiKey != ""
}

// NewConversation starts a conversation with an optional system prompt
func (s *chatService) NewConversation(systemPrompt string) *Conversation {
	conv := &Conversation{chat: s}
	if systemPrompt = strings.TrimSpace(systemPrompt); systemPrompt != "" {
		conv.messages = append(conv.messages, ChatMessage{Role: chatRoleSystem, Content: systemPrompt})
	}
	return conv
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends messages and returns the assistant reply
func (s *chatService) Complete(ctx context.Context, messages []ChatMessage) (*ChatMessage, error) {
	if !s.Enabled() {
		return nil, ErrChatNotConfigured
	}
	if len(messages) == 0 {
		return nil, &ValidationError{Field: "messages", Message: "at least one message is required"}
	}

	payload, err := json.Marshal(chatRequest{Model: s.model, Messages: messages})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal chat request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("User-Agent", UserAgent)

	if logger := s.client.options.Logger; logger != nil {
		logger.Debug("Chat request", "model", s.model, "messages", len(messages))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "chat request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read chat response")
	}

	var out chatResponse
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("chat API returned HTTP %d", resp.StatusCode)
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return nil, &Error{
			Code:       "CHAT_ERROR",
			Message:    msg,
			StatusCode: resp.StatusCode,
			Err:        chatStatusError(resp.StatusCode),
		}
	}

	if decodeErr != nil {
		return nil, errors.Wrap(decodeErr, "failed to parse chat response")
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("chat response has no choices")
	}

	reply := out.Choices[0].Message
	if reply.Role == "" {
		reply.Role = chatRoleAssistant
	}
	return &reply, nil
}

func chatStatusError(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= 500:
		return ErrServerError
	}
	return nil
}

// Conversation keeps the history of one chat session. It is safe for
// concurrent use; turns are serialized.
type Conversation struct {
	chat     *chatService
	mu       sync.Mutex
	messages []ChatMessage
}

// Send appends text as a user turn, asks for a reply and appends it.
// On failure the history is left as it was before the call.
func (c *Conversation) Send(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &ValidationError{Field: "text", Message: "is required"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	history := append(append([]ChatMessage(nil), c.messages...), ChatMessage{Role: chatRoleUser, Content: text})

	reply, err := c.chat.Complete(ctx, history)
	if err != nil {
		return "", err
	}

	c.messages = append(history, *reply)
	return reply.Content, nil
}

// History returns a copy of the conversation so far
func (c *Conversation) History() []ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ChatMessage(nil), c.messages...)
}

// Reset drops every turn except the system prompt
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.messages[:0]
	for _, m := range c.messages {
		if m.Role == chatRoleSystem {
			kept = append(kept, m)
		}
	}
	c.messages = kept
}
