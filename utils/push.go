package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PushMessage is one reminder addressed to a single device token.
type PushMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// PushTicket is the provider's per-message delivery receipt.
type PushTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

// PushSender dispatches one already-chunked batch of messages. Implemented by
// ExpoPushClient in production and by test doubles in dispatcher tests.
type PushSender interface {
	Send(ctx context.Context, messages []PushMessage) ([]PushTicket, error)
}

// ExpoPushClient posts message batches to the Expo push HTTP API.
type ExpoPushClient struct {
	URL    string
	Client *http.Client
}

// NewExpoPushClient builds a client for the given endpoint with sane timeouts.
func NewExpoPushClient(url string) *ExpoPushClient {
	return &ExpoPushClient{
		URL:    url,
		Client: &http.Client{Timeout: 15 * time.Second},
	}
}

type expoPushResponse struct {
	Data []PushTicket `json:"data"`
}

// Send posts one batch. The caller is responsible for chunking to the
// provider's batch limit; a batch here maps to exactly one HTTP request.
func (c *ExpoPushClient) Send(ctx context.Context, messages []PushMessage) ([]PushTicket, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("encode push batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("push provider request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read push response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("push provider status %d: %s", resp.StatusCode, string(body))
	}

	var decoded expoPushResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode push response: %w", err)
	}
	return decoded.Data, nil
}

// IsValidExpoPushToken reports whether a stored token looks like an Expo push
// token. Anything else is skipped rather than sent to the provider.
func IsValidExpoPushToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken[") && strings.HasSuffix(token, "]") && len(token) > len("ExponentPushToken[]")
}

// ChunkPushMessages splits messages into provider-sized batches.
func ChunkPushMessages(messages []PushMessage, size int) [][]PushMessage {
	if size <= 0 {
		size = 100
	}
	var chunks [][]PushMessage
	for start := 0; start < len(messages); start += size {
		end := start + size
		if end > len(messages) {
			end = len(messages)
		}
		chunks = append(chunks, messages[start:end])
	}
	return chunks
}
