// Package chat talks to the messaging-platform gateway: listing
// monitored chats, fetching message history batches, downloading media
// and resolving user entities.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/event-harvester/internal/models"
	"github.com/event-harvester/pkg/logger"
	"github.com/event-harvester/pkg/ratelimit"
)

// ErrMediaExpired signals that a media reference is no longer valid on
// the platform side. The pipeline treats this as fatal for the source.
var ErrMediaExpired = errors.New("media reference expired")

// SourceInfo describes one chat the gateway exposes
type SourceInfo struct {
	ChatID   int64   `json:"chat_id"`
	Name     string  `json:"name"`
	Kind     string  `json:"kind"` // chat, channel, forum
	TopicIDs []int64 `json:"topic_ids,omitempty"`
}

// Entity is a resolved user or chat identity
type Entity struct {
	DisplayName string `json:"display_name"`
	Handle      string `json:"handle"`
}

// Client is the messaging gateway API client
type Client struct {
	baseURL    string
	token      string
	batchLimit int
	httpClient *http.Client
	limiter    *ratelimit.MultiLimiter
	log        *logger.Logger
}

// NewClient creates a new gateway client
func NewClient(baseURL, token string, batchLimit int, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Client {
	if batchLimit <= 0 {
		batchLimit = 100
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		batchLimit: batchLimit,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		limiter: limiter,
		log:     log.WithComponent("chat"),
	}
}

// ListSources returns all chats the gateway account can read
func (c *Client) ListSources(ctx context.Context) ([]SourceInfo, error) {
	var sources []SourceInfo
	if err := c.get(ctx, "/chats", nil, &sources); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}

// FetchMessages returns a bounded batch of messages newer than afterID,
// newest first, as the platform delivers them.
func (c *Client) FetchMessages(ctx context.Context, chatID int64, afterID int64) ([]models.Message, error) {
	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", c.batchLimit))
	if afterID > 0 {
		params.Set("after_id", fmt.Sprintf("%d", afterID))
	}

	var messages []models.Message
	if err := c.get(ctx, fmt.Sprintf("/chats/%d/messages", chatID), params, &messages); err != nil {
		return nil, fmt.Errorf("fetch messages for chat %d: %w", chatID, err)
	}

	c.log.Debug().
		Int64("chat_id", chatID).
		Int64("after_id", afterID).
		Int("count", len(messages)).
		Msg("Fetched message batch")
	return messages, nil
}

// DownloadMedia fetches the bytes behind a media reference. A gone
// reference returns ErrMediaExpired.
func (c *Client) DownloadMedia(ctx context.Context, ref string) ([]byte, error) {
	if err := c.limiter.Wait(ctx, ratelimit.LimiterChat); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/media/"+url.PathEscape(ref), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download media %s: %w", ref, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return io.ReadAll(resp.Body)
	case http.StatusNotFound, http.StatusGone:
		return nil, fmt.Errorf("media %s: %w", ref, ErrMediaExpired)
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gateway error (status %d): %s", resp.StatusCode, string(body))
	}
}

// ResolveEntity resolves a user ID or handle to its display identity
func (c *Client) ResolveEntity(ctx context.Context, idOrHandle string) (*Entity, error) {
	var entity Entity
	if err := c.get(ctx, "/entities/"+url.PathEscape(idOrHandle), nil, &entity); err != nil {
		return nil, fmt.Errorf("resolve entity %s: %w", idOrHandle, err)
	}
	return &entity, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx, ratelimit.LimiterChat); err != nil {
		return fmt.Errorf("rate limit error: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gateway error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
