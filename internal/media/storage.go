// Package media stores event images in the object store. Images live
// under {slug}/{fingerprintToken}.jpg so the perceptual fingerprint can
// be recovered from any stored image URL.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/event-harvester/pkg/logger"
	"github.com/event-harvester/pkg/ratelimit"
)

// Image is one stored object as the store lists it
type Image struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

// Storage is the object-store surface the pipeline and the cleanup job use
type Storage interface {
	Upload(ctx context.Context, data []byte, slug, fingerprintToken string) (string, error)
	Delete(ctx context.Context, publicIDs []string) error
	List(ctx context.Context) ([]Image, error)
}

// Client is an HTTP object-storage client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *ratelimit.MultiLimiter
	log        *logger.Logger
}

// NewClient creates a new object storage client
func NewClient(baseURL, apiKey string, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		limiter: limiter,
		log:     log.WithComponent("media"),
	}
}

// Upload stores the image bytes under the event slug and fingerprint
// token and returns the public URL.
func (c *Client) Upload(ctx context.Context, data []byte, slug, fingerprintToken string) (string, error) {
	if err := c.limiter.Wait(ctx, ratelimit.LimiterStorage); err != nil {
		return "", fmt.Errorf("rate limit error: %w", err)
	}

	key := fmt.Sprintf("%s/%s.jpg", url.PathEscape(slug), url.PathEscape(fingerprintToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/images/"+key, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("storage error (status %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}

	c.log.Debug().Str("slug", slug).Str("token", fingerprintToken).Msg("Uploaded image")
	return result.URL, nil
}

// Delete removes the given objects from the store
func (c *Client) Delete(ctx context.Context, publicIDs []string) error {
	if len(publicIDs) == 0 {
		return nil
	}
	if err := c.limiter.Wait(ctx, ratelimit.LimiterStorage); err != nil {
		return fmt.Errorf("rate limit error: %w", err)
	}

	payload, err := json.Marshal(map[string][]string{"public_ids": publicIDs})
	if err != nil {
		return fmt.Errorf("failed to encode delete request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/delete", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete images: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("storage error (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// List returns every stored object. Used by the unused-image cleanup.
func (c *Client) List(ctx context.Context) ([]Image, error) {
	if err := c.limiter.Wait(ctx, ratelimit.LimiterStorage); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/images", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("storage error (status %d): %s", resp.StatusCode, string(body))
	}

	var images []Image
	if err := json.NewDecoder(resp.Body).Decode(&images); err != nil {
		return nil, fmt.Errorf("failed to decode list response: %w", err)
	}
	return images, nil
}
