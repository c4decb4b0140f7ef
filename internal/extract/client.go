// Package extract calls the structured extraction service: an LLM that
// turns one combined announcement text (plus any flyer images) into
// structured event fields.
package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/event-harvester/internal/config"
	"github.com/event-harvester/internal/models"
	"github.com/event-harvester/pkg/logger"
	"github.com/event-harvester/pkg/ratelimit"
)

// Client wraps the Anthropic SDK client
type Client struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	rateLimiter *ratelimit.MultiLimiter
	log         *logger.Logger
}

// NewClient creates a new extraction client
func NewClient(cfg config.ExtractConfig, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Client {
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
	)

	return &Client{
		client:      client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		rateLimiter: limiter,
		log:         log.WithComponent("extract"),
	}
}

// Extract sends the combined announcement text and flyer images to the
// model and parses the structured event fields out of the response. The
// rate limiter enforces the pacing delay before every call.
func (c *Client) Extract(ctx context.Context, text string, referenceDate time.Time, images [][]byte) (*models.Fields, error) {
	if err := c.rateLimiter.Wait(ctx, ratelimit.LimiterExtract); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	content := []anthropic.ContentBlockParamUnion{
		anthropic.NewTextBlock(fmt.Sprintf(UserPrompt, referenceDate.Format("2006-01-02 15:04"), text)),
	}
	for _, img := range images {
		content = append(content, anthropic.NewImageBlockBase64("image/jpeg", base64.StdEncoding.EncodeToString(img)))
	}

	c.log.Debug().
		Str("model", c.model).
		Int("text_len", len(text)).
		Int("images", len(images)).
		Msg("Sending extraction request")

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		System: []anthropic.TextBlockParam{
			{
				Type: "text",
				Text: SystemPrompt,
			},
		},
		Messages: []anthropic.MessageParam{
			{
				Role:    anthropic.MessageParamRoleUser,
				Content: content,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extraction API error: %w", err)
	}

	var response string
	for _, block := range message.Content {
		textBlock := block.AsText()
		if textBlock.Text != "" {
			response += textBlock.Text
		}
	}

	fields, err := parseResponse(response, referenceDate)
	if err != nil {
		c.log.Error().Err(err).Str("response", response).Msg("Failed to parse extraction response")
		return nil, err
	}
	return fields, nil
}

// wireFields is the JSON shape the model responds with
type wireFields struct {
	HasEventData    bool     `json:"has_event_data"`
	CanonicalSource string   `json:"canonical_source"`
	Name            string   `json:"name"`
	Summary         string   `json:"summary"`
	Start           string   `json:"start"`
	End             string   `json:"end"`
	Venue           string   `json:"venue"`
	Street          string   `json:"street"`
	City            string   `json:"city"`
	Price           string   `json:"price"`
	Contact         string   `json:"contact"`
	ContactIsAuthor bool     `json:"contact_is_author"`
	Tags            []string `json:"tags"`
}

func parseResponse(response string, referenceDate time.Time) (*models.Fields, error) {
	var wire wireFields
	if err := json.Unmarshal([]byte(stripMarkdownCodeBlock(response)), &wire); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	fields := &models.Fields{
		HasEventData:    wire.HasEventData,
		CanonicalSource: wire.CanonicalSource,
		Name:            strings.TrimSpace(wire.Name),
		Summary:         strings.TrimSpace(wire.Summary),
		Venue:           wire.Venue,
		Street:          wire.Street,
		City:            wire.City,
		Price:           strings.TrimSpace(wire.Price),
		Contact:         strings.TrimSpace(wire.Contact),
		ContactIsAuthor: wire.ContactIsAuthor,
		Tags:            wire.Tags,
	}
	fields.StartAt = parseWhen(wire.Start, referenceDate.Location())
	fields.EndAt = parseWhen(wire.End, referenceDate.Location())
	return fields, nil
}

var whenLayouts = []string{
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseWhen(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range whenLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t
		}
	}
	return nil
}

// stripMarkdownCodeBlock removes markdown code block delimiters from
// model responses, keeping just the JSON object.
func stripMarkdownCodeBlock(response string) string {
	response = strings.TrimSpace(response)

	startIdx := strings.Index(response, "{")
	if startIdx == -1 {
		return response
	}
	endIdx := strings.LastIndex(response, "}")
	if endIdx == -1 || endIdx < startIdx {
		return response
	}
	return response[startIdx : endIdx+1]
}
