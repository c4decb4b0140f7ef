package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/event-harvester/internal/builder"
	"github.com/event-harvester/internal/chat"
	"github.com/event-harvester/internal/correlate"
	"github.com/event-harvester/internal/dedup"
	"github.com/event-harvester/internal/imagehash"
	"github.com/event-harvester/internal/markup"
	"github.com/event-harvester/internal/models"
	"github.com/event-harvester/pkg/logger"
)

// SourceResult summarizes one source's run
type SourceResult struct {
	Fetched int
	Created int
	Merged  int
	Skipped int
}

// Processor runs the full per-source pipeline: fetch messages, render
// markup, correlate adjacent content, extract, build, merge, persist.
type Processor struct {
	chat      ChatClient
	extractor Extractor
	uploader  Uploader
	merger    Merger
	store     Store
	builder   *builder.Builder
	imageGate int
	log       *logger.Logger
	now       func() time.Time
}

// NewProcessor creates a per-source processor
func NewProcessor(
	chatClient ChatClient,
	extractor Extractor,
	uploader Uploader,
	merger Merger,
	store Store,
	b *builder.Builder,
	log *logger.Logger,
) *Processor {
	return &Processor{
		chat:      chatClient,
		extractor: extractor,
		uploader:  uploader,
		merger:    merger,
		store:     store,
		builder:   b,
		imageGate: imagehash.DefaultThreshold,
		log:       log.WithComponent("pipeline"),
		now:       time.Now,
	}
}

// ProcessSource drains all new messages of one source, oldest first, and
// updates the source's checkpoint state. Skip conditions and transient
// collaborator failures only drop the message at hand; a fatal error
// aborts the source and is recorded on its checkpoint.
func (p *Processor) ProcessSource(ctx context.Context, src *models.Source) (*SourceResult, error) {
	log := p.log.WithSource(src.ChatID, src.Name)
	result := &SourceResult{}

	messages, err := p.chat.FetchMessages(ctx, src.ChatID, src.LastMessageID)
	if err != nil {
		src.LastError = err.Error()
		if updateErr := p.store.UpdateSource(ctx, src); updateErr != nil {
			log.Error().Err(updateErr).Msg("Failed to record source error")
		}
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	result.Fetched = len(messages)

	messages = filterTopics(messages, src.TopicIDs)
	// Oldest first, so correlation windows and consumed-ID bookkeeping
	// behave deterministically
	sort.Slice(messages, func(i, j int) bool { return messages[i].ID < messages[j].ID })

	consumed := make(map[int64]bool)
	for _, msg := range messages {
		if consumed[msg.ID] {
			p.checkpoint(src, msg)
			continue
		}
		if msg.Text == "" && !msg.HasImage() {
			p.checkpoint(src, msg)
			continue
		}

		outcome, err := p.processMessage(ctx, log, src, msg, messages, consumed)
		if err != nil {
			src.LastError = err.Error()
			if updateErr := p.store.UpdateSource(ctx, src); updateErr != nil {
				log.Error().Err(updateErr).Msg("Failed to record source error")
			}
			return result, &FatalSourceError{SourceName: src.Name, Err: err}
		}
		switch outcome {
		case outcomeCreated:
			result.Created++
		case outcomeMerged:
			result.Merged++
		default:
			result.Skipped++
		}
		p.checkpoint(src, msg)
	}

	now := p.now()
	src.LastRunAt = &now
	src.LastError = ""
	if err := p.store.UpdateSource(ctx, src); err != nil {
		return result, fmt.Errorf("update source checkpoint: %w", err)
	}

	log.Info().
		Int("fetched", result.Fetched).
		Int("created", result.Created).
		Int("merged", result.Merged).
		Int("skipped", result.Skipped).
		Msg("Source completed")
	return result, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeCreated
	outcomeMerged
)

// processMessage handles one trigger message. It returns an error only
// for fatal conditions; everything else resolves to a skip.
func (p *Processor) processMessage(
	ctx context.Context,
	log *logger.Logger,
	src *models.Source,
	trigger models.Message,
	window []models.Message,
	consumed map[int64]bool,
) (outcome, error) {
	mlog := log.WithMessageID(trigger.ID)

	related := correlate.Gather(trigger, window)

	images, err := p.downloadImages(ctx, mlog, trigger, related)
	if err != nil {
		return outcomeSkipped, err
	}

	combined := related.CombinedText(trigger.Text)
	if combined == "" && len(images) == 0 {
		return outcomeSkipped, nil
	}

	fields, err := p.extractor.Extract(ctx, combined, trigger.SentAt, images)
	if err != nil {
		mlog.Warn().Err(err).Msg("Extraction failed, skipping message")
		return outcomeSkipped, nil
	}

	cand, err := p.builder.Build(ctx, builder.Input{
		Fields:      *fields,
		Description: renderDescription(trigger, related),
		Trigger:     trigger,
		Source:      src,
		AdjacentIDs: related.ConsumedIDs(),
	})
	if err != nil {
		if errors.Is(err, builder.ErrSkip) {
			mlog.Info().Err(err).Msg("Message yields no candidate")
			return outcomeSkipped, nil
		}
		mlog.Warn().Err(err).Msg("Candidate build failed, skipping message")
		return outcomeSkipped, nil
	}

	cand.Event.ImageURLs = p.uploadImages(ctx, mlog, cand.Event.Slug, images)

	out, err := p.persist(ctx, mlog, cand)
	if err != nil {
		mlog.Error().Err(err).Msg("Failed to persist candidate")
		return outcomeSkipped, nil
	}

	for _, id := range cand.ConsumedIDs {
		consumed[id] = true
	}
	return out, nil
}

// downloadImages fetches the trigger's and all correlated images. An
// expired media reference is fatal for the source; other download
// failures just drop that one image.
func (p *Processor) downloadImages(ctx context.Context, mlog *logger.Logger, trigger models.Message, related correlate.Related) ([][]byte, error) {
	refs := make([]string, 0, len(related.Images)+1)
	if trigger.HasImage() {
		refs = append(refs, trigger.MediaRef)
	}
	for _, m := range related.Images {
		refs = append(refs, m.MediaRef)
	}

	var images [][]byte
	for _, ref := range refs {
		data, err := p.chat.DownloadMedia(ctx, ref)
		if err != nil {
			if errors.Is(err, chat.ErrMediaExpired) {
				return nil, err
			}
			mlog.Warn().Err(err).Str("media_ref", ref).Msg("Image download failed, continuing without it")
			continue
		}
		images = append(images, data)
	}
	return images, nil
}

// uploadImages fingerprints and stores the candidate's images, skipping
// near-duplicates within the candidate itself (the same flyer posted
// twice lands once).
func (p *Processor) uploadImages(ctx context.Context, mlog *logger.Logger, slug string, images [][]byte) models.StringSlice {
	var urls models.StringSlice
	for _, data := range images {
		token, encoded, err := imagehash.Fingerprint(data)
		if err != nil {
			mlog.Warn().Err(err).Msg("Unusable image, skipping")
			continue
		}
		url, err := p.uploader.Upload(ctx, encoded, slug, token)
		if err != nil {
			mlog.Warn().Err(err).Msg("Image upload failed, skipping")
			continue
		}
		urls = dedup.UnionImages(urls, []string{url}, p.imageGate)
	}
	return urls
}

// persist inserts the candidate or merges it into the persisted event
// with the same slug.
func (p *Processor) persist(ctx context.Context, mlog *logger.Logger, cand *builder.Candidate) (outcome, error) {
	existing, err := p.store.FindEventBySlug(ctx, cand.Event.Slug)
	if err != nil {
		return outcomeSkipped, fmt.Errorf("lookup slug %s: %w", cand.Event.Slug, err)
	}
	if existing == nil {
		if err := p.store.CreateEvent(ctx, &cand.Event); err != nil {
			return outcomeSkipped, fmt.Errorf("create event %s: %w", cand.Event.Slug, err)
		}
		mlog.Info().Str("slug", cand.Event.Slug).Msg("Created event")
		return outcomeCreated, nil
	}
	if _, err := p.merger.MergeBySlug(ctx, existing, &cand.Event); err != nil {
		return outcomeSkipped, fmt.Errorf("merge into %s: %w", cand.Event.Slug, err)
	}
	mlog.Info().Str("slug", cand.Event.Slug).Msg("Merged candidate into existing event")
	return outcomeMerged, nil
}

// renderDescription renders the trigger's text and all adjacent text to
// markup, blank-line separated.
func renderDescription(trigger models.Message, related correlate.Related) string {
	parts := make([]string, 0, len(related.Texts)+1)
	if trigger.Text != "" {
		parts = append(parts, markup.Render(trigger.Text, trigger.Entities))
	}
	for _, m := range related.Texts {
		parts = append(parts, markup.Render(m.Text, m.Entities))
	}
	out := ""
	for i, part := range parts {
		if i > 0 {
			out += "<br/><br/>"
		}
		out += part
	}
	return out
}

func (p *Processor) checkpoint(src *models.Source, msg models.Message) {
	src.Advance(msg.ID, msg.SentAt)
	src.MessagesConsumed++
}

func filterTopics(messages []models.Message, topicIDs []int64) []models.Message {
	if len(topicIDs) == 0 {
		return messages
	}
	allowed := make(map[int64]bool, len(topicIDs))
	for _, id := range topicIDs {
		allowed[id] = true
	}
	var out []models.Message
	for _, m := range messages {
		if allowed[m.TopicID] {
			out = append(out, m)
		}
	}
	return out
}
