// Package dedup finds duplicate event records and reconciles them. Two
// search strategies (image fingerprint proximity and description
// similarity) propose duplicate pairs among events sharing a start
// timestamp; one merge policy decides which record survives and how
// fields combine. The same policy serves both the online per-slug merge
// at ingestion and the offline batch reconciliation pass.
package dedup

import (
	"github.com/event-harvester/internal/imagehash"
	"github.com/event-harvester/internal/models"
)

// Config holds the dedup thresholds and the website source trust order
type Config struct {
	ImageThreshold  int      // max Hamming distance for the same photo
	TextThreshold   float64  // min trigram similarity for the same text
	WebsitePriority []string // known website sources, most trusted last
}

// DefaultConfig returns the default dedup configuration
func DefaultConfig() Config {
	return Config{
		ImageThreshold: imagehash.DefaultThreshold,
		TextThreshold:  0.5,
	}
}

// Resolution is the outcome of the merge policy for one duplicate pair.
// A nil Survivor means the pair is left alone. When FieldsMerged is
// false the loser is deleted outright without absorbing any fields.
type Resolution struct {
	Survivor     *models.Event
	Loser        *models.Event
	FieldsMerged bool
}

// Resolve applies the merge policy to a duplicate pair. It is a pure
// function over the two snapshots: the survivor it returns is a modified
// copy, and the caller persists the survivor and deletes the loser.
//
// Policy, in order:
//  1. Both events from the same website source: leave alone. Two finds
//     within one crawl of an authoritative source are a coincidence,
//     not a duplicate.
//  2. Either event website-sourced: the website event survives; between
//     two website sources the trust order decides. The loser is deleted
//     without any field merge, website data is assumed complete.
//  3. Both from messaging: the longer description survives and absorbs
//     the loser's fields; ties favor the first argument.
func Resolve(a, b *models.Event, cfg Config) Resolution {
	aWeb := !a.IsChatSourced()
	bWeb := !b.IsChatSourced()

	if aWeb && bWeb {
		if a.Source == b.Source {
			return Resolution{}
		}
		if websiteRank(b.Source, cfg) > websiteRank(a.Source, cfg) {
			return Resolution{Survivor: copyOf(b), Loser: a}
		}
		return Resolution{Survivor: copyOf(a), Loser: b}
	}
	if aWeb {
		return Resolution{Survivor: copyOf(a), Loser: b}
	}
	if bWeb {
		return Resolution{Survivor: copyOf(b), Loser: a}
	}

	surv, loser := a, b
	if descLen(b) > descLen(a) {
		surv, loser = b, a
	}
	merged := copyOf(surv)
	absorb(merged, loser, cfg.ImageThreshold)
	return Resolution{Survivor: merged, Loser: loser, FieldsMerged: true}
}

// websiteRank returns the trust rank of a website source. Higher is more
// trusted; sources missing from the priority list rank lowest.
func websiteRank(source string, cfg Config) int {
	for i, s := range cfg.WebsitePriority {
		if s == source {
			return i
		}
	}
	return -1
}

func descLen(e *models.Event) int {
	return len(e.Description)
}

func copyOf(e *models.Event) *models.Event {
	c := *e
	c.Address = append(models.StringSlice{}, e.Address...)
	c.Tags = append(models.StringSlice{}, e.Tags...)
	c.ImageURLs = append(models.StringSlice{}, e.ImageURLs...)
	c.Rooms = append(models.StringSlice{}, e.Rooms...)
	return &c
}

// absorb copies into the survivor every attribute that is empty there
// but present on the loser, unions the array-valued attributes, and
// appends only those loser images whose fingerprint is not already
// represented on the survivor.
func absorb(surv, loser *models.Event, imageThreshold int) {
	if surv.Summary == "" {
		surv.Summary = loser.Summary
	}
	if surv.Price == "" {
		surv.Price = loser.Price
	}
	if surv.Contact == "" {
		surv.Contact = loser.Contact
	}
	if surv.HostName == "" {
		surv.HostName = loser.HostName
	}
	if surv.HostLink == "" {
		surv.HostLink = loser.HostLink
	}
	if surv.EndAt == nil {
		surv.EndAt = loser.EndAt
	}
	if surv.Lat == nil || surv.Lng == nil {
		surv.Lat = loser.Lat
		surv.Lng = loser.Lng
	}

	// Keep the longer of the two addresses
	if joinedLen(loser.Address) > joinedLen(surv.Address) {
		surv.Address = append(models.StringSlice{}, loser.Address...)
	}

	surv.Tags = unionStrings(surv.Tags, loser.Tags)
	surv.Rooms = unionStrings(surv.Rooms, loser.Rooms)
	surv.ImageURLs = UnionImages(surv.ImageURLs, loser.ImageURLs, imageThreshold)
}

// UnionImages appends candidate image URLs to the existing list,
// skipping exact duplicates and images whose embedded fingerprint is
// within threshold of one already present.
func UnionImages(existing, candidates []string, threshold int) models.StringSlice {
	out := append(models.StringSlice{}, existing...)
	for _, url := range candidates {
		if containsString(out, url) {
			continue
		}
		if nearDuplicateImage(out, url, threshold) {
			continue
		}
		out = append(out, url)
	}
	return out
}

func nearDuplicateImage(existing []string, url string, threshold int) bool {
	token, ok := imagehash.TokenFromURL(url)
	if !ok {
		return false
	}
	for _, have := range existing {
		haveToken, ok := imagehash.TokenFromURL(have)
		if !ok {
			continue
		}
		if d, err := imagehash.Distance(token, haveToken); err == nil && d <= threshold {
			return true
		}
	}
	return false
}

func unionStrings(a, b []string) models.StringSlice {
	out := append(models.StringSlice{}, a...)
	for _, s := range b {
		if !containsString(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, have := range list {
		if have == s {
			return true
		}
	}
	return false
}

func joinedLen(lines []string) int {
	n := 0
	for _, l := range lines {
		n += len(l)
	}
	return n
}
