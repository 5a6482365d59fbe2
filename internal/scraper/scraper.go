// Package scraper fetches story pages and extracts their metadata from
// OpenGraph and article meta tags.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/samvad-hq/samvad-story-service/internal/domain"
	"github.com/samvad-hq/samvad-story-service/internal/logger"
	"github.com/samvad-hq/samvad-story-service/pkg/httpclient"
)

const (
	maxHTMLBodyBytes = 1 << 20 // 1 MiB
	maxErrorSnippet  = 1024
)

var defaultHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml",
	"Accept-Language": "en",
}

// MetadataWriter persists scraped metadata on a story.
type MetadataWriter interface {
	UpdateStoryMetadata(tenantID, id string, md *domain.StoryMetadata, now time.Time) (*domain.Story, error)
}

// Scraper fetches story pages and writes the extracted metadata back.
type Scraper struct {
	client httpclient.Client
	store  MetadataWriter
	log    logger.Logger
	now    func() time.Time
}

// New constructs a scraper. A nil client falls back to a resty client with
// a short timeout.
func New(client httpclient.Client, store MetadataWriter, log logger.Logger) *Scraper {
	if client == nil {
		client = httpclient.NewRestyClient(httpclient.Options{Timeout: 10 * time.Second})
	}
	return &Scraper{client: client, store: store, log: logger.Ensure(log), now: time.Now}
}

// Scrape fetches storyURL, parses its metadata and stores it on the story.
// It returns the updated story, or nil if the story no longer exists.
func (s *Scraper) Scrape(ctx context.Context, tenantID, storyID, storyURL string) (*domain.Story, error) {
	md, err := s.Fetch(ctx, storyURL)
	if err != nil {
		return nil, err
	}

	story, err := s.store.UpdateStoryMetadata(tenantID, storyID, md, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("store metadata: %w", err)
	}

	s.log.DebugObj("story scraped", "story_scrape", map[string]any{
		"tenant_id": tenantID,
		"story_id":  storyID,
		"url":       storyURL,
		"title":     md.Title,
	})
	return story, nil
}

// Fetch downloads storyURL and returns its metadata without storing it.
func (s *Scraper) Fetch(ctx context.Context, storyURL string) (*domain.StoryMetadata, error) {
	resp, err := s.client.Get(ctx, storyURL, defaultHeaders)
	if err != nil {
		return nil, fmt.Errorf("http fetch: %w", err)
	}

	if resp.StatusCode() != 200 {
		snippet := strings.TrimSpace(string(resp.Body()))
		if len(snippet) > maxErrorSnippet {
			snippet = snippet[:maxErrorSnippet]
		}
		return nil, fmt.Errorf("status %d body: %s", resp.StatusCode(), snippet)
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	pm, err := parseMeta(body)
	if err != nil {
		return nil, err
	}
	return pm.toMetadata(storyURL), nil
}

type pageMeta struct {
	Title       string
	Author      string
	Description string
	ImageURL    string
	Section     string
	Published   string
	Modified    string
}

func parseMeta(body []byte) (pageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pageMeta{}, fmt.Errorf("parse html: %w", err)
	}

	extract := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	return pageMeta{
		Title: firstNonEmpty(
			extract(`meta[property="og:title"]`),
			extract(`meta[name="twitter:title"]`),
			strings.TrimSpace(doc.Find("title").First().Text()),
		),
		Author: firstNonEmpty(
			extract(`meta[property="article:author"]`),
			extract(`meta[name="author"]`),
		),
		Description: firstNonEmpty(
			extract(`meta[property="og:description"]`),
			extract(`meta[name="description"]`),
		),
		ImageURL: firstNonEmpty(
			extract(`meta[property="og:image"]`),
			extract(`meta[name="twitter:image"]`),
		),
		Section:   extract(`meta[property="article:section"]`),
		Published: extract(`meta[property="article:published_time"]`),
		Modified:  extract(`meta[property="article:modified_time"]`),
	}, nil
}

func (pm pageMeta) toMetadata(base string) *domain.StoryMetadata {
	return &domain.StoryMetadata{
		Title:       pm.Title,
		Author:      pm.Author,
		Description: pm.Description,
		Image:       resolveURL(pm.ImageURL, base),
		Section:     pm.Section,
		PublishedAt: parseTime(pm.Published),
		ModifiedAt:  parseTime(pm.Modified),
	}
}

// resolveURL makes ref absolute against base. Unparsable refs are returned as is.
func resolveURL(ref, base string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if refURL.IsAbs() {
		return refURL.String()
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
