package domain

import (
	"fmt"
	"strings"
	"time"
)

// Document represents one scraped page of the website. The URL is the
// natural key: re-scraping the same URL overwrites title and body and
// bumps UpdatedAt.
type Document struct {
	ID        int64
	URL       string
	Title     string
	Body      string
	ScrapedAt time.Time
	UpdatedAt time.Time
}

// NewDocument creates a new Document instance
func NewDocument(url, title, body string, scrapedAt time.Time) *Document {
	return &Document{
		URL:       url,
		Title:     title,
		Body:      body,
		ScrapedAt: scrapedAt,
		UpdatedAt: scrapedAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if strings.TrimSpace(d.URL) == "" {
		return fmt.Errorf("document URL is required")
	}

	if strings.TrimSpace(d.Body) == "" {
		return fmt.Errorf("document Body is required")
	}

	return nil
}

// EmbeddingText returns the text that is chunked and embedded for a
// document. The title is prepended so chunks keep page-level context.
func (d *Document) EmbeddingText() string {
	if strings.TrimSpace(d.Title) == "" {
		return d.Body
	}
	return d.Title + "\n\n" + d.Body
}
