package listings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AReid987/real-estate-agents/pkg/clients"
	"github.com/AReid987/real-estate-agents/pkg/config"
	"github.com/AReid987/real-estate-agents/pkg/logging"
	"github.com/AReid987/real-estate-agents/pkg/models"
)

// FeedListing is one entry in the external listing feed
type FeedListing struct {
	SourceID    string             `json:"source_id"`
	Address     models.JSONB       `json:"address"`
	Price       *float64           `json:"price,omitempty"`
	Beds        *int               `json:"beds,omitempty"`
	Baths       *int               `json:"baths,omitempty"`
	Sqft        *int               `json:"sqft,omitempty"`
	Description *string            `json:"description,omitempty"`
	KeyFeatures models.JSONBArray  `json:"key_features,omitempty"`
	ImageURLs   models.JSONBArray  `json:"image_urls,omitempty"`
	Status      string             `json:"status,omitempty"`
}

// Source fetches the current set of listings from an external feed
type Source interface {
	Fetch(ctx context.Context) ([]FeedListing, string, error)
}

// HTTPSource reads a JSON array of listings from LISTING_SOURCE_URL
type HTTPSource struct {
	client *http.Client
	url    string
	retry  clients.RetryConfig
}

func NewHTTPSourceFromEnv() *HTTPSource {
	return NewHTTPSource(config.GetEnv("LISTING_SOURCE_URL", ""))
}

func NewHTTPSource(feedURL string) *HTTPSource {
	return &HTTPSource{
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: clients.DefaultTransport(),
		},
		url:   feedURL,
		retry: clients.SingleRetryConfig(),
	}
}

// IsConfigured reports whether a feed URL is set
func (s *HTTPSource) IsConfigured() bool {
	return s.url != ""
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]FeedListing, string, error) {
	if !s.IsConfigured() {
		return nil, "", fmt.Errorf("listing source is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := clients.DoWithRetry(ctx, s.client, req, s.retry)
	if err != nil {
		return nil, "", fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("feed returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var feed []FeedListing
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, "", fmt.Errorf("failed to decode feed: %w", err)
	}

	return feed, s.sourceName(), nil
}

func (s *HTTPSource) sourceName() string {
	if u, err := url.Parse(s.url); err == nil && u.Host != "" {
		return u.Host
	}
	return s.url
}

// Ingester upserts feed listings into the store and announces new ones to
// active agents.
type Ingester struct {
	db     *sql.DB
	logger logging.Logger
	source Source
}

func NewIngester(db *sql.DB, logger logging.Logger, source Source) *Ingester {
	return &Ingester{
		db:     db,
		logger: logger,
		source: source,
	}
}

// Result reports the outcome of one ingestion pass
type Result struct {
	ScrapedCount int    `json:"scraped_count"`
	SavedCount   int    `json:"saved_count"`
	UpdatedCount int    `json:"updated_count"`
	Source       string `json:"source"`
}

// ProcessNewListings pulls the feed and upserts every entry keyed on
// source_id. New listings trigger a new_listing notification for each
// active agent.
func (i *Ingester) ProcessNewListings(ctx context.Context) (*Result, error) {
	feed, sourceName, err := i.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{
		ScrapedCount: len(feed),
		Source:       sourceName,
	}

	for _, entry := range feed {
		if entry.SourceID == "" {
			i.logger.Warn("Skipping feed entry without source_id")
			continue
		}

		listingID, inserted, err := i.upsert(ctx, entry)
		if err != nil {
			i.logger.WithError(err).WithField("source_id", entry.SourceID).Error("Failed to upsert listing")
			continue
		}

		if inserted {
			result.SavedCount++
			if err := i.announceListing(ctx, entry, listingID); err != nil {
				i.logger.WithError(err).WithField("listing_id", listingID).Warn("Failed to announce new listing")
			}
		} else {
			result.UpdatedCount++
		}
	}

	i.logger.WithFields(logging.Fields{
		"source":        result.Source,
		"scraped_count": result.ScrapedCount,
		"saved_count":   result.SavedCount,
		"updated_count": result.UpdatedCount,
	}).Info("Listing ingestion completed")

	return result, nil
}

func (i *Ingester) upsert(ctx context.Context, entry FeedListing) (string, bool, error) {
	status := entry.Status
	if status == "" {
		status = "active"
	}
	address := entry.Address
	if address == nil {
		address = models.JSONB{}
	}
	features := entry.KeyFeatures
	if features == nil {
		features = models.JSONBArray{}
	}
	images := entry.ImageURLs
	if images == nil {
		images = models.JSONBArray{}
	}

	var listingID string
	var inserted bool
	err := i.db.QueryRowContext(ctx, `
		INSERT INTO listings (source_id, address, price, beds, baths, sqft, description, key_features, image_urls, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (source_id) DO UPDATE SET
			address = EXCLUDED.address,
			price = EXCLUDED.price,
			beds = EXCLUDED.beds,
			baths = EXCLUDED.baths,
			sqft = EXCLUDED.sqft,
			description = EXCLUDED.description,
			key_features = EXCLUDED.key_features,
			image_urls = EXCLUDED.image_urls,
			status = EXCLUDED.status,
			updated_at = NOW()
		RETURNING id, (xmax = 0)
	`, entry.SourceID, address, entry.Price, entry.Beds, entry.Baths, entry.Sqft,
		entry.Description, features, images, status).Scan(&listingID, &inserted)
	if err != nil {
		return "", false, fmt.Errorf("failed to upsert listing: %w", err)
	}

	return listingID, inserted, nil
}

func (i *Ingester) announceListing(ctx context.Context, entry FeedListing, listingID string) error {
	location := entry.SourceID
	if addr, ok := entry.Address["full_address"].(string); ok && addr != "" {
		location = addr
	}
	message := fmt.Sprintf("New listing available for marketing: %s", location)

	_, err := i.db.ExecContext(ctx, `
		INSERT INTO notifications (agent_id, notification_type, message_text, related_entity_id)
		SELECT id, $1, $2, $3 FROM agents WHERE is_active = TRUE
	`, models.NotificationNewListing, message, listingID)
	if err != nil {
		return fmt.Errorf("failed to insert listing notifications: %w", err)
	}
	return nil
}

// GetActiveListings returns active listings, newest updates first
func (i *Ingester) GetActiveListings(ctx context.Context, limit, offset int) ([]models.Listing, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := i.db.QueryContext(ctx, `
		SELECT id, source_id, address, price, beds, baths, sqft, description,
		       key_features, image_urls, status, created_at, updated_at
		FROM listings
		WHERE status = 'active'
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	listings := []models.Listing{}
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(&l.ID, &l.SourceID, &l.Address, &l.Price, &l.Beds, &l.Baths, &l.Sqft,
			&l.Description, &l.KeyFeatures, &l.ImageURLs, &l.Status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read listings: %w", err)
	}

	return listings, nil
}
