package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AReid987/real-estate-agents/pkg/llm"
	"github.com/AReid987/real-estate-agents/pkg/logging"
	"github.com/AReid987/real-estate-agents/pkg/models"
)

const generateTimeout = 60 * time.Second

const systemPrompt = "You are a real estate marketing copywriter. " +
	"Respond with a JSON object containing the keys text, hashtags (array of strings) and call_to_action."

// Generator produces marketing copy for a listing and stores it as a draft
// content piece. When no LLM provider is configured it falls back to a
// deterministic template so the workflow stays usable.
type Generator struct {
	db       *sql.DB
	logger   logging.Logger
	provider llm.Provider
}

func NewGenerator(db *sql.DB, logger logging.Logger, provider llm.Provider) *Generator {
	return &Generator{
		db:       db,
		logger:   logger,
		provider: provider,
	}
}

// Generate creates a draft content piece for the listing. The agent must
// exist; the listing must exist.
func (g *Generator) Generate(ctx context.Context, listingID, contentType, agentID string) (*models.ContentPiece, error) {
	var exists string
	err := g.db.QueryRowContext(ctx, `SELECT id FROM agents WHERE id = $1`, agentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("agent", agentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check agent: %w", err)
	}

	listing, err := g.loadListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	generated := g.generateText(ctx, listing, contentType)

	piece := &models.ContentPiece{
		ListingID:     &listingID,
		AgentID:       agentID,
		ContentType:   contentType,
		GeneratedText: generated,
		Status:        models.ContentStatusDraft,
	}
	err = g.db.QueryRowContext(ctx, `
		INSERT INTO content_pieces (listing_id, agent_id, content_type, generated_text, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, listingID, agentID, contentType, generated, models.ContentStatusDraft).Scan(&piece.ID, &piece.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert content piece: %w", err)
	}

	g.logger.WithFields(logging.Fields{
		"content_piece_id": piece.ID,
		"listing_id":       listingID,
		"content_type":     contentType,
	}).Info("Content generated")

	return piece, nil
}

func (g *Generator) loadListing(ctx context.Context, listingID string) (models.Listing, error) {
	var l models.Listing
	err := g.db.QueryRowContext(ctx, `
		SELECT id, source_id, address, price, beds, baths, sqft, description, key_features
		FROM listings WHERE id = $1
	`, listingID).Scan(&l.ID, &l.SourceID, &l.Address, &l.Price, &l.Beds, &l.Baths, &l.Sqft, &l.Description, &l.KeyFeatures)
	if errors.Is(err, sql.ErrNoRows) {
		return l, models.NewNotFound("listing", listingID)
	}
	if err != nil {
		return l, fmt.Errorf("failed to load listing: %w", err)
	}
	return l, nil
}

func (g *Generator) generateText(ctx context.Context, listing models.Listing, contentType string) models.JSONB {
	if g.provider == nil {
		return fallbackContent(listing)
	}

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	raw, err := g.provider.Complete(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildPrompt(listing, contentType)},
	})
	if err != nil {
		g.logger.WithError(err).WithField("listing_id", listing.ID).Warn("LLM generation failed, using template content")
		return fallbackContent(listing)
	}

	parsed, err := parseGenerated(raw)
	if err != nil {
		g.logger.WithError(err).WithField("listing_id", listing.ID).Warn("Unparseable LLM output, using template content")
		return fallbackContent(listing)
	}
	return parsed
}

func buildPrompt(listing models.Listing, contentType string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a %s for this property listing.\n", contentType)
	if addr, ok := listing.Address["full_address"].(string); ok && addr != "" {
		fmt.Fprintf(&b, "Address: %s\n", addr)
	}
	if listing.Price != nil {
		fmt.Fprintf(&b, "Price: $%.0f\n", *listing.Price)
	}
	if listing.Beds != nil {
		fmt.Fprintf(&b, "Bedrooms: %d\n", *listing.Beds)
	}
	if listing.Baths != nil {
		fmt.Fprintf(&b, "Bathrooms: %d\n", *listing.Baths)
	}
	if listing.Sqft != nil {
		fmt.Fprintf(&b, "Square feet: %d\n", *listing.Sqft)
	}
	if listing.Description != nil && *listing.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", *listing.Description)
	}
	if len(listing.KeyFeatures) > 0 {
		features := make([]string, 0, len(listing.KeyFeatures))
		for _, f := range listing.KeyFeatures {
			if s, ok := f.(string); ok {
				features = append(features, s)
			}
		}
		fmt.Fprintf(&b, "Key features: %s\n", strings.Join(features, ", "))
	}
	return b.String()
}

// parseGenerated extracts the {text, hashtags, call_to_action} object from
// the model output, tolerating surrounding prose or code fences.
func parseGenerated(raw string) (models.JSONB, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in output")
	}

	var parsed models.JSONB
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON in output: %w", err)
	}
	if _, ok := parsed["text"].(string); !ok {
		return nil, fmt.Errorf("output missing text field")
	}
	return parsed, nil
}

func fallbackContent(listing models.Listing) models.JSONB {
	location := listing.SourceID
	if addr, ok := listing.Address["full_address"].(string); ok && addr != "" {
		location = addr
	}
	return models.JSONB{
		"text":           fmt.Sprintf("Beautiful property at %s! Perfect for your next home.", location),
		"hashtags":       []interface{}{"#RealEstate", "#DreamHome", "#ForSale"},
		"call_to_action": "Contact us today for a showing!",
	}
}
