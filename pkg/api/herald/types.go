package herald

import (
	"time"

	"github.com/AReid987/real-estate-agents/pkg/models"
)

// GenerateContentRequest represents a request to generate marketing content
// for a listing
type GenerateContentRequest struct {
	ListingID   string `json:"listing_id" binding:"required"`
	AgentID     string `json:"agent_id" binding:"required"`
	ContentType string `json:"content_type"`
}

// GenerateContentResponse represents the response from content generation
type GenerateContentResponse struct {
	Content *models.ContentPiece `json:"content"`
}

// ApproveContentRequest represents an approval decision on a content piece
type ApproveContentRequest struct {
	ContentID string `json:"content_id" binding:"required"`
	AgentID   string `json:"agent_id" binding:"required"`
	Approved  bool   `json:"approved"`
	Feedback  string `json:"feedback,omitempty"`
}

// ApproveContentResponse represents the response from an approval decision
type ApproveContentResponse struct {
	ContentPieceID string               `json:"content_piece_id"`
	Approved       bool                 `json:"approved"`
	Status         models.ContentStatus `json:"status"`
	Feedback       string               `json:"feedback,omitempty"`
	ApprovalLogID  string               `json:"approval_log_id"`
}

// PendingApproval is one content piece awaiting a decision
type PendingApproval struct {
	ContentPieceID string       `json:"content_piece_id"`
	ContentType    string       `json:"content_type"`
	GeneratedText  models.JSONB `json:"generated_text"`
	ListingID      *string      `json:"listing_id,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// PendingApprovalsResponse lists content pieces awaiting a decision
type PendingApprovalsResponse struct {
	Approvals []PendingApproval `json:"approvals"`
	Count     int               `json:"count"`
}

// SchedulePostRequest represents a request to schedule an approved content
// piece for posting
type SchedulePostRequest struct {
	ContentPieceID       string     `json:"content_piece_id" binding:"required"`
	SocialMediaAccountID string     `json:"social_media_account_id" binding:"required"`
	ScheduledTime        *time.Time `json:"scheduled_time,omitempty"`
}

// SchedulePostResponse represents the response from scheduling a post
type SchedulePostResponse struct {
	PostScheduleID string            `json:"post_schedule_id"`
	ScheduledAt    time.Time         `json:"scheduled_at"`
	Status         models.PostStatus `json:"status"`
}

// OrchestratorStatusResponse reports the orchestrator lifecycle state and
// loop counters
type OrchestratorStatusResponse struct {
	State     string            `json:"state"`
	StartedAt *time.Time        `json:"started_at,omitempty"`
	Loops     map[string]uint64 `json:"loops"`
}

// ListingsResponse lists known property listings
type ListingsResponse struct {
	Listings []models.Listing `json:"listings"`
	Count    int              `json:"count"`
}

// ErrorResponse represents a standard error response from Herald
type ErrorResponse struct {
	Error string `json:"error"`
}
