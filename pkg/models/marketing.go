package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// JSONB is a custom type for handling JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// JSONBArray is a custom type for handling JSONB array fields
type JSONBArray []interface{}

// Value implements the driver.Valuer interface for JSONBArray
func (j JSONBArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONBArray
func (j *JSONBArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// ContentStatus is the lifecycle state of a content piece. The only valid
// transitions are draft -> pending_approval_agent -> approved_for_posting
// or rejected.
type ContentStatus string

const (
	ContentStatusDraft           ContentStatus = "draft"
	ContentStatusPendingApproval ContentStatus = "pending_approval_agent"
	ContentStatusApproved        ContentStatus = "approved_for_posting"
	ContentStatusRejected        ContentStatus = "rejected"
)

// ApprovalAction identifies the transition recorded in an approval log row
type ApprovalAction string

const (
	ApprovalActionRequestedRevisions ApprovalAction = "requested_revisions"
	ApprovalActionApproved           ApprovalAction = "approved"
	ApprovalActionRejected           ApprovalAction = "rejected"
)

// NotificationType is the closed set of notification routing/formatting keys
type NotificationType string

const (
	NotificationContentApprovalRequest NotificationType = "content_approval_request"
	NotificationApprovalProcessed      NotificationType = "approval_processed"
	NotificationPostingSuccess         NotificationType = "posting_success"
	NotificationPostingFailed          NotificationType = "posting_failed"
	NotificationNewListing             NotificationType = "new_listing"
	NotificationSystemAlert            NotificationType = "system_alert"
)

// PostStatus is the delivery state of a scheduled post. Both posted and
// failed are terminal.
type PostStatus string

const (
	PostStatusPending PostStatus = "pending"
	PostStatusPosted  PostStatus = "posted"
	PostStatusFailed  PostStatus = "failed"
)

// Agent represents a human real-estate professional using the system
type Agent struct {
	ID                      string    `json:"id" db:"id"`
	Name                    string    `json:"name" db:"name"`
	Email                   string    `json:"email" db:"email"`
	Phone                   *string   `json:"phone,omitempty" db:"phone"`
	NotificationPreferences JSONB     `json:"notification_preferences" db:"notification_preferences"`
	IsActive                bool      `json:"is_active" db:"is_active"`
	CreatedAt               time.Time `json:"created_at" db:"created_at"`
	UpdatedAt               time.Time `json:"updated_at" db:"updated_at"`
}

// PrefersChannel reports whether the agent opted into a notification
// channel, falling back to the given default when no preference is stored.
func (a Agent) PrefersChannel(channel string, defaultValue bool) bool {
	if a.NotificationPreferences == nil {
		return defaultValue
	}
	v, ok := a.NotificationPreferences[channel]
	if !ok {
		return defaultValue
	}
	enabled, ok := v.(bool)
	if !ok {
		return defaultValue
	}
	return enabled
}

// Listing represents a property listing pulled from an external source
type Listing struct {
	ID          string    `json:"id" db:"id"`
	SourceID    string    `json:"source_id" db:"source_id"`
	Address     JSONB     `json:"address" db:"address"`
	Price       *float64  `json:"price,omitempty" db:"price"`
	Beds        *int      `json:"beds,omitempty" db:"beds"`
	Baths       *int      `json:"baths,omitempty" db:"baths"`
	Sqft        *int      `json:"sqft,omitempty" db:"sqft"`
	Description *string   `json:"description,omitempty" db:"description"`
	KeyFeatures JSONBArray `json:"key_features" db:"key_features"`
	ImageURLs   JSONBArray `json:"image_urls" db:"image_urls"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// SocialMediaAccount represents a connected social platform account
type SocialMediaAccount struct {
	ID        string    `json:"id" db:"id"`
	AgentID   string    `json:"agent_id" db:"agent_id"`
	Platform  string    `json:"platform" db:"platform"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ContentPiece is a unit of generated marketing copy tied to one listing
// and one responsible agent
type ContentPiece struct {
	ID             string        `json:"id" db:"id"`
	ListingID      *string       `json:"listing_id,omitempty" db:"listing_id"`
	AgentID        string        `json:"agent_id" db:"agent_id"`
	ContentType    string        `json:"content_type" db:"content_type"`
	GeneratedText  JSONB         `json:"generated_text" db:"generated_text"`
	Status         ContentStatus `json:"status" db:"status"`
	Feedback       *string       `json:"feedback,omitempty" db:"feedback"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	LastApprovedAt *time.Time    `json:"last_approved_at,omitempty" db:"last_approved_at"`
}

// ApprovalLog is an immutable audit record of one workflow transition
type ApprovalLog struct {
	ID             string         `json:"id" db:"id"`
	ContentPieceID string         `json:"content_piece_id" db:"content_piece_id"`
	AgentID        string         `json:"agent_id" db:"agent_id"`
	ActionType     ApprovalAction `json:"action_type" db:"action_type"`
	Feedback       *string        `json:"feedback,omitempty" db:"feedback"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// Notification is a message queued for delivery to an agent across one
// or more channels
type Notification struct {
	ID              string           `json:"id" db:"id"`
	AgentID         string           `json:"agent_id" db:"agent_id"`
	Type            NotificationType `json:"notification_type" db:"notification_type"`
	MessageText     string           `json:"message_text" db:"message_text"`
	RelatedEntityID *string          `json:"related_entity_id,omitempty" db:"related_entity_id"`
	IsRead          bool             `json:"is_read" db:"is_read"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
}

// PostSchedule is a scheduled or attempted social-media publication of an
// approved content piece
type PostSchedule struct {
	ID                   string     `json:"id" db:"id"`
	ContentPieceID       string     `json:"content_piece_id" db:"content_piece_id"`
	SocialMediaAccountID string     `json:"social_media_account_id" db:"social_media_account_id"`
	ScheduledAt          time.Time  `json:"scheduled_at" db:"scheduled_at"`
	Status               PostStatus `json:"status" db:"status"`
	PostedAt             *time.Time `json:"posted_at,omitempty" db:"posted_at"`
	PlatformPostID       *string    `json:"platform_post_id,omitempty" db:"platform_post_id"`
	ErrorMessage         *string    `json:"error_message,omitempty" db:"error_message"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
}
