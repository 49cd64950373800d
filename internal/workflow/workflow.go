package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AReid987/real-estate-agents/pkg/logging"
	"github.com/AReid987/real-estate-agents/pkg/models"
)

// Workflow drives the approval state machine for content pieces. Every
// transition runs inside one transaction: the content piece row is locked
// with FOR UPDATE before any dependent write, so concurrent decisions on the
// same piece serialize at the store.
type Workflow struct {
	db          *sql.DB
	logger      logging.Logger
	transitions *prometheus.CounterVec
}

func New(db *sql.DB, logger logging.Logger, transitions *prometheus.CounterVec) *Workflow {
	return &Workflow{
		db:          db,
		logger:      logger,
		transitions: transitions,
	}
}

// ApprovalRequestResult is returned by RequestApproval
type ApprovalRequestResult struct {
	ContentPieceID string               `json:"content_piece_id"`
	AgentID        string               `json:"agent_id"`
	Status         models.ContentStatus `json:"status"`
	NotificationID string               `json:"notification_id"`
}

// ApprovalDecisionResult is returned by ProcessApproval
type ApprovalDecisionResult struct {
	ContentPieceID string               `json:"content_piece_id"`
	Approved       bool                 `json:"approved"`
	Status         models.ContentStatus `json:"status"`
	Feedback       string               `json:"feedback,omitempty"`
	ApprovalLogID  string               `json:"approval_log_id"`
}

// PendingApproval is one row of the pending-approvals listing
type PendingApproval struct {
	ContentPieceID string       `json:"content_piece_id"`
	ContentType    string       `json:"content_type"`
	GeneratedText  models.JSONB `json:"generated_text"`
	ListingID      *string      `json:"listing_id,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// RequestApproval moves a content piece to pending_approval_agent, writes the
// audit row and notifies the reviewing agent. The three writes commit as one
// unit.
func (w *Workflow) RequestApproval(ctx context.Context, contentPieceID, agentID string) (*ApprovalRequestResult, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is best-effort

	var currentStatus string
	var contentType string
	err = tx.QueryRowContext(ctx, `
		SELECT status, content_type FROM content_pieces WHERE id = $1
		FOR UPDATE
	`, contentPieceID).Scan(&currentStatus, &contentType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("content piece", contentPieceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load content piece: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE content_pieces SET status = $1 WHERE id = $2
	`, models.ContentStatusPendingApproval, contentPieceID)
	if err != nil {
		return nil, fmt.Errorf("failed to update content status: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO approval_logs (content_piece_id, agent_id, action_type, feedback)
		VALUES ($1, $2, $3, $4)
	`, contentPieceID, agentID, models.ApprovalActionRequestedRevisions, "Approval requested from agent")
	if err != nil {
		return nil, fmt.Errorf("failed to insert approval log: %w", err)
	}

	var notificationID string
	message := fmt.Sprintf("New %s content ready for approval", contentType)
	err = tx.QueryRowContext(ctx, `
		INSERT INTO notifications (agent_id, notification_type, message_text, related_entity_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, agentID, models.NotificationContentApprovalRequest, message, contentPieceID).Scan(&notificationID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert notification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if w.transitions != nil {
		w.transitions.WithLabelValues(string(models.ApprovalActionRequestedRevisions)).Inc()
	}

	w.logger.WithFields(logging.Fields{
		"content_piece_id": contentPieceID,
		"agent_id":         agentID,
		"previous_status":  currentStatus,
	}).Info("Approval requested")

	return &ApprovalRequestResult{
		ContentPieceID: contentPieceID,
		AgentID:        agentID,
		Status:         models.ContentStatusPendingApproval,
		NotificationID: notificationID,
	}, nil
}

// ProcessApproval records an agent's decision on a content piece. Approval
// moves it to approved_for_posting and stamps last_approved_at; rejection
// moves it to rejected. Feedback, when given, is attached to the piece.
func (w *Workflow) ProcessApproval(ctx context.Context, contentPieceID, agentID string, approved bool, feedback string) (*ApprovalDecisionResult, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is best-effort

	var currentStatus string
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM content_pieces WHERE id = $1
		FOR UPDATE
	`, contentPieceID).Scan(&currentStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("content piece", contentPieceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load content piece: %w", err)
	}

	newStatus := models.ContentStatusRejected
	action := models.ApprovalActionRejected
	message := "Content rejected and needs revision"
	if approved {
		newStatus = models.ContentStatusApproved
		action = models.ApprovalActionApproved
		message = "Content approved and ready for posting"
	}

	var feedbackArg interface{}
	if feedback != "" {
		feedbackArg = feedback
	}

	if approved {
		_, err = tx.ExecContext(ctx, `
			UPDATE content_pieces
			SET status = $1, feedback = COALESCE($2, feedback), last_approved_at = NOW()
			WHERE id = $3
		`, newStatus, feedbackArg, contentPieceID)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE content_pieces
			SET status = $1, feedback = COALESCE($2, feedback)
			WHERE id = $3
		`, newStatus, feedbackArg, contentPieceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update content status: %w", err)
	}

	var approvalLogID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO approval_logs (content_piece_id, agent_id, action_type, feedback)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, contentPieceID, agentID, action, feedbackArg).Scan(&approvalLogID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert approval log: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notifications (agent_id, notification_type, message_text, related_entity_id)
		VALUES ($1, $2, $3, $4)
	`, agentID, models.NotificationApprovalProcessed, message, contentPieceID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert notification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if w.transitions != nil {
		w.transitions.WithLabelValues(string(action)).Inc()
	}

	w.logger.WithFields(logging.Fields{
		"content_piece_id": contentPieceID,
		"agent_id":         agentID,
		"approved":         approved,
		"previous_status":  currentStatus,
		"status":           newStatus,
	}).Info("Approval processed")

	return &ApprovalDecisionResult{
		ContentPieceID: contentPieceID,
		Approved:       approved,
		Status:         newStatus,
		Feedback:       feedback,
		ApprovalLogID:  approvalLogID,
	}, nil
}

// GetPendingApprovals lists content pieces awaiting a decision from the
// given agent, newest first.
func (w *Workflow) GetPendingApprovals(ctx context.Context, agentID string) ([]PendingApproval, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT id, content_type, generated_text, listing_id, created_at
		FROM content_pieces
		WHERE agent_id = $1 AND status = $2
		ORDER BY created_at DESC
	`, agentID, models.ContentStatusPendingApproval)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending approvals: %w", err)
	}
	defer rows.Close()

	approvals := []PendingApproval{}
	for rows.Next() {
		var a PendingApproval
		if err := rows.Scan(&a.ContentPieceID, &a.ContentType, &a.GeneratedText, &a.ListingID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending approval: %w", err)
		}
		approvals = append(approvals, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pending approvals: %w", err)
	}

	return approvals, nil
}
