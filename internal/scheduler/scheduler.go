package scheduler

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

// defaultScheduleDelay is applied when no explicit time is given
const defaultScheduleDelay = 5 * time.Minute

// Scheduler converts approved content pieces into scheduled posts and
// dispatches the ones that have come due.
type Scheduler struct {
	db     *sql.DB
	logger logging.Logger
	poster Poster
	posts  *prometheus.CounterVec
}

func New(db *sql.DB, logger logging.Logger, poster Poster, posts *prometheus.CounterVec) *Scheduler {
	return &Scheduler{
		db:     db,
		logger: logger,
		poster: poster,
		posts:  posts,
	}
}

// ScheduleResult is returned by SchedulePost
type ScheduleResult struct {
	PostScheduleID string            `json:"post_schedule_id"`
	ScheduledAt    time.Time         `json:"scheduled_at"`
	Status         models.PostStatus `json:"status"`
}

// SchedulePost creates a pending schedule for an approved content piece.
// The status check and the insert run in one transaction with the content
// row locked, so a concurrent rejection cannot slip between them. A piece
// in any other state fails with a StateError.
func (s *Scheduler) SchedulePost(ctx context.Context, contentPieceID, socialMediaAccountID string, scheduledAt *time.Time) (*ScheduleResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is best-effort

	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM content_pieces WHERE id = $1
		FOR UPDATE
	`, contentPieceID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("content piece", contentPieceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load content piece: %w", err)
	}

	if status != string(models.ContentStatusApproved) {
		return nil, models.NewStateError("content piece", contentPieceID, status, string(models.ContentStatusApproved))
	}

	when := time.Now().Add(defaultScheduleDelay)
	if scheduledAt != nil {
		when = *scheduledAt
	}

	var scheduleID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO post_schedules (content_piece_id, social_media_account_id, scheduled_at, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, contentPieceID, socialMediaAccountID, when, models.PostStatusPending).Scan(&scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert post schedule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"post_schedule_id": scheduleID,
		"content_piece_id": contentPieceID,
		"scheduled_at":     when,
	}).Info("Post scheduled")

	return &ScheduleResult{
		PostScheduleID: scheduleID,
		ScheduledAt:    when,
		Status:         models.PostStatusPending,
	}, nil
}

// DueResult reports the outcome of one ProcessDuePosts pass
type DueResult struct {
	Processed int `json:"processed"`
	Posted    int `json:"posted"`
	Failed    int `json:"failed"`
}

type duePost struct {
	scheduleID     string
	contentPieceID string
	agentID        string
	platform       string
	content        models.JSONB
}

// ProcessDuePosts dispatches pending schedules whose time has come. Each
// outcome is written back to the schedule row and announced to the owning
// agent as a posting_success or posting_failed notification. Per-item
// failures are contained; the batch continues.
func (s *Scheduler) ProcessDuePosts(ctx context.Context) (*DueResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ps.id, ps.content_piece_id, cp.agent_id, sma.platform, cp.generated_text
		FROM post_schedules ps
		JOIN content_pieces cp ON cp.id = ps.content_piece_id
		JOIN social_media_accounts sma ON sma.id = ps.social_media_account_id
		WHERE ps.status = $1 AND ps.scheduled_at <= NOW()
		ORDER BY ps.scheduled_at ASC
	`, models.PostStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query due posts: %w", err)
	}
	defer rows.Close()

	var due []duePost
	for rows.Next() {
		var d duePost
		if err := rows.Scan(&d.scheduleID, &d.contentPieceID, &d.agentID, &d.platform, &d.content); err != nil {
			return nil, fmt.Errorf("failed to scan due post: %w", err)
		}
		due = append(due, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read due posts: %w", err)
	}

	result := &DueResult{}
	for _, d := range due {
		result.Processed++
		platformPostID, postErr := s.poster.Post(ctx, d.platform, d.content)
		if postErr != nil {
			if err := s.markFailed(ctx, d, postErr); err != nil {
				s.logger.WithError(err).WithField("post_schedule_id", d.scheduleID).Error("Failed to record post failure")
			}
			result.Failed++
			s.countPost("failed")
			continue
		}

		if err := s.markPosted(ctx, d, platformPostID); err != nil {
			s.logger.WithError(err).WithField("post_schedule_id", d.scheduleID).Error("Failed to record post success")
			result.Failed++
			s.countPost("failed")
			continue
		}
		result.Posted++
		s.countPost("posted")
	}

	return result, nil
}

func (s *Scheduler) markPosted(ctx context.Context, d duePost, platformPostID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is best-effort

	_, err = tx.ExecContext(ctx, `
		UPDATE post_schedules
		SET status = $1, posted_at = NOW(), platform_post_id = $2
		WHERE id = $3
	`, models.PostStatusPosted, platformPostID, d.scheduleID)
	if err != nil {
		return fmt.Errorf("failed to update post schedule: %w", err)
	}

	message := fmt.Sprintf("Content posted to %s", d.platform)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO notifications (agent_id, notification_type, message_text, related_entity_id)
		VALUES ($1, $2, $3, $4)
	`, d.agentID, models.NotificationPostingSuccess, message, d.contentPieceID)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"post_schedule_id": d.scheduleID,
		"platform":         d.platform,
		"platform_post_id": platformPostID,
	}).Info("Scheduled post published")
	return nil
}

func (s *Scheduler) markFailed(ctx context.Context, d duePost, postErr error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is best-effort

	_, err = tx.ExecContext(ctx, `
		UPDATE post_schedules
		SET status = $1, error_message = $2
		WHERE id = $3
	`, models.PostStatusFailed, postErr.Error(), d.scheduleID)
	if err != nil {
		return fmt.Errorf("failed to update post schedule: %w", err)
	}

	message := fmt.Sprintf("Posting to %s failed: %s", d.platform, postErr.Error())
	_, err = tx.ExecContext(ctx, `
		INSERT INTO notifications (agent_id, notification_type, message_text, related_entity_id)
		VALUES ($1, $2, $3, $4)
	`, d.agentID, models.NotificationPostingFailed, message, d.contentPieceID)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.WithError(postErr).WithFields(logging.Fields{
		"post_schedule_id": d.scheduleID,
		"platform":         d.platform,
	}).Warn("Scheduled post failed")
	return nil
}

func (s *Scheduler) countPost(status string) {
	if s.posts != nil {
		s.posts.WithLabelValues(status).Inc()
	}
}
