package notifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AReid987/real-estate-agents/pkg/logging"
	"github.com/AReid987/real-estate-agents/pkg/models"
)

// batchLimit bounds the work done per tick. Together with the 24h window it
// means notifications that stay unread past the window are never retried.
const batchLimit = 50

// Dispatcher routes unread notifications to the channels each agent opted
// into. Email defaults on, push is always attempted, SMS defaults off and
// needs a phone number on file.
type Dispatcher struct {
	db         *sql.DB
	logger     logging.Logger
	email      EmailChannel
	push       PushChannel
	sms        SMSChannel
	dispatched *prometheus.CounterVec
}

func NewDispatcher(db *sql.DB, logger logging.Logger, email EmailChannel, push PushChannel, sms SMSChannel, dispatched *prometheus.CounterVec) *Dispatcher {
	return &Dispatcher{
		db:         db,
		logger:     logger,
		email:      email,
		push:       push,
		sms:        sms,
		dispatched: dispatched,
	}
}

// Result reports the outcome of one ProcessPending batch
type Result struct {
	Processed int `json:"processed"`
	EmailSent int `json:"email_sent"`
	PushSent  int `json:"push_sent"`
	SMSSent   int `json:"sms_sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// ProcessPending dispatches unread notifications from the trailing 24 hours,
// newest first, at most 50 per invocation. A channel failure aborts the rest
// of that notification's channels but not the batch. Notifications whose
// agent cannot be resolved are counted as skipped.
func (d *Dispatcher) ProcessPending(ctx context.Context) (*Result, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, agent_id, notification_type, message_text, related_entity_id, is_read, created_at
		FROM notifications
		WHERE is_read = FALSE AND created_at >= NOW() - INTERVAL '24 hours'
		ORDER BY created_at DESC
		LIMIT $1
	`, batchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending notifications: %w", err)
	}
	defer rows.Close()

	var pending []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.AgentID, &n.Type, &n.MessageText, &n.RelatedEntityID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		pending = append(pending, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pending notifications: %w", err)
	}

	result := &Result{}
	for _, n := range pending {
		agent, err := d.loadAgent(ctx, n.AgentID)
		if errors.Is(err, sql.ErrNoRows) {
			result.Skipped++
			d.logger.WithFields(logging.Fields{
				"notification_id": n.ID,
				"agent_id":        n.AgentID,
			}).Warn("Skipping notification for unknown agent")
			continue
		}
		if err != nil {
			result.Failed++
			d.logger.WithError(err).WithField("notification_id", n.ID).Error("Failed to resolve agent")
			continue
		}

		if err := d.dispatch(ctx, n, agent, result); err != nil {
			result.Failed++
			d.logger.WithError(err).WithFields(logging.Fields{
				"notification_id": n.ID,
				"agent_id":        agent.ID,
			}).Error("Failed to send notification")
			continue
		}
		result.Processed++
	}

	return result, nil
}

func (d *Dispatcher) loadAgent(ctx context.Context, agentID string) (models.Agent, error) {
	var agent models.Agent
	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, notification_preferences
		FROM agents WHERE id = $1
	`, agentID).Scan(&agent.ID, &agent.Name, &agent.Email, &agent.Phone, &agent.NotificationPreferences)
	return agent, err
}

func (d *Dispatcher) dispatch(ctx context.Context, n models.Notification, agent models.Agent, result *Result) error {
	if agent.PrefersChannel("email", true) {
		if err := d.email.SendEmail(ctx, agent, n); err != nil {
			d.countChannel("email", "failed")
			return fmt.Errorf("email channel: %w", err)
		}
		d.countChannel("email", "sent")
		result.EmailSent++
	}

	// Push delivery ignores the preference flag, the web interface always
	// receives it.
	if err := d.push.SendPush(ctx, agent, n); err != nil {
		d.countChannel("push", "failed")
		return fmt.Errorf("push channel: %w", err)
	}
	d.countChannel("push", "sent")
	result.PushSent++

	if agent.PrefersChannel("sms", false) && agent.Phone != nil && *agent.Phone != "" {
		if err := d.sms.SendSMS(ctx, *agent.Phone, SMSContent(n, agent)); err != nil {
			d.countChannel("sms", "failed")
			return fmt.Errorf("sms channel: %w", err)
		}
		d.countChannel("sms", "sent")
		result.SMSSent++
	}

	return nil
}

func (d *Dispatcher) countChannel(channel, status string) {
	if d.dispatched != nil {
		d.dispatched.WithLabelValues(channel, status).Inc()
	}
}

// MarkRead sets is_read on a notification. The transition is one-way and
// idempotent; unknown ids fail with NotFound.
func (d *Dispatcher) MarkRead(ctx context.Context, notificationID string) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE WHERE id = $1
	`, notificationID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check mark result: %w", err)
	}
	if affected == 0 {
		return models.NewNotFound("notification", notificationID)
	}

	return nil
}

// Create inserts a notification for an agent after verifying the agent
// exists. relatedEntityID may be empty.
func (d *Dispatcher) Create(ctx context.Context, agentID string, notificationType models.NotificationType, message, relatedEntityID string) (*models.Notification, error) {
	var exists string
	err := d.db.QueryRowContext(ctx, `SELECT id FROM agents WHERE id = $1`, agentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("agent", agentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check agent: %w", err)
	}

	var relatedArg interface{}
	if relatedEntityID != "" {
		relatedArg = relatedEntityID
	}

	n := &models.Notification{
		AgentID:     agentID,
		Type:        notificationType,
		MessageText: message,
	}
	err = d.db.QueryRowContext(ctx, `
		INSERT INTO notifications (agent_id, notification_type, message_text, related_entity_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, related_entity_id, is_read, created_at
	`, agentID, notificationType, message, relatedArg).Scan(&n.ID, &n.RelatedEntityID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert notification: %w", err)
	}

	return n, nil
}
