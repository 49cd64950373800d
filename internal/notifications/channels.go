package notifications

import (
	"context"

	"github.com/AReid987/real-estate-agents/pkg/email"
	"github.com/AReid987/real-estate-agents/pkg/logging"
	"github.com/AReid987/real-estate-agents/pkg/models"
)

// EmailChannel delivers a notification to an agent's mailbox
type EmailChannel interface {
	SendEmail(ctx context.Context, agent models.Agent, n models.Notification) error
}

// PushChannel delivers a notification to the agent's web interface
type PushChannel interface {
	SendPush(ctx context.Context, agent models.Agent, n models.Notification) error
}

// SMSChannel delivers a short notification to the agent's phone
type SMSChannel interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// SMTPEmailChannel sends notification emails through the shared SMTP sender.
// When SMTP is not configured delivery is a logged no-op.
type SMTPEmailChannel struct {
	sender *email.Sender
	logger logging.Logger
}

func NewSMTPEmailChannel(sender *email.Sender, logger logging.Logger) *SMTPEmailChannel {
	return &SMTPEmailChannel{sender: sender, logger: logger}
}

func (c *SMTPEmailChannel) SendEmail(ctx context.Context, agent models.Agent, n models.Notification) error {
	subject, body := EmailContent(n, agent)

	if !c.sender.IsConfigured() {
		c.logger.WithFields(logging.Fields{
			"agent_email":       agent.Email,
			"notification_type": n.Type,
			"notification_id":   n.ID,
		}).Info("SMTP not configured, skipping email delivery")
		return nil
	}

	if err := c.sender.SendMail(ctx, agent.Email, subject, EmailBodyHTML(body)); err != nil {
		return err
	}

	c.logger.WithFields(logging.Fields{
		"agent_email":       agent.Email,
		"notification_type": n.Type,
		"notification_id":   n.ID,
	}).Info("Email notification sent")
	return nil
}

// LogPushChannel stands in for a web push transport. The web interface
// consumes pushes over its own connection; this implementation records the
// payload so delivery is observable in logs.
type LogPushChannel struct {
	logger logging.Logger
}

func NewLogPushChannel(logger logging.Logger) *LogPushChannel {
	return &LogPushChannel{logger: logger}
}

func (c *LogPushChannel) SendPush(ctx context.Context, agent models.Agent, n models.Notification) error {
	c.logger.WithFields(logging.Fields{
		"agent_id":          agent.ID,
		"notification_id":   n.ID,
		"notification_type": n.Type,
		"title":             Title(n.Type),
	}).Info("Push notification sent")
	return nil
}

// LogSMSChannel stands in for an SMS gateway
type LogSMSChannel struct {
	logger logging.Logger
}

func NewLogSMSChannel(logger logging.Logger) *LogSMSChannel {
	return &LogSMSChannel{logger: logger}
}

func (c *LogSMSChannel) SendSMS(ctx context.Context, phone, message string) error {
	c.logger.WithFields(logging.Fields{
		"phone":   phone,
		"message": message,
	}).Info("SMS notification sent")
	return nil
}
