package notifications

import (
	"fmt"
	"strings"

	"github.com/AReid987/real-estate-agents/pkg/models"
)

const smsMaxLen = 100

var notificationTitles = map[models.NotificationType]string{
	models.NotificationContentApprovalRequest: "Content Approval Required",
	models.NotificationApprovalProcessed:      "Content Approval Update",
	models.NotificationPostingSuccess:         "Content Posted Successfully",
	models.NotificationPostingFailed:          "Content Posting Failed",
	models.NotificationNewListing:             "New Listing Available",
	models.NotificationSystemAlert:            "System Alert",
}

// Title returns the display title for a notification type
func Title(t models.NotificationType) string {
	if title, ok := notificationTitles[t]; ok {
		return title
	}
	return "Notification"
}

type emailTemplate struct {
	subject string
	body    string
}

var emailTemplates = map[models.NotificationType]emailTemplate{
	models.NotificationContentApprovalRequest: {
		subject: "Content Approval Required - %s",
		body: "Hi %s,\n\nNew marketing content has been generated and requires your approval.\n\n%s\n\n" +
			"Please log into your dashboard to review and approve the content.\n\nBest regards,\nReal Estate Marketing System",
	},
	models.NotificationPostingSuccess: {
		subject: "Content Posted Successfully - %s",
		body: "Hi %s,\n\nYour marketing content has been successfully posted to social media.\n\n%s\n\n" +
			"You can view the post performance in your dashboard.\n\nBest regards,\nReal Estate Marketing System",
	},
	models.NotificationPostingFailed: {
		subject: "Content Posting Failed - %s",
		body: "Hi %s,\n\nThere was an issue posting your marketing content to social media.\n\n%s\n\n" +
			"Please check your social media account settings in the dashboard.\n\nBest regards,\nReal Estate Marketing System",
	},
}

// EmailContent formats the subject and body for an email delivery of the
// notification. Unknown types fall back to a generic template around the
// raw message text.
func EmailContent(n models.Notification, agent models.Agent) (subject, body string) {
	if tmpl, ok := emailTemplates[n.Type]; ok {
		return fmt.Sprintf(tmpl.subject, agent.Name),
			fmt.Sprintf(tmpl.body, agent.Name, n.MessageText)
	}
	subject = fmt.Sprintf("Notification - %s", agent.Name)
	body = fmt.Sprintf("Hi %s,\n\n%s\n\nBest regards,\nReal Estate Marketing System", agent.Name, n.MessageText)
	return subject, body
}

// EmailBodyHTML wraps the plain body for the text/html SMTP payload
func EmailBodyHTML(body string) string {
	escaped := strings.ReplaceAll(body, "&", "&amp;")
	escaped = strings.ReplaceAll(escaped, "<", "&lt;")
	escaped = strings.ReplaceAll(escaped, ">", "&gt;")
	return "<html><body><pre>" + escaped + "</pre></body></html>"
}

var smsTemplates = map[models.NotificationType]string{
	models.NotificationContentApprovalRequest: "Hi %s, new content needs approval. Check your dashboard.",
	models.NotificationPostingSuccess:         "Hi %s, content posted successfully!",
	models.NotificationPostingFailed:          "Hi %s, content posting failed. Check dashboard.",
	models.NotificationNewListing:             "Hi %s, new listing available for marketing.",
}

// SMSContent formats a short SMS body for the notification. Unknown types
// fall back to the raw message truncated to 100 characters.
func SMSContent(n models.Notification, agent models.Agent) string {
	if tmpl, ok := smsTemplates[n.Type]; ok {
		return fmt.Sprintf(tmpl, agent.Name)
	}
	message := n.MessageText
	// Truncate on rune boundaries so multi-byte text is not split
	// mid-sequence.
	if runes := []rune(message); len(runes) > smsMaxLen {
		message = string(runes[:smsMaxLen])
	}
	return fmt.Sprintf("Hi %s, %s...", agent.Name, message)
}
