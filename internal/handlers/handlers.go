package handlers

import (
	"net/http"
	"strconv"

	"github.com/AReid987/real-estate-agents/pkg/api/herald"
	"github.com/AReid987/real-estate-agents/pkg/logging"
	"github.com/AReid987/real-estate-agents/pkg/middleware"
	"github.com/AReid987/real-estate-agents/pkg/models"

	"github.com/AReid987/real-estate-agents/internal/listings"
	"github.com/AReid987/real-estate-agents/internal/notifications"
	"github.com/AReid987/real-estate-agents/internal/orchestrator"
	"github.com/AReid987/real-estate-agents/internal/scheduler"
	"github.com/AReid987/real-estate-agents/internal/workflow"
)

var (
	logger     logging.Logger
	orch       *orchestrator.Orchestrator
	wf         *workflow.Workflow
	sched      *scheduler.Scheduler
	dispatcher *notifications.Dispatcher
	ingester   *listings.Ingester
)

// Init initializes the handlers with the domain components
func Init(
	log logging.Logger,
	o *orchestrator.Orchestrator,
	w *workflow.Workflow,
	s *scheduler.Scheduler,
	d *notifications.Dispatcher,
	i *listings.Ingester,
) {
	logger = log
	orch = o
	wf = w
	sched = s
	dispatcher = d
	ingester = i
}

// writeError maps domain errors onto HTTP status codes
func writeError(c middleware.Context, err error) {
	switch {
	case models.IsNotFound(err):
		c.JSON(http.StatusNotFound, herald.ErrorResponse{Error: err.Error()})
	case models.IsStateError(err):
		c.JSON(http.StatusConflict, herald.ErrorResponse{Error: err.Error()})
	default:
		logger.WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, herald.ErrorResponse{Error: "Internal server error"})
	}
}

// GenerateContent generates marketing content for a listing and requests
// approval from the agent
func GenerateContent(c middleware.Context) {
	var req herald.GenerateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, herald.ErrorResponse{Error: err.Error()})
		return
	}
	if req.ContentType == "" {
		req.ContentType = "social_media_post"
	}

	result, err := orch.GenerateContent(c.Request.Context(), req.ListingID, req.ContentType, req.AgentID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, herald.GenerateContentResponse{Content: result.Content})
}

// ApproveContent records an approval decision on a content piece
func ApproveContent(c middleware.Context) {
	var req herald.ApproveContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, herald.ErrorResponse{Error: err.Error()})
		return
	}

	result, err := wf.ProcessApproval(c.Request.Context(), req.ContentID, req.AgentID, req.Approved, req.Feedback)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, herald.ApproveContentResponse{
		ContentPieceID: result.ContentPieceID,
		Approved:       result.Approved,
		Status:         result.Status,
		Feedback:       result.Feedback,
		ApprovalLogID:  result.ApprovalLogID,
	})
}

// GetPendingApprovals lists content pieces awaiting a decision from an agent
func GetPendingApprovals(c middleware.Context) {
	agentID := c.Query("agent_id")
	if agentID == "" {
		c.JSON(http.StatusBadRequest, herald.ErrorResponse{Error: "agent_id is required"})
		return
	}

	approvals, err := wf.GetPendingApprovals(c.Request.Context(), agentID)
	if err != nil {
		writeError(c, err)
		return
	}

	items := make([]herald.PendingApproval, 0, len(approvals))
	for _, a := range approvals {
		items = append(items, herald.PendingApproval{
			ContentPieceID: a.ContentPieceID,
			ContentType:    a.ContentType,
			GeneratedText:  a.GeneratedText,
			ListingID:      a.ListingID,
			CreatedAt:      a.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, herald.PendingApprovalsResponse{
		Approvals: items,
		Count:     len(items),
	})
}

// SchedulePost schedules an approved content piece for posting
func SchedulePost(c middleware.Context) {
	var req herald.SchedulePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, herald.ErrorResponse{Error: err.Error()})
		return
	}

	result, err := sched.SchedulePost(c.Request.Context(), req.ContentPieceID, req.SocialMediaAccountID, req.ScheduledTime)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, herald.SchedulePostResponse{
		PostScheduleID: result.PostScheduleID,
		ScheduledAt:    result.ScheduledAt,
		Status:         result.Status,
	})
}

// GetStatus reports the orchestrator lifecycle state and loop counters
func GetStatus(c middleware.Context) {
	status := orch.GetStatus()
	c.JSON(http.StatusOK, herald.OrchestratorStatusResponse{
		State:     string(status.State),
		StartedAt: status.StartedAt,
		Loops:     status.Loops,
	})
}

// MarkNotificationRead marks a notification as read
func MarkNotificationRead(c middleware.Context) {
	notificationID := c.Param("id")

	if err := dispatcher.MarkRead(c.Request.Context(), notificationID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, middleware.H{
		"notification_id": notificationID,
		"status":          "marked_read",
	})
}

// GetListings lists active property listings
func GetListings(c middleware.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	result, err := ingester.GetActiveListings(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, herald.ListingsResponse{
		Listings: result,
		Count:    len(result),
	})
}
