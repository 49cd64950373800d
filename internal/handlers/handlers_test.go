package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/AReid987/real-estate-agents/internal/content"
	"github.com/AReid987/real-estate-agents/internal/listings"
	"github.com/AReid987/real-estate-agents/internal/notifications"
	"github.com/AReid987/real-estate-agents/internal/orchestrator"
	"github.com/AReid987/real-estate-agents/internal/scheduler"
	"github.com/AReid987/real-estate-agents/internal/workflow"
	"github.com/AReid987/real-estate-agents/pkg/api/herald"
	"github.com/AReid987/real-estate-agents/pkg/email"
	"github.com/AReid987/real-estate-agents/pkg/logging"
	"github.com/AReid987/real-estate-agents/pkg/models"
)

func setupTestRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	logger := logging.NewLogger()

	emailChannel := notifications.NewSMTPEmailChannel(email.NewSender(email.Config{}), logger)
	dispatcher := notifications.NewDispatcher(db, logger, emailChannel,
		notifications.NewLogPushChannel(logger), notifications.NewLogSMSChannel(logger), nil)
	wflow := workflow.New(db, logger, nil)
	schedl := scheduler.New(db, logger, scheduler.NewLogPoster(logger), nil)
	ingest := listings.NewIngester(db, logger, listings.NewHTTPSource(""))
	gen := content.NewGenerator(db, logger, nil)
	orch := orchestrator.New(orchestrator.DefaultConfig(), logger, gen, wflow, schedl, dispatcher, ingest)

	Init(logger, orch, wflow, schedl, dispatcher, ingest)

	router := gin.New()
	router.POST("/agents/generate-content", GenerateContent)
	router.POST("/agents/approve-content", ApproveContent)
	router.GET("/agents/pending-approvals", GetPendingApprovals)
	router.POST("/agents/schedule-post", SchedulePost)
	router.GET("/agents/status", GetStatus)
	router.POST("/notifications/:id/read", MarkNotificationRead)
	router.GET("/listings", GetListings)

	return router, mock, func() { db.Close() }
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGenerateContentBadRequest(t *testing.T) {
	router, _, cleanup := setupTestRouter(t)
	defer cleanup()

	w := doRequest(router, http.MethodPost, "/agents/generate-content", `{"listing_id":"l-1"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGenerateContentUnknownAgent(t *testing.T) {
	router, mock, cleanup := setupTestRouter(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT id FROM agents`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := doRequest(router, http.MethodPost, "/agents/generate-content",
		`{"listing_id":"l-1","agent_id":"ghost"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestApproveContentNotFound(t *testing.T) {
	router, mock, cleanup := setupTestRouter(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM content_pieces.*FOR UPDATE`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))
	mock.ExpectRollback()

	w := doRequest(router, http.MethodPost, "/agents/approve-content",
		`{"content_id":"missing","agent_id":"agent-1","approved":true}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestApproveContentSuccess(t *testing.T) {
	router, mock, cleanup := setupTestRouter(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM content_pieces.*FOR UPDATE`).
		WithArgs("cp-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("pending_approval_agent"))
	mock.ExpectExec(`UPDATE content_pieces`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO approval_logs`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("log-1"))
	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := doRequest(router, http.MethodPost, "/agents/approve-content",
		`{"content_id":"cp-1","agent_id":"agent-1","approved":true,"feedback":"looks good"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp herald.ApproveContentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != models.ContentStatusApproved {
		t.Fatalf("unexpected status %v", resp.Status)
	}
	if resp.ContentPieceID != "cp-1" || !resp.Approved || resp.ApprovalLogID != "log-1" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestSchedulePostConflict(t *testing.T) {
	router, mock, cleanup := setupTestRouter(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM content_pieces.*FOR UPDATE`).
		WithArgs("cp-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("rejected"))
	mock.ExpectRollback()

	w := doRequest(router, http.MethodPost, "/agents/schedule-post",
		`{"content_piece_id":"cp-1","social_media_account_id":"acct-1"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSchedulePostSuccess(t *testing.T) {
	router, mock, cleanup := setupTestRouter(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM content_pieces.*FOR UPDATE`).
		WithArgs("cp-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("approved_for_posting"))
	mock.ExpectQuery(`INSERT INTO post_schedules`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ps-1"))
	mock.ExpectCommit()

	w := doRequest(router, http.MethodPost, "/agents/schedule-post",
		`{"content_piece_id":"cp-1","social_media_account_id":"acct-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp herald.SchedulePostResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != models.PostStatusPending || resp.PostScheduleID != "ps-1" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.ScheduledAt.IsZero() {
		t.Fatal("expected a scheduled time")
	}
}

func TestGetPendingApprovalsRequiresAgentID(t *testing.T) {
	router, _, cleanup := setupTestRouter(t)
	defer cleanup()

	w := doRequest(router, http.MethodGet, "/agents/pending-approvals", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetPendingApprovals(t *testing.T) {
	router, mock, cleanup := setupTestRouter(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT id, content_type, generated_text, listing_id, created_at`).
		WithArgs("agent-1", models.ContentStatusPendingApproval).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content_type", "generated_text", "listing_id", "created_at"}).
			AddRow("cp-1", "social_media_post", []byte(`{"text":"hi"}`), "l-1", time.Now()))

	w := doRequest(router, http.MethodGet, "/agents/pending-approvals?agent_id=agent-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp herald.PendingApprovalsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 || len(resp.Approvals) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Approvals[0].ContentPieceID != "cp-1" {
		t.Fatalf("unexpected approval %+v", resp.Approvals[0])
	}
}

func TestGetStatus(t *testing.T) {
	router, _, cleanup := setupTestRouter(t)
	defer cleanup()

	w := doRequest(router, http.MethodGet, "/agents/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp herald.OrchestratorStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.State != "stopped" {
		t.Fatalf("unexpected state %v", resp.State)
	}
	if _, ok := resp.Loops["posts"]; !ok {
		t.Fatalf("expected a posts loop counter, got %v", resp.Loops)
	}
}

func TestMarkNotificationRead(t *testing.T) {
	router, mock, cleanup := setupTestRouter(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE notifications SET is_read = TRUE`).
		WithArgs("n-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doRequest(router, http.MethodPost, "/notifications/n-1/read", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestMarkNotificationReadNotFound(t *testing.T) {
	router, mock, cleanup := setupTestRouter(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE notifications SET is_read = TRUE`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := doRequest(router, http.MethodPost, "/notifications/missing/read", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetListings(t *testing.T) {
	router, mock, cleanup := setupTestRouter(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(`SELECT id, source_id, address, price.*WHERE status = 'active'`).
		WithArgs(25, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "source_id", "address", "price", "beds", "baths", "sqft",
			"description", "key_features", "image_urls", "status", "created_at", "updated_at",
		}).AddRow("l-1", "holiday_001", []byte(`{}`), nil, nil, nil, nil, nil, []byte(`[]`), []byte(`[]`), "active", now, now))

	w := doRequest(router, http.MethodGet, "/listings?limit=25", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["count"] != float64(1) {
		t.Fatalf("unexpected count %v", resp["count"])
	}
}
