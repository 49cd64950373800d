package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/AReid987/real-estate-agents/pkg/logging"
	"github.com/AReid987/real-estate-agents/pkg/models"
)

func newTestWorkflow(t *testing.T) (*Workflow, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	logger := logging.NewLogger()
	return New(db, logger, nil), mock, func() { db.Close() }
}

func TestRequestApproval(t *testing.T) {
	wf, mock, cleanup := newTestWorkflow(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status, content_type FROM content_pieces.*FOR UPDATE`).
		WithArgs("cp-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "content_type"}).AddRow("draft", "social_media_post"))
	mock.ExpectExec(`UPDATE content_pieces SET status`).
		WithArgs(models.ContentStatusPendingApproval, "cp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO approval_logs`).
		WithArgs("cp-1", "agent-1", models.ApprovalActionRequestedRevisions, "Approval requested from agent").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO notifications`).
		WithArgs("agent-1", models.NotificationContentApprovalRequest, "New social_media_post content ready for approval", "cp-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("notif-1"))
	mock.ExpectCommit()

	result, err := wf.RequestApproval(context.Background(), "cp-1", "agent-1")
	if err != nil {
		t.Fatalf("RequestApproval: %v", err)
	}
	if result.Status != models.ContentStatusPendingApproval {
		t.Fatalf("unexpected status %s", result.Status)
	}
	if result.NotificationID != "notif-1" {
		t.Fatalf("unexpected notification id %s", result.NotificationID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRequestApprovalNotFound(t *testing.T) {
	wf, mock, cleanup := newTestWorkflow(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status, content_type FROM content_pieces.*FOR UPDATE`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"status", "content_type"}))
	mock.ExpectRollback()

	_, err := wf.RequestApproval(context.Background(), "missing", "agent-1")
	if !models.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestRequestApprovalRollsBackOnNotificationFailure(t *testing.T) {
	wf, mock, cleanup := newTestWorkflow(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status, content_type FROM content_pieces.*FOR UPDATE`).
		WithArgs("cp-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "content_type"}).AddRow("draft", "email"))
	mock.ExpectExec(`UPDATE content_pieces SET status`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO approval_logs`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO notifications`).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	if _, err := wf.RequestApproval(context.Background(), "cp-1", "agent-1"); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProcessApprovalApproved(t *testing.T) {
	wf, mock, cleanup := newTestWorkflow(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM content_pieces.*FOR UPDATE`).
		WithArgs("cp-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("pending_approval_agent"))
	mock.ExpectExec(`UPDATE content_pieces.*last_approved_at = NOW\(\)`).
		WithArgs(models.ContentStatusApproved, "looks good", "cp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO approval_logs`).
		WithArgs("cp-1", "agent-1", models.ApprovalActionApproved, "looks good").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("log-1"))
	mock.ExpectExec(`INSERT INTO notifications`).
		WithArgs("agent-1", models.NotificationApprovalProcessed, "Content approved and ready for posting", "cp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := wf.ProcessApproval(context.Background(), "cp-1", "agent-1", true, "looks good")
	if err != nil {
		t.Fatalf("ProcessApproval: %v", err)
	}
	if result.Status != models.ContentStatusApproved {
		t.Fatalf("unexpected status %s", result.Status)
	}
	if result.ApprovalLogID != "log-1" {
		t.Fatalf("unexpected approval log id %s", result.ApprovalLogID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProcessApprovalRejected(t *testing.T) {
	wf, mock, cleanup := newTestWorkflow(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM content_pieces.*FOR UPDATE`).
		WithArgs("cp-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("pending_approval_agent"))
	mock.ExpectExec(`UPDATE content_pieces`).
		WithArgs(models.ContentStatusRejected, "fix price", "cp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO approval_logs`).
		WithArgs("cp-1", "agent-1", models.ApprovalActionRejected, "fix price").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("log-2"))
	mock.ExpectExec(`INSERT INTO notifications`).
		WithArgs("agent-1", models.NotificationApprovalProcessed, "Content rejected and needs revision", "cp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := wf.ProcessApproval(context.Background(), "cp-1", "agent-1", false, "fix price")
	if err != nil {
		t.Fatalf("ProcessApproval: %v", err)
	}
	if result.Status != models.ContentStatusRejected {
		t.Fatalf("unexpected status %s", result.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetPendingApprovals(t *testing.T) {
	wf, mock, cleanup := newTestWorkflow(t)
	defer cleanup()

	created := time.Now().Add(-time.Hour)
	mock.ExpectQuery(`SELECT id, content_type, generated_text, listing_id, created_at.*ORDER BY created_at DESC`).
		WithArgs("agent-1", models.ContentStatusPendingApproval).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content_type", "generated_text", "listing_id", "created_at"}).
			AddRow("cp-2", "social_media_post", []byte(`{"text":"hi"}`), "listing-1", created).
			AddRow("cp-1", "email", []byte(`{"text":"hello"}`), nil, created.Add(-time.Hour)))

	approvals, err := wf.GetPendingApprovals(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("GetPendingApprovals: %v", err)
	}
	if len(approvals) != 2 {
		t.Fatalf("expected 2 approvals, got %d", len(approvals))
	}
	if approvals[0].ContentPieceID != "cp-2" {
		t.Fatalf("expected newest first, got %s", approvals[0].ContentPieceID)
	}
	if approvals[0].GeneratedText["text"] != "hi" {
		t.Fatalf("unexpected generated text %v", approvals[0].GeneratedText)
	}
	if approvals[1].ListingID != nil {
		t.Fatalf("expected nil listing id")
	}
}

func TestGetPendingApprovalsEmpty(t *testing.T) {
	wf, mock, cleanup := newTestWorkflow(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT id, content_type, generated_text, listing_id, created_at`).
		WithArgs("agent-1", models.ContentStatusPendingApproval).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content_type", "generated_text", "listing_id", "created_at"}))

	approvals, err := wf.GetPendingApprovals(context.Background(), "agent-1")
	if err != nil {
		t.Fatalf("GetPendingApprovals: %v", err)
	}
	if len(approvals) != 0 {
		t.Fatalf("expected no approvals, got %d", len(approvals))
	}
}
