package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-audit/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return newPostgresWithPool(mock), mock
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "invoice_001.pdf", "processing", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "invoice_001.pdf")
	require.NoError(t, err)
	assert.Equal(t, "invoice_001.pdf", run.FileName)
	assert.Equal(t, model.RunStatusProcessing, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, file_name, status, result, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_WithResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	resultJSON := []byte(`{"invoice_id":"INV-1","is_valid":true,"discrepancies":[],"stages":[]}`)
	mock.ExpectQuery(`SELECT id, file_name, status, result, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "file_name", "status", "result", "created_at", "updated_at"}).
			AddRow("run-1", "invoice_001.pdf", "completed", resultJSON, now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, "INV-1", run.Result.InvoiceID)
	assert.True(t, run.Result.IsValid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("failed", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing", model.RunStatusFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET result`).
		WithArgs(pgxmock.AnyArg(), "completed", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateRunResult(context.Background(), "run-1", model.RunStatusCompleted, &model.RunResult{
		InvoiceID: "INV-1",
		IsValid:   true,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateStage(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO run_stages`).
		WithArgs(pgxmock.AnyArg(), "run-1", "validate", "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	stage, err := s.CreateStage(context.Background(), "run-1", "validate")
	require.NoError(t, err)
	assert.Equal(t, "validate", stage.Name)
	assert.Equal(t, model.StageStatusRunning, stage.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteStage(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE run_stages SET status`).
		WithArgs("complete", pgxmock.AnyArg(), "stage-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.CompleteStage(context.Background(), "stage-1", &model.StageResult{
		Name:   "validate",
		Status: model.StageStatusComplete,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IndexDocument(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO qa_documents`).
		WithArgs(pgxmock.AnyArg(), "INV-1", "invoice_001.pdf", "content here", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	doc, err := s.IndexDocument(context.Background(), "INV-1", "invoice_001.pdf", "content here")
	require.NoError(t, err)
	assert.Equal(t, "INV-1", doc.InvoiceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SearchDocuments(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, invoice_id, source, content, created_at FROM qa_documents`).
		WithArgs("%acme%").
		WillReturnRows(pgxmock.NewRows([]string{"id", "invoice_id", "source", "content", "created_at"}).
			AddRow("d1", "INV-1", "a.pdf", "vendor acme", now))

	docs, err := s.SearchDocuments(context.Background(), []string{"acme"}, 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "INV-1", docs[0].InvoiceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SearchDocuments_NoTerms(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	docs, err := s.SearchDocuments(context.Background(), []string{""}, 5)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
