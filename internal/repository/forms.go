package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/form-extractor/constants"
	"github.com/joseph-ayodele/form-extractor/internal/common"
	"github.com/joseph-ayodele/form-extractor/internal/entity"
)

type FormRepository interface {
	Create(ctx context.Context, f *entity.Form) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Form, error)
	GetByHash(ctx context.Context, hash string) (*entity.Form, error)
	List(ctx context.Context, limit int) ([]entity.Form, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status constants.FormStatus, errMsg *string, processedAt *time.Time) error
	SaveExtraction(ctx context.Context, e *entity.Extraction) error
	GetExtraction(ctx context.Context, formID uuid.UUID) (*entity.Extraction, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type formRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewFormRepository(db *DB, logger *slog.Logger) FormRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &formRepo{db: db, logger: logger}
}

const formColumns = `id, filename, storage_key, content_type, file_size, content_hash, status, error_message, uploaded_at, processed_at`

func (r *formRepo) Create(ctx context.Context, f *entity.Form) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.UploadedAt.IsZero() {
		f.UploadedAt = time.Now().UTC()
	}
	_, err := r.db.SQL.ExecContext(ctx, r.db.rebind(`INSERT INTO forms (`+formColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		f.ID.String(), f.Filename, f.StorageKey, f.ContentType, f.FileSize, f.ContentHash,
		string(f.Status), nullString(f.ErrorMessage), toMillis(f.UploadedAt), nullMillis(f.ProcessedAt),
	)
	if err != nil {
		r.logger.Error("failed to create form", "form_id", f.ID, "filename", f.Filename, "error", err)
		return common.DatabaseError("create form", err)
	}
	return nil
}

func (r *formRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Form, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.rebind(`SELECT `+formColumns+` FROM forms WHERE id = ?`), id.String())
	f, err := scanForm(row)
	if err != nil {
		return nil, r.notFound(err, "form", id.String())
	}
	return f, nil
}

func (r *formRepo) GetByHash(ctx context.Context, hash string) (*entity.Form, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.rebind(`SELECT `+formColumns+` FROM forms WHERE content_hash = ?`), hash)
	f, err := scanForm(row)
	if err != nil {
		return nil, r.notFound(err, "form with hash", hash)
	}
	return f, nil
}

// List returns forms newest first. A non-positive limit returns all rows.
func (r *formRepo) List(ctx context.Context, limit int) ([]entity.Form, error) {
	q := `SELECT ` + formColumns + ` FROM forms ORDER BY uploaded_at DESC, id`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(q), args...)
	if err != nil {
		r.logger.Error("failed to list forms", "error", err)
		return nil, common.DatabaseError("list forms", err)
	}
	defer rows.Close()

	out := []entity.Form{}
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, common.DatabaseError("scan form", err)
		}
		out = append(out, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, common.DatabaseError("list forms", err)
	}
	return out, nil
}

func (r *formRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.FormStatus, errMsg *string, processedAt *time.Time) error {
	res, err := r.db.SQL.ExecContext(ctx, r.db.rebind(`UPDATE forms SET status = ?, error_message = ?, processed_at = ? WHERE id = ?`),
		string(status), nullString(errMsg), nullMillis(processedAt), id.String(),
	)
	if err != nil {
		r.logger.Error("failed to update form status", "form_id", id, "status", status, "error", err)
		return common.DatabaseError("update form", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NotFound("form", id.String())
	}
	return nil
}

// SaveExtraction inserts or replaces the extraction of a form.
func (r *formRepo) SaveExtraction(ctx context.Context, e *entity.Extraction) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return common.DatabaseError("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, r.db.rebind(`DELETE FROM extractions WHERE form_id = ?`), e.FormID.String()); err != nil {
		return common.DatabaseError("replace extraction", err)
	}
	_, err = tx.ExecContext(ctx, r.db.rebind(`INSERT INTO extractions
		(form_id, status, document_type, confidence_score, field_count, latency_ms, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		e.FormID.String(), e.Status, e.DocumentType, e.ConfidenceScore, e.FieldCount, e.LatencyMS,
		string(e.Result), toMillis(e.CreatedAt),
	)
	if err != nil {
		r.logger.Error("failed to save extraction", "form_id", e.FormID, "error", err)
		return common.DatabaseError("save extraction", err)
	}
	if err := tx.Commit(); err != nil {
		return common.DatabaseError("commit", err)
	}
	return nil
}

func (r *formRepo) GetExtraction(ctx context.Context, formID uuid.UUID) (*entity.Extraction, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.rebind(`SELECT
		form_id, status, document_type, confidence_score, field_count, latency_ms, result, created_at
		FROM extractions WHERE form_id = ?`), formID.String())

	var (
		e       entity.Extraction
		id      string
		result  string
		created int64
	)
	if err := row.Scan(&id, &e.Status, &e.DocumentType, &e.ConfidenceScore, &e.FieldCount, &e.LatencyMS, &result, &created); err != nil {
		return nil, r.notFound(err, "extraction for form", formID.String())
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, common.DatabaseError(fmt.Sprintf("bad form id %q", id), err)
	}
	e.FormID = parsed
	e.Result = []byte(result)
	e.CreatedAt = fromMillis(created)
	return &e, nil
}

// Delete removes a form and its extraction.
func (r *formRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return common.DatabaseError("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, r.db.rebind(`DELETE FROM extractions WHERE form_id = ?`), id.String()); err != nil {
		return common.DatabaseError("delete extraction", err)
	}
	res, err := tx.ExecContext(ctx, r.db.rebind(`DELETE FROM forms WHERE id = ?`), id.String())
	if err != nil {
		r.logger.Error("failed to delete form", "form_id", id, "error", err)
		return common.DatabaseError("delete form", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NotFound("form", id.String())
	}
	if err := tx.Commit(); err != nil {
		return common.DatabaseError("commit", err)
	}
	return nil
}

func (r *formRepo) notFound(err error, what, key string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.NotFound(what, key)
	}
	r.logger.Error("query failed", "what", what, "key", key, "error", err)
	return common.DatabaseError("query "+what, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanForm(s rowScanner) (*entity.Form, error) {
	var (
		f         entity.Form
		id        string
		status    string
		errMsg    sql.NullString
		uploaded  int64
		processed sql.NullInt64
	)
	if err := s.Scan(&id, &f.Filename, &f.StorageKey, &f.ContentType, &f.FileSize, &f.ContentHash,
		&status, &errMsg, &uploaded, &processed); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("bad form id %q: %w", id, err)
	}
	f.ID = parsed
	f.Status = constants.FormStatus(status)
	if errMsg.Valid {
		f.ErrorMessage = &errMsg.String
	}
	f.UploadedAt = fromMillis(uploaded)
	if processed.Valid {
		t := fromMillis(processed.Int64)
		f.ProcessedAt = &t
	}
	return &f, nil
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
