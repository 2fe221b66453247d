package assessment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frma/frma/internal/platform/db"
)

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository { return &recordRepoPG{pool: pool} }

func (r *recordRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const recordCols = `id, session_id, user_id, emergency_type, title, is_self, prompt,
	status, response_text, failure_reason, location, created_at`

func (r *recordRepoPG) scanRecord(row pgx.Row) (*AssessmentRecord, error) {
	var a AssessmentRecord
	err := row.Scan(&a.ID, &a.SessionID, &a.UserID, &a.EmergencyType, &a.Title, &a.IsSelf, &a.Prompt,
		&a.Status, &a.ResponseText, &a.FailureReason, &a.Location, &a.CreatedAt)
	return &a, err
}

func (r *recordRepoPG) Create(ctx context.Context, a *AssessmentRecord) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO assessment_record (id, session_id, user_id, emergency_type, title, is_self, prompt,
			status, response_text, failure_reason, location)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at`,
		a.ID, a.SessionID, a.UserID, a.EmergencyType, a.Title, a.IsSelf, a.Prompt,
		a.Status, a.ResponseText, a.FailureReason, a.Location).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert assessment record: %w", err)
	}
	return nil
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*AssessmentRecord, error) {
	return r.scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM assessment_record WHERE id = $1`, id))
}

func (r *recordRepoPG) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*AssessmentRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM assessment_record WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+recordCols+` FROM assessment_record WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AssessmentRecord
	for rows.Next() {
		a, err := r.scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *recordRepoPG) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM assessment_record WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete assessment records: %w", err)
	}
	return tag.RowsAffected(), nil
}
