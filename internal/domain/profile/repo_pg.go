package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frma/frma/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const profileCols = `user_id, name, age, gender, weight_kg, height_cm, blood_type,
	conditions, allergies, medications, updated_at`

func (r *repoPG) Get(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+profileCols+` FROM user_profile WHERE user_id = $1`, userID).Scan(
		&p.UserID, &p.Name, &p.Age, &p.Gender, &p.WeightKg, &p.HeightCm, &p.BloodType,
		&p.Conditions, &p.Allergies, &p.Medications, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (r *repoPG) Upsert(ctx context.Context, p *Profile) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO user_profile (user_id, name, age, gender, weight_kg, height_cm, blood_type,
			conditions, allergies, medications)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (user_id) DO UPDATE SET
			name=EXCLUDED.name, age=EXCLUDED.age, gender=EXCLUDED.gender,
			weight_kg=EXCLUDED.weight_kg, height_cm=EXCLUDED.height_cm, blood_type=EXCLUDED.blood_type,
			conditions=EXCLUDED.conditions, allergies=EXCLUDED.allergies, medications=EXCLUDED.medications,
			updated_at=NOW()
		RETURNING updated_at`,
		p.UserID, p.Name, p.Age, p.Gender, p.WeightKg, p.HeightCm, p.BloodType,
		p.Conditions, p.Allergies, p.Medications).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, userID string) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM user_profile WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}
