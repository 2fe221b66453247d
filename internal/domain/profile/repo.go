package profile

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("profile not found")

type Repository interface {
	Get(ctx context.Context, userID string) (*Profile, error)
	Upsert(ctx context.Context, p *Profile) error
	Delete(ctx context.Context, userID string) error
}

// RecordEraser removes a user's stored assessment history.
type RecordEraser interface {
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}
