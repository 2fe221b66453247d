package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/frma/frma/internal/domain/assessment"
	"github.com/frma/frma/internal/platform/db"
)

var bloodTypes = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

type Service struct {
	repo    Repository
	records RecordEraser
	inTx    db.TxFunc
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, inTx: noTx}
}

// SetRecordEraser makes Erase also remove the user's assessment records.
func (s *Service) SetRecordEraser(r RecordEraser) { s.records = r }

// SetTransactor runs Erase in a single transaction.
func (s *Service) SetTransactor(tx db.TxFunc) { s.inTx = tx }

func noTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

// Get returns the stored profile, or an empty one for users who never saved
// a profile.
func (s *Service) Get(ctx context.Context, userID string) (*Profile, error) {
	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return &Profile{UserID: userID, Conditions: []string{}, Allergies: []string{}, Medications: []string{}}, nil
	}
	return p, err
}

func (s *Service) Upsert(ctx context.Context, p *Profile) error {
	if p.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if p.Age < 0 || p.Age > 150 {
		return fmt.Errorf("age must be between 0 and 150")
	}
	if p.WeightKg < 0 {
		return fmt.Errorf("weight_kg must not be negative")
	}
	if p.HeightCm < 0 {
		return fmt.Errorf("height_cm must not be negative")
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Gender = strings.TrimSpace(p.Gender)
	p.BloodType = strings.ToUpper(strings.TrimSpace(p.BloodType))
	if p.BloodType != "" && !bloodTypes[p.BloodType] {
		return fmt.Errorf("unknown blood_type %q", p.BloodType)
	}
	p.Conditions = cleanList(p.Conditions)
	p.Allergies = cleanList(p.Allergies)
	p.Medications = cleanList(p.Medications)
	return s.repo.Upsert(ctx, p)
}

// Erase deletes the profile and, when configured, the assessment history of
// the user. It returns the number of assessment records removed.
func (s *Service) Erase(ctx context.Context, userID string) (int64, error) {
	var removed int64
	err := s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, userID); err != nil {
			return err
		}
		if s.records == nil {
			return nil
		}
		n, err := s.records.DeleteByUser(ctx, userID)
		removed = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("erase user data: %w", err)
	}
	return removed, nil
}

// Snapshot implements assessment.ProfileProvider.
func (s *Service) Snapshot(ctx context.Context, userID string) (assessment.ProfileSnapshot, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return assessment.ProfileSnapshot{}, err
	}
	return assessment.ProfileSnapshot{
		Name:        p.Name,
		Age:         p.Age,
		Gender:      p.Gender,
		WeightKg:    p.WeightKg,
		HeightCm:    p.HeightCm,
		BloodType:   p.BloodType,
		Conditions:  p.Conditions,
		Allergies:   p.Allergies,
		Medications: p.Medications,
	}, nil
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		key := strings.ToLower(it)
		if it == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}
