package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/frma/frma/internal/domain/assessment"
)

var ErrNotFound = errors.New("emergency type not found")

// Service serves the read-only emergency-type catalog.
type Service struct {
	types []EmergencyType
	byID  map[string]int
}

func NewService(types []EmergencyType) *Service {
	s := &Service{types: types, byID: make(map[string]int, len(types))}
	for i, t := range types {
		if _, dup := s.byID[t.ID]; !dup {
			s.byID[t.ID] = i
		}
	}
	return s
}

func (s *Service) List() []Summary {
	out := make([]Summary, 0, len(s.types))
	for _, t := range s.types {
		out = append(out, t.Summary())
	}
	return out
}

func (s *Service) Get(id string) (*EmergencyType, error) {
	i, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	t := s.types[i]
	return &t, nil
}

// Lookup implements assessment.Catalog.
func (s *Service) Lookup(_ context.Context, id string) (assessment.Definition, error) {
	t, err := s.Get(id)
	if err != nil {
		return assessment.Definition{}, fmt.Errorf("emergency type %q: %w", id, assessment.ErrConfigurationMissing)
	}
	return t.Definition(), nil
}

// Validate reports duplicate type ids and, per type, duplicate question
// ids, unknown jump targets and unknown dependencies.
func (s *Service) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(s.types))
	for _, t := range s.types {
		if seen[t.ID] {
			errs = append(errs, fmt.Errorf("duplicate emergency type %q", t.ID))
		}
		seen[t.ID] = true
		if err := assessment.ValidateCatalog(t.Questions); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.ID, err))
		}
	}
	return errors.Join(errs...)
}
