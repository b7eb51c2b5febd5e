package audit

import (
	"context"
	"fmt"
	"time"
)

// Repository is the persistence contract for audit entries.
type Repository interface {
	Search(ctx context.Context, q Query) ([]Entry, int, error)
	ListRange(ctx context.Context, from, to time.Time) ([]Entry, error)
	Insert(ctx context.Context, e Entry, retainUntil time.Time) (int64, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Service coordinates audit search, export and recording.
type Service struct {
	repo      Repository
	retention time.Duration
	now       func() time.Time
}

// NewService creates an audit service. Entries are retained for retention
// (zero keeps them forever).
func NewService(repo Repository, retention time.Duration) *Service {
	return &Service{repo: repo, retention: retention, now: time.Now}
}

// Search returns one page of entries matching q.
func (s *Service) Search(ctx context.Context, q Query) (Page, error) {
	if s.repo == nil {
		return Page{}, fmt.Errorf("audit: repository not configured")
	}
	q = q.WithDefaults()
	if err := q.Validate(); err != nil {
		return Page{}, err
	}
	entries, total, err := s.repo.Search(ctx, q)
	if err != nil {
		return Page{}, fmt.Errorf("audit: search: %w", err)
	}
	return NewPage(entries, total, q), nil
}

// Export returns every entry within the filter bounds, newest first.
func (s *Service) Export(ctx context.Context, filters ExportFilters) ([]Entry, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	if filters.Format != "" && filters.Format != ExportFormatCSV {
		return nil, ErrUnsupportedFormat
	}
	if !filters.From.IsZero() && !filters.To.IsZero() && filters.From.After(filters.To) {
		return nil, fmt.Errorf("%w: range", ErrInvalidQuery)
	}
	rows, err := s.repo.ListRange(ctx, filters.From, filters.To)
	if err != nil {
		return nil, fmt.Errorf("audit: export: %w", err)
	}
	return rows, nil
}

// Record persists a new entry stamped with the current time.
func (s *Service) Record(ctx context.Context, e Entry) error {
	if s.repo == nil {
		return fmt.Errorf("audit: repository not configured")
	}
	if !e.Action.Valid() {
		return fmt.Errorf("%w: action %q", ErrInvalidQuery, e.Action)
	}
	now := s.now().UTC()
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	if e.RiskLevel == RiskUnspecified {
		e.RiskLevel = RiskLow
	}
	var retainUntil time.Time
	if s.retention > 0 {
		retainUntil = e.Timestamp.Add(s.retention)
	}
	if _, err := s.repo.Insert(ctx, e, retainUntil); err != nil {
		return fmt.Errorf("audit: record: %w", err)
	}
	return nil
}

// PurgeExpired removes entries whose retention date has passed.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	if s.repo == nil {
		return 0, fmt.Errorf("audit: repository not configured")
	}
	n, err := s.repo.PurgeExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("audit: purge: %w", err)
	}
	return n, nil
}
