package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoPlan is returned by Latest when nothing has been saved yet
var ErrNoPlan = errors.New("no plan recorded")

// Store persists run reports
type Store interface {
	Save(ctx context.Context, report *Report) error
	Latest(ctx context.Context) (*Report, error)
}

// MemoryStore keeps reports in process; used by tests and runs without a database
type MemoryStore struct {
	mu      sync.RWMutex
	reports []*Report
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save implements Store
func (s *MemoryStore) Save(_ context.Context, report *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	report.ID = int64(len(s.reports) + 1)
	s.reports = append(s.reports, report)
	return nil
}

// Latest implements Store
func (s *MemoryStore) Latest(_ context.Context) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.reports) == 0 {
		return nil, ErrNoPlan
	}
	return s.reports[len(s.reports)-1], nil
}

// PGStore persists reports as JSONB rows in trading.plans
// ⭐ SSOT: plan persistence lives only here
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a store over an existing pool
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Save implements Store
func (s *PGStore) Save(ctx context.Context, report *Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	query := `
		INSERT INTO trading.plans (plan_date, status, config_hash, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	if err := s.pool.QueryRow(ctx, query, report.PlanDate, report.Status, report.ConfigHash, payload).Scan(&report.ID); err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

// Latest implements Store
func (s *PGStore) Latest(ctx context.Context) (*Report, error) {
	query := `
		SELECT id, payload
		FROM trading.plans
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var id int64
	var payload []byte
	err := s.pool.QueryRow(ctx, query).Scan(&id, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoPlan
	}
	if err != nil {
		return nil, fmt.Errorf("query latest plan: %w", err)
	}

	var report Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("decode plan %d: %w", id, err)
	}
	report.ID = id
	return &report, nil
}
