package research

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/seovimalraj/locations/internal/cache"
	apperrors "github.com/seovimalraj/locations/pkg/errors"
	"github.com/seovimalraj/locations/pkg/postgres"
)

// Store persists completed runs so results can be fetched again by ID.
type Store interface {
	Save(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	Recent(ctx context.Context, limit int) ([]*Run, error)
}

func notFound(id string) error {
	return apperrors.Newf(apperrors.ErrNotFound, apperrors.SourceSystem, 404, "research run %q not found", id)
}

// MemoryStore keeps runs in process for a fixed retention period.
type MemoryStore struct {
	runs *cache.Expiring[*Run]

	mu    sync.Mutex
	order []string
}

func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{runs: cache.NewExpiring[*Run](retention)}
}

func (s *MemoryStore) Save(_ context.Context, run *Run) error {
	s.runs.Set(run.ID, run)
	s.mu.Lock()
	s.order = append(s.order, run.ID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Run, error) {
	run, ok := s.runs.Get(id)
	if !ok {
		return nil, notFound(id)
	}
	return run, nil
}

// Recent returns up to limit unexpired runs, newest first. Expired IDs are
// pruned from the ordering as they are encountered.
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Run
	live := s.order[:0]
	for _, id := range s.order {
		if _, ok := s.runs.Get(id); ok {
			live = append(live, id)
		}
	}
	s.order = live
	for i := len(live) - 1; i >= 0 && len(out) < limit; i-- {
		if run, ok := s.runs.Get(live[i]); ok {
			out = append(out, run)
		}
	}
	return out, nil
}

// PostgresStore persists runs as JSONB in a research_runs table.
type PostgresStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: slog.Default().With("component", "research-store"),
	}
}

// EnsureSchema creates the research_runs table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS research_runs (
			id              TEXT PRIMARY KEY,
			title           TEXT NOT NULL,
			primary_keyword TEXT NOT NULL,
			data            JSONB NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("creating research_runs table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, run *Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO research_runs (id, title, primary_keyword, data, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
		run.ID, run.Request.Title, run.Result.PrimaryKeyword.Phrase, data, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving research run: %w", err)
	}
	s.logger.Debug("research run saved", "run_id", run.ID)
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Run, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx, `SELECT data FROM research_runs WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying research run: %w", err)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("unmarshaling research run: %w", err)
	}
	return &run, nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT data FROM research_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing research runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning research run: %w", err)
		}
		var run Run
		if err := json.Unmarshal(data, &run); err != nil {
			s.logger.Warn("skipping corrupt research run", "error", err)
			continue
		}
		runs = append(runs, &run)
	}
	return slices.Clip(runs), rows.Err()
}
