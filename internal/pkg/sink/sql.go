package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/config"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
)

// SQL upserts matches by url into a "matches" table. Postgres and sqlite share
// the schema and the ON CONFLICT statement; only placeholders differ.
type SQL struct {
	db     *sql.DB
	driver string
}

var _ Sink = (*SQL)(nil)

// NewSQL opens the database, checks the connection and creates the schema.
func NewSQL(ctx context.Context, cfg config.StorageConfig) (*SQL, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage DSN is required")
	}
	if cfg.Driver != "postgres" && cfg.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", cfg.Driver, err)
	}
	if cfg.Driver == "sqlite" {
		// in-memory databases live per connection
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Driver, err)
	}

	s := &SQL{db: db, driver: cfg.Driver}
	if err := s.initSchema(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("SQL: storage initialized", "driver", cfg.Driver)
	return s, nil
}

func (s *SQL) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS matches (
			url TEXT PRIMARY KEY,
			home_team TEXT NOT NULL,
			away_team TEXT NOT NULL,
			tournament TEXT NOT NULL,
			start_time TEXT NOT NULL,
			status TEXT NOT NULL,
			method TEXT NOT NULL,
			run_id TEXT NOT NULL,
			scraped_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_run_id ON matches(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_scraped_at ON matches(scraped_at DESC)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQL) Name() string { return "sql" }

// placeholders returns "$1, $2, ..." for postgres and "?, ?, ..." for sqlite.
func (s *SQL) placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		if s.driver == "postgres" {
			ph[i] = fmt.Sprintf("$%d", i+1)
		} else {
			ph[i] = "?"
		}
	}
	return strings.Join(ph, ", ")
}

// Write upserts all matches in one transaction.
func (s *SQL) Write(ctx context.Context, run RunInfo, matches []models.Match) error {
	if len(matches) == 0 {
		return nil
	}

	query := `INSERT INTO matches (url, home_team, away_team, tournament, start_time, status, method, run_id, scraped_at)
		VALUES (` + s.placeholders(9) + `)
		ON CONFLICT (url) DO UPDATE SET
			home_team = excluded.home_team,
			away_team = excluded.away_team,
			tournament = excluded.tournament,
			start_time = excluded.start_time,
			status = excluded.status,
			method = excluded.method,
			run_id = excluded.run_id,
			scraped_at = excluded.scraped_at`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	at := run.At.UTC()
	for _, m := range matches {
		if _, err := stmt.ExecContext(ctx, m.URL, m.HomeTeam, m.AwayTeam, m.Tournament, m.StartTime, m.Status, run.Method, run.ID, at); err != nil {
			return fmt.Errorf("upsert %s: %w", m.URL, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.Info("SQL: matches stored", "count", len(matches), "run_id", run.ID)
	return nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}
