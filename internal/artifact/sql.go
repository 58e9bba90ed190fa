package artifact

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const artifactsTable = "artifacts"

var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS artifacts (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL,
	file_name TEXT NOT NULL,
	kind TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS artifacts_request_id_idx ON artifacts (request_id)`,
}

// StoredArtifact is one row of the artifact log.
type StoredArtifact struct {
	ID        string `sql:"id"`
	RequestID string `sql:"request_id"`
	FileName  string `sql:"file_name"`
	Kind      string `sql:"kind"`
	Payload   string `sql:"payload"`
	CreatedAt string `sql:"created_at"`
}

// SQLStore logs artifacts to a SQL table on SQLite or Postgres.
type SQLStore struct {
	drv     *entsql.Driver
	name    string
	release func()
	logger  *slog.Logger
	now     func() time.Time
}

func NewSQLStore(drv *entsql.Driver, name string, logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLStore{drv: drv, name: name, logger: logger, now: time.Now}
}

// OpenSQLite opens (creating if needed) a SQLite database at path and migrates it.
// ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s := NewSQLStore(entsql.OpenDB(dialect.SQLite, db), "sqlite", logger)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenPostgres connects through a pgx pool wrapped as *sql.DB and migrates the table.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("artifact.db.connect", "sink", "postgres")
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("artifact.db.connect_failed", "error", err)
		return nil, err
	}
	pc.MaxConns = 4
	pc.MaxConnIdleTime = 5 * time.Minute
	pc.ConnConfig.RuntimeParams["application_name"] = "docextract"

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("artifact.db.connect_failed", "error", err)
		return nil, err
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		logger.Error("artifact.db.ping_failed", "error", err)
		return nil, err
	}

	db := stdlib.OpenDBFromPool(pool)
	s := NewSQLStore(entsql.OpenDB(dialect.Postgres, db), "postgres", logger)
	s.release = pool.Close
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	logger.Info("artifact.db.connected", "sink", "postgres")
	return s, nil
}

func (s *SQLStore) Name() string { return s.name }

func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schemaDDL {
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("migrate artifacts: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Write(ctx context.Context, rec Record) error {
	payload := string(rec.Data)
	if rec.Kind == KindInput {
		// Raw uploads stay on disk; the log keeps a summary.
		b, _ := json.Marshal(map[string]any{"bytes": len(rec.Data), "ext": extOf(rec.FileName)})
		payload = string(b)
	}
	query, args := entsql.Dialect(s.drv.Dialect()).
		Insert(artifactsTable).
		Columns("id", "request_id", "file_name", "kind", "payload", "created_at").
		Values(uuid.NewString(), rec.RequestID, rec.FileName, string(rec.Kind), payload,
			s.now().UTC().Format(time.RFC3339Nano)).
		Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

// List returns the artifacts logged for requestID, oldest first.
func (s *SQLStore) List(ctx context.Context, requestID string) ([]StoredArtifact, error) {
	t := entsql.Table(artifactsTable)
	query, args := entsql.Dialect(s.drv.Dialect()).
		Select(t.C("id"), t.C("request_id"), t.C("file_name"), t.C("kind"), t.C("payload"), t.C("created_at")).
		From(t).
		Where(entsql.EQ(t.C("request_id"), requestID)).
		OrderBy(t.C("created_at"), t.C("id")).
		Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []StoredArtifact
	if err := entsql.ScanSlice(rows, &out); err != nil {
		return nil, fmt.Errorf("scan artifacts: %w", err)
	}
	return out, nil
}

func (s *SQLStore) Close() error {
	err := s.drv.Close()
	if s.release != nil {
		s.release()
	}
	return err
}
