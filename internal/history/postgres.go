package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"knowledge-assistant/internal/models"
)

type turnRow struct {
	bun.BaseModel `bun:"table:conversation_turns,alias:t"`

	ID        int64  `bun:"id,pk,autoincrement"`
	SessionID string `bun:"session_id,notnull"`
	Seq       int    `bun:"seq,notnull"`
	Role      string `bun:"role,notnull"`
	Content   string `bun:"content,notnull"`
}

// PostgresStore keeps conversation turns in a Postgres table, one row
// per turn ordered by a per-session sequence number. Database-backed
// deployments use it in place of the file store.
type PostgresStore struct {
	db *bun.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects, optionally enables the bundebug query hook,
// and creates the table if it does not exist.
func NewPostgresStore(ctx context.Context, dsn string, debug bool) (*PostgresStore, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	if _, err := db.NewCreateTable().Model((*turnRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating conversation_turns table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Load returns the session's turns ordered by sequence number.
func (s *PostgresStore) Load(ctx context.Context, sessionID string) ([]models.Turn, error) {
	var rows []turnRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	turns := make([]models.Turn, len(rows))
	for i, r := range rows {
		turns[i] = models.Turn{Role: r.Role, Content: r.Content}
	}
	return turns, nil
}

// Append inserts the turns in one transaction, continuing the session's
// sequence. The transaction gives the same all-or-nothing guarantee the
// file store gets from rename; the advisory lock serializes concurrent
// appends to the same session the way the file store's per-session
// mutex does, so two writers cannot read the same MAX(seq).
func (s *PostgresStore) Append(ctx context.Context, sessionID string, turns ...models.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw(
			"SELECT pg_advisory_xact_lock(hashtext(?))", sessionID,
		).Exec(ctx); err != nil {
			return fmt.Errorf("locking session: %w", err)
		}

		var next int
		err := tx.NewSelect().
			Model((*turnRow)(nil)).
			ColumnExpr("COALESCE(MAX(seq), 0) + 1").
			Where("session_id = ?", sessionID).
			Scan(ctx, &next)
		if err != nil {
			return fmt.Errorf("reading next sequence: %w", err)
		}
		rows := make([]turnRow, len(turns))
		for i, t := range turns {
			rows[i] = turnRow{
				SessionID: sessionID,
				Seq:       next + i,
				Role:      t.Role,
				Content:   t.Content,
			}
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("inserting turns: %w", err)
		}
		return nil
	})
}

// Clear deletes every turn of the session.
func (s *PostgresStore) Clear(ctx context.Context, sessionID string) error {
	_, err := s.db.NewDelete().
		Model((*turnRow)(nil)).
		Where("session_id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}
