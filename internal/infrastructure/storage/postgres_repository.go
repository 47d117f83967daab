package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"WolverineBrief/internal/domain"
	"WolverineBrief/internal/ports"
)

const defaultTable = "raw_items"

var tableNameExpr = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var itemColumns = []string{"source_id", "external_id", "title", "body", "category", "subcategory", "occurred_at", "url"}

// PostgresRepository persists raw items into Postgres, keyed by (source_id, external_id).
type PostgresRepository struct {
	db    *sql.DB
	table string
	psql  sq.StatementBuilderType
}

var _ ports.ItemRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation; an empty table uses raw_items.
func NewPostgresRepository(db *sql.DB, table string) (*PostgresRepository, error) {
	if table == "" {
		table = defaultTable
	}
	if !tableNameExpr.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresRepository{
		db:    db,
		table: table,
		psql:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// Open connects with the lib/pq driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the item table and its occurred_at index when missing,
// and adds columns introduced after the table was first created.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			source_id   TEXT NOT NULL,
			external_id TEXT NOT NULL,
			title       TEXT NOT NULL,
			body        TEXT NOT NULL DEFAULT '',
			category    TEXT NOT NULL,
			subcategory TEXT NOT NULL DEFAULT '',
			occurred_at TIMESTAMPTZ NOT NULL,
			url         TEXT NOT NULL DEFAULT '',
			ingested_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (source_id, external_id)
		)`, r.table),
		fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS subcategory TEXT NOT NULL DEFAULT ''`, r.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_occurred_at_idx ON %s (occurred_at)`, r.table, r.table),
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return wrap("ensure schema", err)
		}
	}
	return nil
}

// ExistingKeys returns which of the external ids are already stored for a source.
func (r *PostgresRepository) ExistingKeys(ctx context.Context, sourceID string, externalIDs []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(externalIDs) == 0 {
		return result, nil
	}

	query, args, err := r.psql.
		Select("external_id").
		From(r.table).
		Where(sq.Eq{"source_id": sourceID}).
		Where(sq.Expr("external_id = ANY(?)", pq.StringArray(externalIDs))).
		ToSql()
	if err != nil {
		return nil, wrap("build existing keys", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("query existing keys", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrap("scan existing key", err)
		}
		result[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate existing keys", err)
	}
	return result, nil
}

// InsertIfAbsent stores the item unless its key exists; it reports whether a row was written.
func (r *PostgresRepository) InsertIfAbsent(ctx context.Context, item domain.RawItem) (bool, error) {
	query, args, err := r.psql.
		Insert(r.table).
		Columns(itemColumns...).
		Values(item.SourceID, item.ExternalID, item.Title, item.Body, string(item.Category), item.Subcategory, item.OccurredAt.UTC(), item.URL).
		Suffix("ON CONFLICT (source_id, external_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, wrap("build insert", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, wrap("insert item "+item.Key().String(), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, wrap("insert item "+item.Key().String(), err)
	}
	return affected > 0, nil
}

// QueryRange returns items with start <= occurred_at < end, most recent first.
func (r *PostgresRepository) QueryRange(ctx context.Context, start, end time.Time) ([]domain.RawItem, error) {
	query, args, err := r.psql.
		Select(itemColumns...).
		From(r.table).
		Where(sq.GtOrEq{"occurred_at": start.UTC()}).
		Where(sq.Lt{"occurred_at": end.UTC()}).
		OrderBy("occurred_at DESC", "source_id", "external_id").
		ToSql()
	if err != nil {
		return nil, wrap("build range query", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("query range", err)
	}
	defer rows.Close()

	var items []domain.RawItem
	for rows.Next() {
		var (
			item     domain.RawItem
			category string
		)
		if err := rows.Scan(&item.SourceID, &item.ExternalID, &item.Title, &item.Body, &category, &item.Subcategory, &item.OccurredAt, &item.URL); err != nil {
			return nil, wrap("scan item", err)
		}
		item.Category = domain.Category(category)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate items", err)
	}
	return items, nil
}

func wrap(op string, err error) error {
	return &domain.StorageError{Op: op, Err: err}
}
