package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/hsa-ledger/internal/model"
)

// Pool is the subset of pgxpool.Pool the backend uses. Tests substitute a
// mock pool.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresBackend implements Backend using pgxpool. Wire values match the
// sheet backend cell for cell.
type PostgresBackend struct {
	pool Pool
}

// NewPostgresBackend creates a PostgresBackend with a connection pool.
func NewPostgresBackend(ctx context.Context, connString string) (*PostgresBackend, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 5
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresBackend{pool: pool}, nil
}

// NewPostgresBackendWithPool wraps an existing pool.
func NewPostgresBackendWithPool(pool Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS claims (
	id                     INTEGER PRIMARY KEY,
	service_date           TEXT NOT NULL DEFAULT '',
	provider               TEXT NOT NULL DEFAULT '',
	original_provider      TEXT NOT NULL DEFAULT '',
	patient                TEXT NOT NULL DEFAULT '',
	category               TEXT NOT NULL DEFAULT '',
	billed_amount          TEXT NOT NULL DEFAULT '0.00',
	insurance_paid         TEXT NOT NULL DEFAULT '0.00',
	patient_responsibility TEXT NOT NULL DEFAULT '0.00',
	hsa_eligible           TEXT NOT NULL DEFAULT 'No',
	document_type          TEXT NOT NULL DEFAULT '',
	confidence             TEXT NOT NULL DEFAULT '',
	notes                  TEXT NOT NULL DEFAULT '',
	reimbursed             TEXT NOT NULL DEFAULT 'No',
	reimbursement_date     TEXT NOT NULL DEFAULT '',
	reimbursement_amount   TEXT NOT NULL DEFAULT '',
	linked_record_ids      TEXT NOT NULL DEFAULT '',
	is_authoritative       TEXT NOT NULL DEFAULT '',
	file_path              TEXT NOT NULL DEFAULT '',
	file_link              TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_claims_service_date ON claims(service_date);
CREATE INDEX IF NOT EXISTS idx_claims_patient ON claims(patient);
`

// Init applies the schema migration.
func (b *PostgresBackend) Init(ctx context.Context) error {
	_, err := b.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}

// Records returns all rows in id order.
func (b *PostgresBackend) Records(ctx context.Context) ([]model.ClaimRecord, error) {
	header := model.Columns()
	query := fmt.Sprintf("SELECT %s FROM claims ORDER BY id", columnList(header))

	rows, err := b.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list claims")
	}
	defer rows.Close()

	var records []model.ClaimRecord
	for rows.Next() {
		var id int
		values := make([]string, len(header))
		dest := make([]any, len(header))
		dest[0] = &id
		for i := 1; i < len(values); i++ {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan claim")
		}
		values[0] = fmt.Sprintf("%d", id)
		records = append(records, model.UnmarshalRow(header, values))
	}
	return records, eris.Wrap(rows.Err(), "postgres: list claims iterate")
}

// Append assigns the next id by counting existing rows inside a transaction
// and inserts the record.
func (b *PostgresBackend) Append(ctx context.Context, rec model.ClaimRecord) (int, error) {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx)

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM claims`).Scan(&count); err != nil {
		return 0, eris.Wrap(err, "postgres: count claims")
	}
	rec.ID = count + 1

	header := model.Columns()
	row := rec.MarshalRow(header)
	args := make([]any, len(row))
	args[0] = rec.ID
	for i := 1; i < len(row); i++ {
		args[i] = row[i]
	}
	placeholders := make([]string, len(header))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(
		"INSERT INTO claims (%s) VALUES (%s)",
		columnList(header),
		strings.Join(placeholders, ", "),
	)
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return 0, eris.Wrap(err, "postgres: insert claim")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit")
	}
	return rec.ID, nil
}

// Update rewrites only the patched columns of the matching row.
func (b *PostgresBackend) Update(ctx context.Context, id int, patch map[string]string) (bool, error) {
	var sets []string
	var args []any
	for _, name := range model.Columns() {
		if name == model.ColID {
			continue
		}
		value, ok := patch[name]
		if !ok {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", tableColumns[name], len(args)+1))
		args = append(args, value)
	}
	if len(sets) == 0 {
		return b.exists(ctx, id)
	}

	args = append(args, id)
	tag, err := b.pool.Exec(ctx,
		fmt.Sprintf("UPDATE claims SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args)),
		args...,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: update claim %d", id)
	}
	return tag.RowsAffected() > 0, nil
}

func (b *PostgresBackend) exists(ctx context.Context, id int) (bool, error) {
	var one int
	err := b.pool.QueryRow(ctx, `SELECT 1 FROM claims WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: check claim %d", id)
	}
	return true, nil
}
