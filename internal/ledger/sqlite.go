package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/hsa-ledger/internal/model"
)

// SQLiteBackend implements Backend using modernc.org/sqlite. Wire values are
// stored as written to the sheet backend so the two stores stay
// interchangeable: booleans as Yes/No, link sets pipe-delimited.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens a SQLite database at the given path and configures
// WAL mode.
func NewSQLiteBackend(dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteBackend{db: db}, nil
}

const sqliteMigration = `
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

// tableColumns maps sheet column names to claims table columns, in the
// canonical column order.
var tableColumns = map[string]string{
	model.ColID:                    "id",
	model.ColServiceDate:           "service_date",
	model.ColProvider:              "provider",
	model.ColOriginalProvider:      "original_provider",
	model.ColPatient:               "patient",
	model.ColCategory:              "category",
	model.ColBilledAmount:          "billed_amount",
	model.ColInsurancePaid:         "insurance_paid",
	model.ColPatientResponsibility: "patient_responsibility",
	model.ColHSAEligible:           "hsa_eligible",
	model.ColDocumentType:          "document_type",
	model.ColConfidence:            "confidence",
	model.ColNotes:                 "notes",
	model.ColReimbursed:            "reimbursed",
	model.ColReimbursementDate:     "reimbursement_date",
	model.ColReimbursementAmount:   "reimbursement_amount",
	model.ColLinkedRecordIDs:       "linked_record_ids",
	model.ColIsAuthoritative:       "is_authoritative",
	model.ColFilePath:              "file_path",
	model.ColFileLink:              "file_link",
}

// Init applies the schema migration.
func (b *SQLiteBackend) Init(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close releases the database handle.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// Records returns all rows in id order.
func (b *SQLiteBackend) Records(ctx context.Context) ([]model.ClaimRecord, error) {
	header := model.Columns()
	query := fmt.Sprintf("SELECT %s FROM claims ORDER BY id", columnList(header))

	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list claims")
	}
	defer rows.Close()

	var records []model.ClaimRecord
	for rows.Next() {
		values := make([]string, len(header))
		dest := make([]any, len(header))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan claim")
		}
		records = append(records, model.UnmarshalRow(header, values))
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list claims iterate")
}

// Append assigns the next id by counting existing rows inside a transaction
// and inserts the record.
func (b *SQLiteBackend) Append(ctx context.Context, rec model.ClaimRecord) (int, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM claims`).Scan(&count); err != nil {
		return 0, eris.Wrap(err, "sqlite: count claims")
	}
	rec.ID = count + 1

	header := model.Columns()
	row := rec.MarshalRow(header)
	args := make([]any, len(row))
	for i, v := range row {
		args[i] = v
	}
	query := fmt.Sprintf(
		"INSERT INTO claims (%s) VALUES (%s)",
		columnList(header),
		strings.TrimSuffix(strings.Repeat("?, ", len(header)), ", "),
	)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, eris.Wrap(err, "sqlite: insert claim")
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit")
	}
	return rec.ID, nil
}

// Update rewrites only the patched columns of the matching row.
func (b *SQLiteBackend) Update(ctx context.Context, id int, patch map[string]string) (bool, error) {
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
		sets = append(sets, tableColumns[name]+" = ?")
		args = append(args, value)
	}
	if len(sets) == 0 {
		return b.exists(ctx, id)
	}

	args = append(args, id)
	res, err := b.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE claims SET %s WHERE id = ?", strings.Join(sets, ", ")),
		args...,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: update claim %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (b *SQLiteBackend) exists(ctx context.Context, id int) (bool, error) {
	var one int
	err := b.db.QueryRowContext(ctx, `SELECT 1 FROM claims WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: check claim %d", id)
	}
	return true, nil
}

func columnList(header []string) string {
	cols := make([]string, len(header))
	for i, name := range header {
		cols[i] = tableColumns[name]
	}
	return strings.Join(cols, ", ")
}
