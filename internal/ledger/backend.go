// Package ledger owns the reconciled claim collection: matching, linking,
// deduplication, and the aggregate queries the reporting layer reads.
package ledger

import (
	"context"

	"github.com/sells-group/hsa-ledger/internal/model"
)

// Backend is the durable representation of the claim table. Implementations
// exist for the flat-file sheet layout, sqlite, and postgres.
//
// Append must fetch the current record count immediately before computing
// the next id. With multiple concurrent writers against a shared backend a
// race window remains between count and append; the reference layout offers
// no atomic-append primitive, so the window is minimized, not eliminated.
type Backend interface {
	// Init creates the table/file with the canonical header if missing,
	// backfilling any columns added since the data was first written.
	Init(ctx context.Context) error

	// Records returns every record in insertion order.
	Records(ctx context.Context) ([]model.ClaimRecord, error)

	// Append assigns the next sequential id, writes the record, and
	// returns the assigned id. Ids are never reused or renumbered.
	Append(ctx context.Context, rec model.ClaimRecord) (int, error)

	// Update applies a field patch, keyed by column name, to the record
	// with the given id. Only the named fields are written; unknown names
	// are ignored. Returns false when the id does not exist.
	Update(ctx context.Context, id int, patch map[string]string) (bool, error)

	Close() error
}
