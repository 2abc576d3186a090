package ledger

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hsa-ledger/internal/model"
)

// SheetBackend stores the collection as a flat CSV table: a header row of
// column names followed by one row per record. The file is the source of
// truth; every operation reads it fresh so concurrent CLI invocations see
// each other's appends.
type SheetBackend struct {
	path string
	mu   sync.Mutex
}

// NewSheetBackend creates a backend over the CSV file at path.
func NewSheetBackend(path string) *SheetBackend {
	return &SheetBackend{path: path}
}

// Init creates the file with the canonical header when it does not exist,
// and adds any missing canonical columns when it does. Existing columns are
// never removed or reordered; schema evolution is strictly additive.
func (b *SheetBackend) Init(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := os.Stat(b.path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
			return eris.Wrap(err, "sheet: create directory")
		}
		return b.write([][]string{model.Columns()})
	}

	header, rows, err := b.read()
	if err != nil {
		return err
	}
	header, rows, changed := ensureColumns(header, rows)
	if !changed {
		return nil
	}
	zap.L().Info("sheet: header migrated", zap.Strings("columns", header))
	return b.write(append([][]string{header}, rows...))
}

// Records returns all record rows decoded against the file's own header.
func (b *SheetBackend) Records(_ context.Context) ([]model.ClaimRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	header, rows, err := b.read()
	if err != nil {
		return nil, err
	}
	records := make([]model.ClaimRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, model.UnmarshalRow(header, row))
	}
	return records, nil
}

// Append assigns the next id by counting existing rows and writes the record
// at the end of the table.
func (b *SheetBackend) Append(_ context.Context, rec model.ClaimRecord) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	header, rows, err := b.read()
	if err != nil {
		return 0, err
	}
	rec.ID = len(rows) + 1
	rows = append(rows, rec.MarshalRow(header))
	if err := b.write(append([][]string{header}, rows...)); err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// Update rewrites only the named cells of the matching row, leaving every
// other cell byte-for-byte as it was.
func (b *SheetBackend) Update(_ context.Context, id int, patch map[string]string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	header, rows, err := b.read()
	if err != nil {
		return false, err
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}

	found := false
	for _, row := range rows {
		idx, ok := col[model.ColID]
		if !ok || idx >= len(row) {
			continue
		}
		if row[idx] != strconv.Itoa(id) {
			continue
		}
		found = true
		for name, value := range patch {
			if name == model.ColID {
				continue
			}
			if ci, ok := col[name]; ok && ci < len(row) {
				row[ci] = value
			}
		}
	}
	if !found {
		return false, nil
	}
	return true, b.write(append([][]string{header}, rows...))
}

// Close is a no-op; the file is opened per operation.
func (b *SheetBackend) Close() error { return nil }

func (b *SheetBackend) read() (header []string, rows [][]string, err error) {
	f, err := os.Open(b.path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "sheet: open")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, eris.Wrap(err, "sheet: read")
	}
	if len(all) == 0 {
		return model.Columns(), nil, nil
	}
	return all[0], all[1:], nil
}

// write replaces the file atomically via a temp file in the same directory.
func (b *SheetBackend) write(all [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".sheet-*")
	if err != nil {
		return eris.Wrap(err, "sheet: temp file")
	}
	w := csv.NewWriter(tmp)
	if err := w.WriteAll(all); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return eris.Wrap(err, "sheet: write")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return eris.Wrap(err, "sheet: flush")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return eris.Wrap(err, "sheet: close temp")
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		os.Remove(tmp.Name())
		return eris.Wrap(err, "sheet: rename")
	}
	return nil
}

// ensureColumns appends any canonical column missing from header and pads
// rows to the new width.
func ensureColumns(header []string, rows [][]string) ([]string, [][]string, bool) {
	have := make(map[string]bool, len(header))
	for _, name := range header {
		have[name] = true
	}
	changed := false
	for _, name := range model.Columns() {
		if !have[name] {
			header = append(header, name)
			changed = true
		}
	}
	if !changed {
		return header, rows, false
	}
	for i, row := range rows {
		for len(row) < len(header) {
			row = append(row, "")
		}
		rows[i] = row
	}
	return header, rows, true
}
