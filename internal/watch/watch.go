package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hsa-ledger/internal/model"
	"github.com/sells-group/hsa-ledger/internal/reconcile"
)

const (
	processedDir = "processed"
	failedDir    = "failed"
)

// inboxExtensions are the document types the watcher will pick up. Anything
// else in the inbox is left alone.
var inboxExtensions = map[string]bool{
	".pdf": true, ".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".webp": true, ".tiff": true, ".bmp": true,
	".xlsx": true, ".csv": true,
}

// ProcessFunc runs one inbox file through extraction and reconciliation.
// The patientHint, when non-empty, names the family member the filename
// mentions.
type ProcessFunc func(ctx context.Context, path, patientHint string) (model.DocumentExtraction, reconcile.BatchResult, error)

// Watcher polls an inbox directory and routes each new document through the
// processing pipeline. Processed files move to <dir>/processed under their
// canonical filename token; failures move to <dir>/failed untouched, so a
// bad document never blocks the rest of the inbox.
type Watcher struct {
	dir     string
	family  []string
	process ProcessFunc
}

func New(dir string, family []string, process ProcessFunc) *Watcher {
	return &Watcher{dir: dir, family: family, process: process}
}

// PatientHint returns the family member whose name appears in the filename,
// or "" when no member matches. Both the full name and the first name are
// checked, so "CVS_Alice_prescription.jpg" resolves for "Alice Johnson".
func PatientHint(filename string, family []string) string {
	lower := strings.ToLower(filename)
	for _, member := range family {
		if strings.Contains(lower, strings.ToLower(member)) {
			return member
		}
		if fields := strings.Fields(member); len(fields) > 0 &&
			strings.Contains(lower, strings.ToLower(fields[0])) {
			return member
		}
	}
	return ""
}

// Poll runs one pass over the inbox. Every eligible file is processed
// independently; a failing file is quarantined and the pass continues.
func (w *Watcher) Poll(ctx context.Context) ([]reconcile.BatchResult, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "watch: read inbox %s", w.dir)
	}

	var results []reconcile.BatchResult
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name := entry.Name()
		if !inboxExtensions[strings.ToLower(filepath.Ext(name))] {
			zap.L().Debug("watch: skipping non-document file", zap.String("file", name))
			continue
		}

		path := filepath.Join(w.dir, name)
		hint := PatientHint(name, w.family)
		zap.L().Info("watch: processing inbox file",
			zap.String("file", name),
			zap.String("patient_hint", hint))

		ext, batch, err := w.process(ctx, path, hint)
		if err != nil {
			zap.L().Error("watch: processing failed",
				zap.String("file", name),
				zap.Error(err))
			if mvErr := w.moveTo(path, failedDir, name); mvErr != nil {
				zap.L().Warn("watch: quarantine failed", zap.Error(mvErr))
			}
			continue
		}

		results = append(results, batch)
		if mvErr := w.moveTo(path, processedDir, processedName(ext, name)); mvErr != nil {
			zap.L().Warn("watch: archive failed", zap.Error(mvErr))
		}
		zap.L().Info("watch: processed inbox file",
			zap.String("file", name),
			zap.Int("claims", len(batch.Claims)),
			zap.Int("added", batch.Count(reconcile.OutcomeAdded)),
			zap.Int("linked", batch.Count(reconcile.OutcomeLinked)),
			zap.Int("duplicates", batch.Count(reconcile.OutcomeDuplicate)))
	}
	return results, nil
}

// Watch polls on the given cron schedule until the context is canceled.
// Both 5-field expressions and descriptors like "@every 60s" are accepted.
func (w *Watcher) Watch(ctx context.Context, schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return eris.Wrapf(err, "watch: parse schedule %q", schedule)
	}

	zap.L().Info("watch: starting inbox watcher",
		zap.String("dir", w.dir),
		zap.String("schedule", schedule))

	for {
		now := time.Now()
		timer := time.NewTimer(sched.Next(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			zap.L().Info("watch: stopping inbox watcher")
			return nil
		case <-timer.C:
		}
		if _, err := w.Poll(ctx); err != nil {
			zap.L().Error("watch: poll failed", zap.Error(err))
		}
	}
}

// processedName derives the archive filename from the extraction. Documents
// whose primary claim has a service date get the canonical token; anything
// else keeps its original name.
func processedName(ext model.DocumentExtraction, original string) string {
	claim := ext.PrimaryClaim()
	if claim.ServiceDate == "" {
		return original
	}
	provider := claim.OriginalProvider
	if provider == "" {
		provider = ext.Provider
	}
	return model.FileToken(claim.ServiceDate, provider, claim.ServiceType,
		claim.PatientResponsibility, filepath.Ext(original))
}

func (w *Watcher) moveTo(path, sub, name string) error {
	dir := filepath.Join(w.dir, sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "watch: create %s", dir)
	}
	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); err == nil {
		base := strings.TrimSuffix(name, filepath.Ext(name))
		dest = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, time.Now().Unix(), filepath.Ext(name)))
	}
	if err := os.Rename(path, dest); err != nil {
		return eris.Wrapf(err, "watch: move %s", path)
	}
	return nil
}
