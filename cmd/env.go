package main

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hsa-ledger/internal/extract"
	"github.com/sells-group/hsa-ledger/internal/ledger"
	"github.com/sells-group/hsa-ledger/internal/model"
	"github.com/sells-group/hsa-ledger/internal/reconcile"
	"github.com/sells-group/hsa-ledger/pkg/vision"
)

// appEnv holds the initialized ledger, engine, and extractors shared by the
// processing commands.
type appEnv struct {
	Ledger    *ledger.Ledger
	Engine    *reconcile.Engine
	Extractor *extract.VisionExtractor // nil when the API key is not configured
	Skills    map[string]extract.Skill
	Family    []string
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Ledger != nil {
		_ = e.Ledger.Close()
	}
}

// openLedger opens the configured backend and runs its migration.
func openLedger(ctx context.Context) (*ledger.Ledger, error) {
	var backend ledger.Backend
	switch cfg.Store.Driver {
	case "sheet":
		backend = ledger.NewSheetBackend(cfg.Store.Path)
	case "sqlite":
		b, err := ledger.NewSQLiteBackend(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		backend = b
	case "postgres":
		b, err := ledger.NewPostgresBackend(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		backend = b
	default:
		return nil, eris.Errorf("cmd: unknown store driver %q", cfg.Store.Driver)
	}

	l := ledger.New(backend)
	if err := l.Init(ctx); err != nil {
		_ = l.Close()
		return nil, err
	}
	return l, nil
}

// initEnv sets up the ledger, reconciliation engine, and extraction stack.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	l, err := openLedger(ctx)
	if err != nil {
		return nil, err
	}

	skills, err := extract.LoadSkills(cfg.Anthropic.SkillsFile)
	if err != nil {
		_ = l.Close()
		return nil, err
	}

	env := &appEnv{
		Ledger: l,
		Engine: reconcile.NewEngine(l, cfg.Family, cfg.StartTime()),
		Skills: skills,
		Family: cfg.Family,
	}

	if cfg.Anthropic.Key != "" {
		client := vision.NewClient(cfg.Anthropic.Key, cfg.Anthropic.RequestsPerMin)
		env.Extractor = extract.NewVisionExtractor(client, cfg.Anthropic.Model,
			cfg.Anthropic.MaxTokens, cfg.Family, skills)
		zap.L().Debug("vision extraction enabled", zap.String("model", cfg.Anthropic.Model))
	} else {
		zap.L().Warn("HSA_ANTHROPIC_KEY not set, vision extraction disabled; only xlsx/csv exports can be processed")
	}

	return env, nil
}

// payerCategories maps provider skills that represent payers onto their
// coverage area for deterministic CSV exports.
var payerCategories = map[string]model.Category{
	"aetna":        model.CategoryMedical,
	"delta_dental": model.CategoryDental,
	"vsp":          model.CategoryVision,
}

// processFile routes one document through the matching extractor and feeds
// the result to the reconciliation engine. Deterministic exports (xlsx, csv)
// bypass the vision model entirely.
func (e *appEnv) processFile(ctx context.Context, path, patientHint string) (model.DocumentExtraction, reconcile.BatchResult, error) {
	ext, err := e.extractFile(ctx, path, patientHint)
	if err != nil {
		return model.DocumentExtraction{}, reconcile.BatchResult{}, err
	}
	batch, err := e.Engine.ProcessDocument(ctx, ext)
	return ext, batch, err
}

// extractFile runs extraction only, without touching the ledger.
func (e *appEnv) extractFile(ctx context.Context, path, patientHint string) (model.DocumentExtraction, error) {
	var (
		ext model.DocumentExtraction
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		ext, err = extract.ParsePharmacyExport(path)
	case ".csv":
		key := extract.DetectSkill(filepath.Base(path), nil, e.Skills)
		category, ok := payerCategories[key]
		if !ok {
			category = model.CategoryMedical
		}
		ext, err = extract.ParsePayerExport(path, payerDisplayName(key), category)
	default:
		if e.Extractor == nil {
			return model.DocumentExtraction{}, eris.New("cmd: vision extraction not configured, set HSA_ANTHROPIC_KEY")
		}
		ext, err = e.Extractor.ExtractFile(ctx, path)
	}
	if err != nil {
		return model.DocumentExtraction{}, err
	}
	applyPatientHint(&ext, patientHint, e.Family)
	return ext, nil
}

// applyPatientHint fills in the patient on claims the extractor could not
// attribute: an empty name, an "Unknown" placeholder, or any name that does
// not resolve to a configured family member and would otherwise default to
// the primary holder. A name that matches a family member always wins over
// the hint.
func applyPatientHint(ext *model.DocumentExtraction, hint string, family []string) {
	if hint == "" {
		return
	}
	for i := range ext.Claims {
		name := strings.TrimSpace(ext.Claims[i].PatientName)
		if name == "" {
			ext.Claims[i].PatientName = hint
			continue
		}
		if _, ok := reconcile.MatchPatient(name, family); !ok {
			ext.Claims[i].PatientName = hint
		}
	}
}

// payerDisplayName renders a skill key as a payer name: "express_scripts"
// becomes "Express Scripts".
func payerDisplayName(key string) string {
	if key == "" {
		return "Insurance Payer"
	}
	parts := strings.Split(key, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
