package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hsa-ledger/internal/model"
	"github.com/sells-group/hsa-ledger/pkg/vision"
)

// mediaTypes maps file extensions to the media types the API accepts.
var mediaTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// VisionExtractor extracts claim data from scanned documents through the
// vision model, one document per call.
type VisionExtractor struct {
	client    vision.Client
	model     string
	maxTokens int64
	family    []string
	skills    map[string]Skill
}

// NewVisionExtractor creates a VisionExtractor.
func NewVisionExtractor(client vision.Client, modelID string, maxTokens int, family []string, skills map[string]Skill) *VisionExtractor {
	if skills == nil {
		skills, _ = LoadSkills("")
	}
	return &VisionExtractor{
		client:    client,
		model:     modelID,
		maxTokens: int64(maxTokens),
		family:    family,
		skills:    skills,
	}
}

// Supported reports whether the file type can be sent to the model.
func Supported(path string) bool {
	_, ok := mediaTypes[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ExtractFile runs one document through the vision model. An unreadable file
// is an error; a model or parse failure is not, and yields the fallback
// extraction so the pipeline can route it to manual review.
func (e *VisionExtractor) ExtractFile(ctx context.Context, path string) (model.DocumentExtraction, error) {
	mediaType, ok := mediaTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return model.DocumentExtraction{}, eris.Errorf("extract: unsupported file type %s", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.DocumentExtraction{}, eris.Wrapf(err, "extract: read %s", path)
	}

	skillKey := DetectSkill(filepath.Base(path), nil, e.skills)
	if skillKey != "" {
		zap.L().Info("extract: provider skill active",
			zap.String("skill", skillKey),
			zap.String("file", filepath.Base(path)),
		)
	}

	resp, err := e.client.ExtractDocument(ctx, vision.ExtractRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		Prompt:    BuildPrompt(e.family, skillKey, e.skills),
		Attachments: []vision.Attachment{{
			MediaType: mediaType,
			Data:      data,
		}},
	})
	if err != nil {
		zap.L().Warn("extract: vision call failed", zap.String("file", path), zap.Error(err))
		return Fallback(path), nil
	}
	resp.Usage.LogCost(e.model, filepath.Base(path))

	return ParsePayload(resp.Text, path), nil
}
