package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenUsage_EstimateCost(t *testing.T) {
	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 500_000}

	cost := u.EstimateCost("claude-haiku-4-5-20251001")
	assert.InDelta(t, 0.80+2.00, cost, 0.0001)

	assert.Zero(t, u.EstimateCost("unknown-model"))
}

func TestAttachmentBlock_PDFUsesDocumentSource(t *testing.T) {
	block := attachmentBlock(Attachment{MediaType: "application/pdf", Data: []byte("%PDF-1.4")})
	assert.NotNil(t, block.OfDocument)
	assert.NotNil(t, block.OfDocument.Source.OfBase64)
}

func TestAttachmentBlock_ImageUsesImageSource(t *testing.T) {
	block := attachmentBlock(Attachment{MediaType: "image/png", Data: []byte{0x89, 0x50}})
	assert.NotNil(t, block.OfImage)
	assert.Nil(t, block.OfDocument)
}
