// Package vision wraps the Anthropic API for medical document extraction.
// Callers hand it a scanned document and a prompt; it returns the raw model
// text for the extraction layer to parse.
package vision

import (
	"context"
	"encoding/base64"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/hsa-ledger/internal/resilience"
)

// Client defines the vision operations used by the extraction pipeline.
type Client interface {
	ExtractDocument(ctx context.Context, req ExtractRequest) (*ExtractResponse, error)
}

// Attachment is one scanned document page or file.
type Attachment struct {
	MediaType string // image/jpeg, image/png, image/webp, application/pdf
	Data      []byte
}

// ExtractRequest is our own request type for ExtractDocument.
type ExtractRequest struct {
	Model       string
	MaxTokens   int64
	System      string
	Prompt      string
	Attachments []Attachment
}

// ExtractResponse is our own response type from ExtractDocument.
type ExtractResponse struct {
	Text       string
	StopReason string
	Usage      TokenUsage
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// modelPricing holds per-million-token pricing for known models.
var modelPricing = map[string][2]float64{
	// model → {input $/MTok, output $/MTok}
	"claude-haiku-4-5-20251001":  {0.80, 4.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
}

// EstimateCost computes an estimated cost in USD from a TokenUsage and model
// ID. Returns 0 for unknown models.
func (u TokenUsage) EstimateCost(model string) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		return 0
	}
	return (float64(u.InputTokens)/1e6)*pricing[0] + (float64(u.OutputTokens)/1e6)*pricing[1]
}

// LogCost logs token usage and estimated cost with structured zap fields.
func (u TokenUsage) LogCost(model, source string) {
	zap.L().Info("cost attribution",
		zap.String("model", model),
		zap.String("source", source),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}

// sdkClient implements Client using the official anthropic-sdk-go.
type sdkClient struct {
	client  sdk.Client
	limiter *rate.Limiter
}

// NewClient creates a vision client backed by the SDK. requestsPerMin
// throttles outbound calls; zero disables throttling.
func NewClient(apiKey string, requestsPerMin float64) Client {
	var limiter *rate.Limiter
	if requestsPerMin > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerMin/60), 1)
	}
	return &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey(apiKey),
		),
		limiter: limiter,
	}
}

func (c *sdkClient) ExtractDocument(ctx context.Context, req ExtractRequest) (*ExtractResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "vision: rate limit wait")
		}
	}

	blocks := make([]sdk.ContentBlockParamUnion, 0, len(req.Attachments)+1)
	for _, att := range req.Attachments {
		blocks = append(blocks, attachmentBlock(att))
	}
	blocks = append(blocks, sdk.NewTextBlock(req.Prompt))

	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(blocks...)},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	msg, err := resilience.Do(ctx, resilience.DefaultRetryConfig(), "extract_document",
		func(ctx context.Context) (*sdk.Message, error) {
			return c.client.Messages.New(ctx, params)
		})
	if err != nil {
		return nil, eris.Wrap(err, "vision: extract document")
	}
	return fromSDKMessage(msg), nil
}

func attachmentBlock(att Attachment) sdk.ContentBlockParamUnion {
	data := base64.StdEncoding.EncodeToString(att.Data)
	if att.MediaType == "application/pdf" {
		return sdk.ContentBlockParamUnion{
			OfDocument: &sdk.DocumentBlockParam{
				Source: sdk.DocumentBlockParamSourceUnion{
					OfBase64: &sdk.Base64PDFSourceParam{Data: data},
				},
			},
		}
	}
	return sdk.NewImageBlockBase64(att.MediaType, data)
}

func fromSDKMessage(msg *sdk.Message) *ExtractResponse {
	text := ""
	for _, b := range msg.Content {
		if b.Type == "text" {
			text += b.Text
		}
	}
	return &ExtractResponse{
		Text:       text,
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}
}
