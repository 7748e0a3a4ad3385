package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"gradegate/internal/config"
	"gradegate/internal/domain"
)

// BedrockGenerator talks to AWS Bedrock through the Converse API. Bedrock
// has no file upload API, so parts marked referenced keep their bytes and
// travel as document or image content blocks.
type BedrockGenerator struct {
	model  string
	client *bedrockruntime.Client
}

var _ domain.Generator = (*BedrockGenerator)(nil)

// NewBedrockGenerator creates a Bedrock backend
func NewBedrockGenerator(cfg config.BedrockConfig, timeout time.Duration) (*BedrockGenerator, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithHTTPClient(buildHTTPClient(timeout)),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &BedrockGenerator{
		model:  cfg.Model,
		client: bedrockruntime.NewFromConfig(awsCfg),
	}, nil
}

// Provider returns the backend identity
func (g *BedrockGenerator) Provider() domain.Provider {
	return domain.ProviderBedrock
}

// Generate performs a single-shot Converse call
func (g *BedrockGenerator) Generate(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationResult, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(g.model),
		Messages: []types.Message{
			{
				Role:    types.ConversationRoleUser,
				Content: buildContentBlocks(req.Parts),
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(req.MaxOutputTokens),
			Temperature: aws.Float32(req.Temperature),
		},
	}
	if req.SystemInstruction != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.SystemInstruction},
		}
	}

	resp, err := g.client.Converse(ctx, input)
	if err != nil {
		return nil, &domain.TransientServiceError{Provider: domain.ProviderBedrock, Op: "generate", Err: err}
	}

	result := &domain.GenerationResult{FinishReason: domain.FinishReasonStop}

	if msg, ok := resp.Output.(*types.ConverseOutputMemberMessage); ok {
		var text strings.Builder
		for _, block := range msg.Value.Content {
			if tb, ok := block.(*types.ContentBlockMemberText); ok {
				text.WriteString(tb.Value)
			}
		}
		result.RawText = text.String()
	}

	if resp.StopReason == types.StopReasonMaxTokens {
		result.FinishReason = domain.FinishReasonLength
	}

	if resp.Usage != nil {
		result.Usage = &domain.Usage{
			PromptTokens:     aws.ToInt32(resp.Usage.InputTokens),
			CompletionTokens: aws.ToInt32(resp.Usage.OutputTokens),
			TotalTokens:      aws.ToInt32(resp.Usage.TotalTokens),
		}
	} else {
		result.Usage = &domain.Usage{
			CompletionTokens: estimateCompletionTokens(result.RawText),
			Estimated:        true,
		}
	}

	return result, nil
}

// GenerateStream satisfies the Generator contract by wrapping the
// single-shot call; the result is replayed as one text chunk
func (g *BedrockGenerator) GenerateStream(ctx context.Context, req *domain.GenerationRequest) (<-chan domain.StreamEvent, error) {
	result, err := g.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	eventChan := make(chan domain.StreamEvent, 3)
	if result.RawText != "" {
		eventChan <- domain.TextChunk{Content: result.RawText}
	}
	if result.Usage != nil {
		eventChan <- domain.UsageEvent{Usage: *result.Usage}
	}
	eventChan <- domain.FinishEvent{Reason: result.FinishReason}
	close(eventChan)

	return eventChan, nil
}

// buildContentBlocks maps prompt parts onto Converse content blocks
func buildContentBlocks(parts []domain.PromptPart) []types.ContentBlock {
	var blocks []types.ContentBlock
	docIndex := 0

	for _, part := range parts {
		switch {
		case part.Kind == domain.PartText:
			blocks = append(blocks, &types.ContentBlockMemberText{Value: part.Text})

		case part.Kind == domain.PartImage && len(part.Data) > 0:
			blocks = append(blocks, &types.ContentBlockMemberImage{
				Value: types.ImageBlock{
					Format: imageFormat(part.MimeType),
					Source: &types.ImageSourceMemberBytes{Value: part.Data},
				},
			})

		case len(part.Data) > 0:
			docIndex++
			blocks = append(blocks, &types.ContentBlockMemberDocument{
				Value: types.DocumentBlock{
					Format: documentFormat(part.MimeType),
					Name:   aws.String(fmt.Sprintf("attachment-%d", docIndex)),
					Source: &types.DocumentSourceMemberBytes{Value: part.Data},
				},
			})

		case part.ExtractedText != "":
			blocks = append(blocks, &types.ContentBlockMemberText{Value: part.ExtractedText})
		}
	}
	return blocks
}

func imageFormat(mimeType string) types.ImageFormat {
	switch mimeType {
	case "image/jpeg":
		return types.ImageFormatJpeg
	case "image/gif":
		return types.ImageFormatGif
	case "image/webp":
		return types.ImageFormatWebp
	default:
		return types.ImageFormatPng
	}
}

func documentFormat(mimeType string) types.DocumentFormat {
	switch mimeType {
	case "application/pdf":
		return types.DocumentFormatPdf
	case "application/msword":
		return types.DocumentFormatDoc
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return types.DocumentFormatDocx
	case "application/vnd.ms-excel":
		return types.DocumentFormatXls
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return types.DocumentFormatXlsx
	case "text/html":
		return types.DocumentFormatHtml
	case "text/markdown":
		return types.DocumentFormatMd
	case "text/csv":
		return types.DocumentFormatCsv
	default:
		return types.DocumentFormatTxt
	}
}
