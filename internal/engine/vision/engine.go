// Package vision provides the Google Cloud Vision OCR adapter.
package vision

import (
	"context"
	"strings"

	visionapi "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"github.com/formbench/formbench/internal/config"
	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/engine"
	"github.com/formbench/formbench/internal/support/exception"
)

const moduleName = "engine.vision"

// Engine runs document text detection through the Cloud Vision API.
type Engine struct {
	name   string
	client *visionapi.ImageAnnotatorClient
}

var _ engine.OCREngine = (*Engine)(nil)

// New creates a Vision OCR engine. When a credentials file is configured it
// is used explicitly; otherwise application default credentials apply.
func New(ctx context.Context, cfg config.EngineConfig) (*Engine, error) {
	name := cfg.Name
	if name == "" {
		name = "vision"
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := visionapi.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, exception.NewAppError(moduleName, "failed to create vision client", err, exception.KindAdapter)
	}
	return &Engine{name: name, client: client}, nil
}

// Name returns the configured library name.
func (e *Engine) Name() string {
	return e.name
}

// Close releases the underlying gRPC connection.
func (e *Engine) Close() error {
	return e.client.Close()
}

// Extract runs document text detection over the given regions, or over the
// whole image when no regions are provided. Vision only accepts whole
// images, so regions are cropped before submission.
func (e *Engine) Extract(ctx context.Context, imageData []byte, regions []model.Region) ([]model.OCRRegion, error) {
	if len(regions) == 0 {
		out, err := e.annotate(ctx, imageData, -1)
		if err != nil {
			return nil, err
		}
		return []model.OCRRegion{out}, nil
	}

	src, err := engine.DecodeImage(imageData)
	if err != nil {
		return nil, err
	}

	results := make([]model.OCRRegion, 0, len(regions))
	for _, region := range regions {
		cropped, err := engine.Crop(src, region.BBox)
		if err != nil {
			return nil, err
		}
		out, err := e.annotate(ctx, cropped, region.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, out)
	}
	return results, nil
}

// annotate submits one image and flattens the full text annotation into
// paragraph-level lines.
func (e *Engine) annotate(ctx context.Context, imageData []byte, regionID int) (model.OCRRegion, error) {
	resp, err := e.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image: &visionpb.Image{Content: imageData},
			Features: []*visionpb.Feature{{
				Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION,
			}},
		}},
	})
	if err != nil {
		return model.OCRRegion{}, exception.NewAppError(moduleName, "annotate request failed", err, exception.KindAdapter)
	}
	if len(resp.Responses) == 0 {
		return model.OCRRegion{RegionID: regionID}, nil
	}
	r := resp.Responses[0]
	if r.Error != nil {
		return model.OCRRegion{}, exception.NewAppErrorf(moduleName, exception.KindAdapter,
			"annotate response error: %s", r.Error.Message)
	}

	annotation := r.FullTextAnnotation
	if annotation == nil {
		return model.OCRRegion{RegionID: regionID}, nil
	}

	var lines []model.OCRLine
	for _, page := range annotation.Pages {
		for _, block := range page.Blocks {
			for _, paragraph := range block.Paragraphs {
				text := paragraphText(paragraph)
				if text == "" {
					continue
				}
				lines = append(lines, model.OCRLine{
					Text:       text,
					Confidence: float64(paragraph.Confidence),
				})
			}
		}
	}

	return model.OCRRegion{
		RegionID: regionID,
		FullText: strings.TrimSpace(annotation.Text),
		Lines:    lines,
	}, nil
}

// paragraphText reassembles a paragraph from its words and symbols.
func paragraphText(paragraph *visionpb.Paragraph) string {
	var sb strings.Builder
	for wi, word := range paragraph.Words {
		if wi > 0 {
			sb.WriteByte(' ')
		}
		for _, symbol := range word.Symbols {
			sb.WriteString(symbol.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}
