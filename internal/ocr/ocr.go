package ocr

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-audit/internal/config"
)

// Extractor extracts text content from invoice documents (PDFs and scans).
type Extractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// NewExtractor creates an Extractor based on config. The "local" provider
// routes PDFs through pdftotext and image scans through Tesseract; the
// "mistral" provider sends everything to the Mistral OCR API.
func NewExtractor(cfg config.OCRConfig, mistral config.MistralConfig) (Extractor, error) {
	switch cfg.Provider {
	case "local", "":
		return &hybrid{
			pdf:   NewPdfToText(cfg.PdfToTextPath),
			image: NewTesseract(cfg.TesseractLang),
		}, nil
	case "mistral":
		if mistral.Key == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_api_key")
		}
		return NewMistralOCR(mistral.Key, mistral.OCRModel), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// hybrid routes documents to a per-format extractor by file extension.
type hybrid struct {
	pdf   Extractor
	image Extractor
}

func (h *hybrid) ExtractText(ctx context.Context, path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return h.pdf.ExtractText(ctx, path)
	case ".png", ".jpg", ".jpeg":
		return h.image.ExtractText(ctx, path)
	default:
		return "", eris.Errorf("ocr: unsupported file type %q", filepath.Ext(path))
	}
}
