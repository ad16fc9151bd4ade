package ocr

import (
	"context"

	"github.com/otiai10/gosseract/v2"
	"github.com/rotisserie/eris"
)

// Tesseract extracts text from scanned invoice images using the Tesseract
// OCR engine via gosseract.
type Tesseract struct {
	lang string

	// clientFactory is swappable in tests.
	clientFactory func() *gosseract.Client
}

// NewTesseract creates a Tesseract extractor. If lang is empty, Tesseract's
// default language models are used.
func NewTesseract(lang string) *Tesseract {
	return &Tesseract{
		lang:          lang,
		clientFactory: gosseract.NewClient,
	}
}

// ExtractText runs Tesseract OCR on the given image file.
func (t *Tesseract) ExtractText(ctx context.Context, imagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "ocr: tesseract")
	}

	client := t.clientFactory()
	defer client.Close() //nolint:errcheck

	if t.lang != "" {
		if err := client.SetLanguage(t.lang); err != nil {
			return "", eris.Wrapf(err, "ocr: tesseract set language %q", t.lang)
		}
	}

	if err := client.SetImage(imagePath); err != nil {
		return "", eris.Wrapf(err, "ocr: tesseract set image %s", imagePath)
	}

	text, err := client.Text()
	if err != nil {
		return "", eris.Wrapf(err, "ocr: tesseract extract %s", imagePath)
	}

	return text, nil
}
