package convert

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"pdf-conversion-billing/internal/domain/ports/adapter"
)

var _ adapter.DocumentConverter = (*NoopConverter)(nil)

// NoopConverter copies the upload bytes as the artifact and reports a fixed
// page count. Dev mode only; no office backend required.
type NoopConverter struct {
	pages int
}

func NewNoopConverter(pages int) *NoopConverter {
	if pages <= 0 {
		pages = 1
	}
	return &NoopConverter{pages: pages}
}

func (c *NoopConverter) Convert(ctx context.Context, sourcePath, outputDir string) (*adapter.ConversionResult, error) {
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	pdfPath := filepath.Join(outputDir, base+".pdf")

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(pdfPath, data, 0o644); err != nil {
		return nil, err
	}
	return &adapter.ConversionResult{PDFPath: pdfPath, PageCount: c.pages}, nil
}
