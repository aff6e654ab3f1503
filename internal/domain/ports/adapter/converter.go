package adapter

import "context"

// ConversionResult is what the renderer hands back: the artifact and the
// usage metric billing runs on.
type ConversionResult struct {
	PDFPath   string
	PageCount int
}

// DocumentConverter renders a source document to PDF. The rendering engine
// is a black box behind this port.
type DocumentConverter interface {
	Convert(ctx context.Context, sourcePath, outputDir string) (*ConversionResult, error)
}
