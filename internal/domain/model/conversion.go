package model

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type ConversionStatus string

const (
	ConversionStatusProcessing ConversionStatus = "processing"
	ConversionStatusCompleted  ConversionStatus = "completed"
	ConversionStatusFailed     ConversionStatus = "failed"
)

// Conversion is one source-document-to-PDF rendering and its billing state.
// The payment subsystem reads PageCount and flips IsPaid; everything else
// belongs to the conversion flow.
type Conversion struct {
	ID         string  // ULID, doubles as the public identifier
	UserID     *string // UUID; nil for anonymous uploads
	Filename   string  // original upload name, sanitized
	SourcePath string
	PDFPath    string
	FileSize   int64 // upload size in bytes
	PageCount  int
	PriceCents int64 // quote captured at conversion time
	IsPaid     bool
	Status     ConversionStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewConversion(userID *string, filename, sourcePath string) *Conversion {
	now := time.Now()
	return &Conversion{
		ID:         ulid.Make().String(),
		UserID:     userID,
		Filename:   filename,
		SourcePath: sourcePath,
		Status:     ConversionStatusProcessing,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Price returns the quote in major units.
func (c *Conversion) Price() decimal.Decimal { return decimal.New(c.PriceCents, -2) }

// Free reports whether the conversion is downloadable without payment.
func (c *Conversion) Free() bool { return c.PriceCents == 0 }
