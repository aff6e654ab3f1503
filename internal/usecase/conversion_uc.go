package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pdf-conversion-billing/internal/domain"
	"pdf-conversion-billing/internal/domain/model"
	"pdf-conversion-billing/internal/domain/ports/adapter"
	"pdf-conversion-billing/internal/domain/ports/repository"
)

var allowedExtensions = map[string]bool{
	".doc":  true,
	".docx": true,
	".odt":  true,
	".rtf":  true,
	".txt":  true,
}

// Compile-time check
var _ ConversionUseCase = (*conversionUC)(nil)

type ConversionUseCase interface {
	// Convert stores the upload, renders it to PDF and persists the
	// conversion with its quote. Free-tier results come back already paid.
	Convert(ctx context.Context, userID *string, filename string, src io.Reader) (*model.Conversion, error)
	Get(ctx context.Context, id string) (*model.Conversion, error)
	// Download returns the conversion when its artifact may be served.
	// Unpaid priced conversions fail with domain.ErrPaymentRequired.
	Download(ctx context.Context, id string) (*model.Conversion, error)
}

type conversionUC struct {
	conversions repository.ConversionRepository
	converter   adapter.DocumentConverter
	pricing     PricingUseCase
	sink        adapter.MetricSink
	uploadDir   string
	outputDir   string
	log         *zerolog.Logger
}

func NewConversionUseCase(
	conversions repository.ConversionRepository,
	converter adapter.DocumentConverter,
	pricing PricingUseCase,
	sink adapter.MetricSink,
	uploadDir, outputDir string,
	logger *zerolog.Logger,
) ConversionUseCase {
	l := logger.With().Str("component", "ConversionUseCase").Logger()
	return &conversionUC{
		conversions: conversions,
		converter:   converter,
		pricing:     pricing,
		sink:        sink,
		uploadDir:   uploadDir,
		outputDir:   outputDir,
		log:         &l,
	}
}

func (u *conversionUC) Convert(ctx context.Context, userID *string, filename string, src io.Reader) (*model.Conversion, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidArgument, ext)
	}

	conv := model.NewConversion(userID, filepath.Base(filename), "")
	conv.SourcePath = filepath.Join(u.uploadDir, conv.ID+ext)
	size, err := storeUpload(conv.SourcePath, src)
	if err != nil {
		return nil, fmt.Errorf("%w: store upload: %v", domain.ErrOperationFailed, err)
	}
	conv.FileSize = size
	if err := u.conversions.Save(ctx, repository.NoTX, conv); err != nil {
		return nil, err
	}

	res, err := u.converter.Convert(ctx, conv.SourcePath, u.outputDir)
	if err != nil {
		conv.Status = model.ConversionStatusFailed
		conv.UpdatedAt = time.Now()
		if saveErr := u.conversions.Save(ctx, repository.NoTX, conv); saveErr != nil {
			u.log.Error().Err(saveErr).Str("conversion_id", conv.ID).Msg("could not persist failed conversion")
		}
		u.emit("conversion_failed", 1, map[string]string{"conversion_id": conv.ID})
		u.log.Error().Err(err).Str("conversion_id", conv.ID).Str("filename", conv.Filename).Msg("document rendering failed")
		return nil, fmt.Errorf("%w: render: %v", domain.ErrOperationFailed, err)
	}

	price := u.pricing.Quote(res.PageCount)
	conv.PDFPath = res.PDFPath
	conv.PageCount = res.PageCount
	conv.PriceCents = price.Shift(2).IntPart()
	conv.IsPaid = conv.PriceCents == 0
	conv.Status = model.ConversionStatusCompleted
	conv.UpdatedAt = time.Now()
	if err := u.conversions.Save(ctx, repository.NoTX, conv); err != nil {
		return nil, err
	}

	u.emit("conversion_completed", float64(conv.PageCount), map[string]string{
		"conversion_id": conv.ID,
	})
	u.emit("price_quoted", price.InexactFloat64(), map[string]string{
		"pages": strconv.Itoa(conv.PageCount),
	})
	u.log.Info().Str("conversion_id", conv.ID).Int("pages", conv.PageCount).
		Str("price", price.StringFixed(2)).Msg("conversion completed")
	return conv, nil
}

func (u *conversionUC) Get(ctx context.Context, id string) (*model.Conversion, error) {
	conv, err := u.conversions.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrConversionNotFound
		}
		return nil, err
	}
	return conv, nil
}

func (u *conversionUC) Download(ctx context.Context, id string) (*model.Conversion, error) {
	conv, err := u.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.Status != model.ConversionStatusCompleted || conv.PDFPath == "" {
		return nil, domain.ErrConversionNotFound
	}
	if !conv.IsPaid && conv.PriceCents > 0 {
		return nil, fmt.Errorf("%w: %s due for %d pages", domain.ErrPaymentRequired, conv.Price().StringFixed(2), conv.PageCount)
	}
	return conv, nil
}

func (u *conversionUC) emit(event string, value float64, meta map[string]string) {
	if u.sink != nil {
		u.sink.Emit(event, value, meta)
	}
}

func storeUpload(path string, src io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	dst, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, src)
	if err != nil {
		dst.Close()
		os.Remove(path)
		return 0, err
	}
	return n, dst.Close()
}
