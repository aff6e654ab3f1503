package convert

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"pdf-conversion-billing/internal/config"
	"pdf-conversion-billing/internal/domain"
	"pdf-conversion-billing/internal/domain/ports/adapter"
	"pdf-conversion-billing/internal/infra/metrics"
	"pdf-conversion-billing/internal/infra/redis"
)

var _ adapter.DocumentConverter = (*UnoconvConverter)(nil)

const converterLockKey = "lock:unoconv"

// UnoconvConverter renders documents through a unoconv/LibreOffice binary.
// The office backend cannot convert concurrently, so runs are serialized
// through a distributed lock when one is supplied.
type UnoconvConverter struct {
	binary  string
	timeout time.Duration
	locker  redis.Locker
}

func NewUnoconvConverter(cfg config.ConverterConfig, locker redis.Locker) *UnoconvConverter {
	return &UnoconvConverter{
		binary:  cfg.Binary,
		timeout: cfg.Timeout,
		locker:  locker,
	}
}

func (c *UnoconvConverter) Convert(ctx context.Context, sourcePath, outputDir string) (*adapter.ConversionResult, error) {
	token, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	if c.locker != nil {
		// The request context may already be done when we get here; release
		// on a fresh context so the lock never waits out its TTL.
		defer c.locker.Unlock(context.Background(), converterLockKey, token)
	}

	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	pdfPath := filepath.Join(outputDir, base+".pdf")

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	start := time.Now()
	cmd := exec.CommandContext(runCtx, c.binary, "-f", "pdf", "-o", pdfPath, sourcePath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", c.binary, err, strings.TrimSpace(string(out)))
	}
	metrics.ObserveConversionDuration(time.Since(start).Seconds())

	pages, err := api.PageCountFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("page count: %w", err)
	}
	return &adapter.ConversionResult{PDFPath: pdfPath, PageCount: pages}, nil
}

// acquire blocks until the converter lock is held or the context ends.
func (c *UnoconvConverter) acquire(ctx context.Context) (string, error) {
	if c.locker == nil {
		return "", nil
	}
	for {
		token, err := c.locker.TryLock(ctx, converterLockKey, c.timeout+30*time.Second)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, domain.ErrConverterBusy) {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", domain.ErrConverterBusy
		case <-time.After(250 * time.Millisecond):
		}
	}
}
