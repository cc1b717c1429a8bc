package services

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/bucketdrive/backend/internal/config"
)

var ErrQuotaExceeded = errors.New("upload quota exceeded")

// QuotaService enforces the per-run ceilings. Checked once before a run
// starts; a run that passes the check is never rejected mid-flight for
// quota reasons.
type QuotaService struct {
	MaxRunBytes int64
	MaxRunFiles int
}

func NewQuotaService(cfg config.UploadConfig) *QuotaService {
	return &QuotaService{MaxRunBytes: cfg.MaxRunBytes, MaxRunFiles: cfg.MaxRunFiles}
}

func (s *QuotaService) Check(totalBytes *big.Int, fileCount int) error {
	if s.MaxRunFiles > 0 && fileCount > s.MaxRunFiles {
		return fmt.Errorf("%w: %d files exceeds limit of %d", ErrQuotaExceeded, fileCount, s.MaxRunFiles)
	}
	if s.MaxRunBytes > 0 && totalBytes != nil {
		limit := big.NewInt(s.MaxRunBytes)
		if totalBytes.Cmp(limit) > 0 {
			return fmt.Errorf("%w: %s bytes exceeds limit of %d", ErrQuotaExceeded, totalBytes.String(), s.MaxRunBytes)
		}
	}
	return nil
}
