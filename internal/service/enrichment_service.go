package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DeadSloth/mapon-backend-assignment/internal/domain"
	"github.com/DeadSloth/mapon-backend-assignment/internal/mapon"
	"github.com/DeadSloth/mapon-backend-assignment/pkg/logger"
)

// SampleProvider fetches one position+mileage sample for a unit at a
// timestamp. Satisfied by *mapon.Client.
type SampleProvider interface {
	FetchSample(ctx context.Context, unitID int64, at time.Time) (*mapon.UnitSample, error)
}

// EnrichmentService attaches GPS/odometer evidence to fuel transactions.
//
// Outcome counters accumulate for the lifetime of the service instance,
// not per call; callers that need isolated counts construct a fresh
// instance per batch (the HTTP handlers do).
type EnrichmentService struct {
	provider SampleProvider
	repo     domain.TransactionRepository
	logger   *logger.Logger

	completed int
	failed    int
	notFound  int
	skipped   int

	latestMessage string

	now func() time.Time
}

func NewEnrichmentService(provider SampleProvider, repo domain.TransactionRepository, log *logger.Logger) *EnrichmentService {
	return &EnrichmentService{
		provider: provider,
		repo:     repo,
		logger:   log,
		now:      time.Now,
	}
}

// EnrichOne fetches, validates and applies external GPS/odometer data for a
// single transaction. Already-completed transactions are skipped without
// any external call. Recoverable conditions (sample missing, sample
// incomplete) are recorded on the transaction and persisted; only storage
// failures return an error.
func (s *EnrichmentService) EnrichOne(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	if tx.IsEnriched() {
		s.skipped++
		return tx, nil
	}

	if tx.MaponUnitID == nil {
		msg := fmt.Sprintf("missing unit mapping for vehicle %s", tx.VehicleNumber)
		if err := s.markFailed(ctx, tx, msg); err != nil {
			return nil, err
		}
		return tx, nil
	}

	sample, err := s.provider.FetchSample(ctx, *tx.MaponUnitID, tx.TransactionDate)
	if err != nil {
		// Transport, parse and no-match failures all collapse into a
		// not_found outcome; the row stays eligible for a later run.
		if !errors.Is(err, domain.ErrEnrichmentNotFound) {
			err = fmt.Errorf("%w: %v", domain.ErrEnrichmentNotFound, err)
		}

		tx.MarkEnrichmentNotFound()
		s.latestMessage = err.Error()

		if saveErr := s.repo.Save(ctx, tx); saveErr != nil {
			return nil, saveErr
		}
		s.notFound++

		s.logger.Warn(ctx, "Enrichment data not found",
			"transaction_id", tx.ID,
			"error", err,
		)
		return tx, nil
	}

	if msg, ok := validateSample(sample); !ok {
		if err := s.markFailed(ctx, tx, msg); err != nil {
			return nil, err
		}
		return tx, nil
	}

	tx.ApplyEnrichment(*sample.Latitude, *sample.Longitude, *sample.Odometer, s.now())

	if err := s.repo.Save(ctx, tx); err != nil {
		return nil, err
	}
	s.completed++

	s.logger.Info(ctx, "Transaction enriched",
		"transaction_id", tx.ID,
		"odometer", *tx.OdometerGPS,
	)
	return tx, nil
}

// EnrichBatch runs EnrichOne over the transactions in order and returns the
// counters accumulated so far by this instance. A storage failure aborts
// the run; rows persisted before the failure keep their outcome.
func (s *EnrichmentService) EnrichBatch(ctx context.Context, txs []*domain.Transaction) (domain.EnrichmentSummary, error) {
	for _, tx := range txs {
		if _, err := s.EnrichOne(ctx, tx); err != nil {
			return s.Summary(), err
		}
	}
	return s.Summary(), nil
}

// Summary returns the lifetime counters of this instance.
func (s *EnrichmentService) Summary() domain.EnrichmentSummary {
	return domain.EnrichmentSummary{
		Completed: s.completed,
		Failed:    s.failed,
		NotFound:  s.notFound,
		Skipped:   s.skipped,
	}
}

// LatestMessage returns the diagnostic of the most recent not_found or
// failed outcome, empty if every processed row completed or was skipped.
func (s *EnrichmentService) LatestMessage() string {
	return s.latestMessage
}

func (s *EnrichmentService) markFailed(ctx context.Context, tx *domain.Transaction, msg string) error {
	tx.MarkEnrichmentFailed()
	s.latestMessage = fmt.Sprintf("%s: %s", domain.ErrEnrichmentFailed.Error(), msg)

	if err := s.repo.Save(ctx, tx); err != nil {
		return err
	}
	s.failed++

	s.logger.Warn(ctx, "Enrichment failed",
		"transaction_id", tx.ID,
		"reason", msg,
	)
	return nil
}

func validateSample(sample *mapon.UnitSample) (string, bool) {
	if sample.Odometer == nil {
		return "mileage data missing", false
	}
	if sample.Latitude == nil || sample.Longitude == nil {
		return "missing GPS coordinates", false
	}
	return "", true
}
