package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/DeadSloth/mapon-backend-assignment/internal/domain"
	"github.com/DeadSloth/mapon-backend-assignment/internal/mapon"
	"github.com/DeadSloth/mapon-backend-assignment/pkg/logger"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) FetchSample(ctx context.Context, unitID int64, at time.Time) (*mapon.UnitSample, error) {
	args := m.Called(ctx, unitID, at)
	if sample := args.Get(0); sample != nil {
		return sample.(*mapon.UnitSample), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockTransactionRepo struct {
	mock.Mock
}

func (m *mockTransactionRepo) Save(ctx context.Context, tx *domain.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *mockTransactionRepo) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	args := m.Called(ctx, id)
	if tx := args.Get(0); tx != nil {
		return tx.(*domain.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTransactionRepo) GetAll(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	args := m.Called(ctx, filter)
	if txs := args.Get(0); txs != nil {
		return txs.([]*domain.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTransactionRepo) Count(ctx context.Context, filter domain.TransactionFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

func (m *mockTransactionRepo) DeleteAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func pendingTransaction(id, unitID int64) *domain.Transaction {
	uid := unitID
	return &domain.Transaction{
		ID:               id,
		VehicleNumber:    "NJ-2702",
		TransactionDate:  time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC),
		ProductType:      "Diesel",
		MaponUnitID:      &uid,
		EnrichmentStatus: domain.EnrichmentStatusPending,
	}
}

func fullSample(lat, lng, odometer float64) *mapon.UnitSample {
	return &mapon.UnitSample{
		Latitude:  &lat,
		Longitude: &lng,
		Odometer:  &odometer,
	}
}

func TestEnrichOne_SkipsCompletedWithoutExternalCall(t *testing.T) {
	provider := &mockProvider{}
	repo := &mockTransactionRepo{}
	svc := NewEnrichmentService(provider, repo, logger.NewNop())

	tx := pendingTransaction(1, 417038)
	tx.EnrichmentStatus = domain.EnrichmentStatusCompleted

	got, err := svc.EnrichOne(context.Background(), tx)
	require.NoError(t, err)

	assert.Same(t, tx, got)
	assert.Equal(t, domain.EnrichmentSummary{Skipped: 1}, svc.Summary())
	provider.AssertNotCalled(t, "FetchSample", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestEnrichOne_MissingUnitMappingFails(t *testing.T) {
	provider := &mockProvider{}
	repo := &mockTransactionRepo{}
	svc := NewEnrichmentService(provider, repo, logger.NewNop())

	tx := pendingTransaction(1, 0)
	tx.MaponUnitID = nil

	repo.On("Save", mock.Anything, tx).Return(nil).Once()

	_, err := svc.EnrichOne(context.Background(), tx)
	require.NoError(t, err)

	assert.Equal(t, domain.EnrichmentStatusFailed, tx.EnrichmentStatus)
	assert.Equal(t, domain.EnrichmentSummary{Failed: 1}, svc.Summary())
	assert.Contains(t, svc.LatestMessage(), "missing unit mapping")
	provider.AssertNotCalled(t, "FetchSample", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestEnrichOne_FetchFailureMarksNotFound(t *testing.T) {
	provider := &mockProvider{}
	repo := &mockTransactionRepo{}
	svc := NewEnrichmentService(provider, repo, logger.NewNop())

	tx := pendingTransaction(1, 417038)

	provider.On("FetchSample", mock.Anything, int64(417038), tx.TransactionDate).
		Return(nil, fmt.Errorf("%w: API request failed", domain.ErrEnrichmentNotFound)).Once()
	repo.On("Save", mock.Anything, tx).Return(nil).Once()

	_, err := svc.EnrichOne(context.Background(), tx)
	require.NoError(t, err)

	assert.Equal(t, domain.EnrichmentStatusNotFound, tx.EnrichmentStatus)
	assert.Equal(t, domain.EnrichmentSummary{NotFound: 1}, svc.Summary())
	assert.NotEmpty(t, svc.LatestMessage())
	repo.AssertExpectations(t)
	provider.AssertExpectations(t)
}

func TestEnrichOne_MissingOdometerFails(t *testing.T) {
	provider := &mockProvider{}
	repo := &mockTransactionRepo{}
	svc := NewEnrichmentService(provider, repo, logger.NewNop())

	tx := pendingTransaction(1, 417038)

	lat, lng := 56.95, 24.1
	provider.On("FetchSample", mock.Anything, int64(417038), tx.TransactionDate).
		Return(&mapon.UnitSample{Latitude: &lat, Longitude: &lng}, nil).Once()
	repo.On("Save", mock.Anything, tx).Return(nil).Once()

	_, err := svc.EnrichOne(context.Background(), tx)
	require.NoError(t, err)

	assert.Equal(t, domain.EnrichmentStatusFailed, tx.EnrichmentStatus)
	assert.Nil(t, tx.GPSLatitude)
	assert.Nil(t, tx.OdometerGPS)
	assert.Equal(t, domain.EnrichmentSummary{Failed: 1}, svc.Summary())
	assert.Contains(t, svc.LatestMessage(), "mileage data missing")
	repo.AssertExpectations(t)
}

func TestEnrichOne_MissingCoordinatesFails(t *testing.T) {
	provider := &mockProvider{}
	repo := &mockTransactionRepo{}
	svc := NewEnrichmentService(provider, repo, logger.NewNop())

	tx := pendingTransaction(1, 417038)

	odometer := 152340.7
	provider.On("FetchSample", mock.Anything, int64(417038), tx.TransactionDate).
		Return(&mapon.UnitSample{Odometer: &odometer}, nil).Once()
	repo.On("Save", mock.Anything, tx).Return(nil).Once()

	_, err := svc.EnrichOne(context.Background(), tx)
	require.NoError(t, err)

	assert.Equal(t, domain.EnrichmentStatusFailed, tx.EnrichmentStatus)
	assert.Equal(t, domain.EnrichmentSummary{Failed: 1}, svc.Summary())
	assert.Contains(t, svc.LatestMessage(), "missing GPS coordinates")
	repo.AssertExpectations(t)
}

func TestEnrichOne_Success(t *testing.T) {
	provider := &mockProvider{}
	repo := &mockTransactionRepo{}
	svc := NewEnrichmentService(provider, repo, logger.NewNop())

	enrichedAt := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return enrichedAt }

	tx := pendingTransaction(1, 417038)

	provider.On("FetchSample", mock.Anything, int64(417038), tx.TransactionDate).
		Return(fullSample(56.9496, 24.1052, 152340.7), nil).Once()
	repo.On("Save", mock.Anything, tx).Return(nil).Once()

	got, err := svc.EnrichOne(context.Background(), tx)
	require.NoError(t, err)

	assert.Equal(t, domain.EnrichmentStatusCompleted, got.EnrichmentStatus)
	require.NotNil(t, got.GPSLatitude)
	require.NotNil(t, got.GPSLongitude)
	require.NotNil(t, got.OdometerGPS)
	require.NotNil(t, got.EnrichedAt)
	assert.Equal(t, 56.9496, *got.GPSLatitude)
	assert.Equal(t, 24.1052, *got.GPSLongitude)
	assert.Equal(t, int64(152341), *got.OdometerGPS)
	assert.Equal(t, enrichedAt, *got.EnrichedAt)
	assert.Equal(t, domain.EnrichmentSummary{Completed: 1}, svc.Summary())
	assert.Empty(t, svc.LatestMessage())
	repo.AssertExpectations(t)
}

func TestEnrichOne_OdometerRoundsDown(t *testing.T) {
	provider := &mockProvider{}
	repo := &mockTransactionRepo{}
	svc := NewEnrichmentService(provider, repo, logger.NewNop())

	tx := pendingTransaction(1, 417038)

	provider.On("FetchSample", mock.Anything, int64(417038), tx.TransactionDate).
		Return(fullSample(56.95, 24.1, 99999.4), nil).Once()
	repo.On("Save", mock.Anything, tx).Return(nil).Once()

	_, err := svc.EnrichOne(context.Background(), tx)
	require.NoError(t, err)

	require.NotNil(t, tx.OdometerGPS)
	assert.Equal(t, int64(99999), *tx.OdometerGPS)
}

func TestEnrichOne_SaveFailurePropagates(t *testing.T) {
	provider := &mockProvider{}
	repo := &mockTransactionRepo{}
	svc := NewEnrichmentService(provider, repo, logger.NewNop())

	tx := pendingTransaction(1, 417038)
	storageErr := errors.New("connection reset")

	provider.On("FetchSample", mock.Anything, int64(417038), tx.TransactionDate).
		Return(fullSample(56.95, 24.1, 100000), nil).Once()
	repo.On("Save", mock.Anything, tx).Return(storageErr).Once()

	_, err := svc.EnrichOne(context.Background(), tx)
	assert.ErrorIs(t, err, storageErr)
	assert.Equal(t, domain.EnrichmentSummary{}, svc.Summary())
}

func TestEnrichBatch_MixedOutcomes(t *testing.T) {
	provider := &mockProvider{}
	repo := &mockTransactionRepo{}
	svc := NewEnrichmentService(provider, repo, logger.NewNop())

	t1 := pendingTransaction(1, 417038)
	t2 := pendingTransaction(2, 199332)
	t2.EnrichmentStatus = domain.EnrichmentStatusCompleted

	provider.On("FetchSample", mock.Anything, int64(417038), t1.TransactionDate).
		Return(fullSample(56.95, 24.1, 150000), nil).Once()
	repo.On("Save", mock.Anything, t1).Return(nil).Once()

	summary, err := svc.EnrichBatch(context.Background(), []*domain.Transaction{t1, t2})
	require.NoError(t, err)

	assert.Equal(t, domain.EnrichmentSummary{Completed: 1, Skipped: 1}, summary)
	repo.AssertExpectations(t)
	provider.AssertExpectations(t)
}

func TestEnrichBatch_CountersAccumulateAcrossCalls(t *testing.T) {
	// Counters are scoped to the engine instance, not to the call. A
	// caller reusing one instance across runs sees running totals.
	provider := &mockProvider{}
	repo := &mockTransactionRepo{}
	svc := NewEnrichmentService(provider, repo, logger.NewNop())

	t1 := pendingTransaction(1, 417038)
	provider.On("FetchSample", mock.Anything, int64(417038), t1.TransactionDate).
		Return(fullSample(56.95, 24.1, 150000), nil).Once()
	repo.On("Save", mock.Anything, t1).Return(nil).Once()

	first, err := svc.EnrichBatch(context.Background(), []*domain.Transaction{t1})
	require.NoError(t, err)
	assert.Equal(t, domain.EnrichmentSummary{Completed: 1}, first)

	// t1 is now completed; the second run only skips, yet the completed
	// count from the first run is still reported.
	second, err := svc.EnrichBatch(context.Background(), []*domain.Transaction{t1})
	require.NoError(t, err)
	assert.Equal(t, domain.EnrichmentSummary{Completed: 1, Skipped: 1}, second)
}

func TestEnrichBatch_StorageFailureAborts(t *testing.T) {
	provider := &mockProvider{}
	repo := &mockTransactionRepo{}
	svc := NewEnrichmentService(provider, repo, logger.NewNop())

	t1 := pendingTransaction(1, 417038)
	t2 := pendingTransaction(2, 199332)
	storageErr := errors.New("disk full")

	provider.On("FetchSample", mock.Anything, int64(417038), t1.TransactionDate).
		Return(fullSample(56.95, 24.1, 150000), nil).Once()
	repo.On("Save", mock.Anything, t1).Return(storageErr).Once()

	_, err := svc.EnrichBatch(context.Background(), []*domain.Transaction{t1, t2})
	assert.ErrorIs(t, err, storageErr)

	// t2 was never reached.
	provider.AssertNumberOfCalls(t, "FetchSample", 1)
}
