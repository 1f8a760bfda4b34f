package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/DeadSloth/mapon-backend-assignment/internal/domain"
)

const defaultListLimit = 100

// MemoryStore keeps transactions and vehicle mappings in process memory.
// Used in tests and when no DATABASE_URL is configured.
type MemoryStore struct {
	transactions map[int64]*domain.Transaction
	vehicles     map[string]int64
	nextID       int64
	mu           sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: make(map[int64]*domain.Transaction),
		vehicles:     make(map[string]int64),
		nextID:       1,
	}
}

func (s *MemoryStore) Save(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if tx.ID == 0 {
		tx.ID = s.nextID
		s.nextID++
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	s.transactions[tx.ID] = cloneTransaction(tx)
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.transactions[id]
	if !exists {
		return nil, domain.ErrTransactionNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *MemoryStore) GetAll(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.filterLocked(filter)

	// Newest purchases first, matching the original listing order.
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].TransactionDate.Equal(matched[j].TransactionDate) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].TransactionDate.After(matched[j].TransactionDate)
	})

	return paginate(matched, filter.Limit, filter.Offset), nil
}

func (s *MemoryStore) Count(ctx context.Context, filter domain.TransactionFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.filterLocked(domain.TransactionFilter{
		VehicleNumber: filter.VehicleNumber,
		Status:        filter.Status,
	})), nil
}

func (s *MemoryStore) DeleteAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := int64(len(s.transactions))
	s.transactions = make(map[int64]*domain.Transaction)
	return deleted, nil
}

func (s *MemoryStore) GetUnitID(ctx context.Context, vehicleNumber string) (*int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unitID, exists := s.vehicles[normalizeVehicleNumber(vehicleNumber)]
	if !exists {
		return nil, nil
	}
	return &unitID, nil
}

func (s *MemoryStore) UpsertMapping(ctx context.Context, vehicleNumber string, unitID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vehicles[normalizeVehicleNumber(vehicleNumber)] = unitID
	return nil
}

func (s *MemoryStore) filterLocked(filter domain.TransactionFilter) []*domain.Transaction {
	var matched []*domain.Transaction
	for _, tx := range s.transactions {
		if filter.VehicleNumber != "" && tx.VehicleNumber != filter.VehicleNumber {
			continue
		}
		if filter.Status != "" && tx.EnrichmentStatus != filter.Status {
			continue
		}
		matched = append(matched, cloneTransaction(tx))
	}
	return matched
}

func paginate(txs []*domain.Transaction, limit, offset int) []*domain.Transaction {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	if offset >= len(txs) {
		return []*domain.Transaction{}
	}

	end := offset + limit
	if end > len(txs) {
		end = len(txs)
	}
	return txs[offset:end]
}

func normalizeVehicleNumber(vehicleNumber string) string {
	return strings.ToUpper(strings.TrimSpace(vehicleNumber))
}

// cloneTransaction deep-copies so callers never alias stored state.
func cloneTransaction(tx *domain.Transaction) *domain.Transaction {
	c := *tx

	if tx.UnitPrice != nil {
		v := *tx.UnitPrice
		c.UnitPrice = &v
	}
	if tx.OriginalCurrency != nil {
		v := *tx.OriginalCurrency
		c.OriginalCurrency = &v
	}
	if tx.OriginalAmount != nil {
		v := *tx.OriginalAmount
		c.OriginalAmount = &v
	}
	if tx.MaponUnitID != nil {
		v := *tx.MaponUnitID
		c.MaponUnitID = &v
	}
	if tx.GPSLatitude != nil {
		v := *tx.GPSLatitude
		c.GPSLatitude = &v
	}
	if tx.GPSLongitude != nil {
		v := *tx.GPSLongitude
		c.GPSLongitude = &v
	}
	if tx.OdometerGPS != nil {
		v := *tx.OdometerGPS
		c.OdometerGPS = &v
	}
	if tx.EnrichedAt != nil {
		v := *tx.EnrichedAt
		c.EnrichedAt = &v
	}

	return &c
}
