package domain

import "context"

// TransactionFilter narrows GetAll/Count. Zero values mean "no filter";
// a zero Limit falls back to the store default.
type TransactionFilter struct {
	VehicleNumber string
	Status        EnrichmentStatus
	Limit         int
	Offset        int
}

type TransactionRepository interface {
	// Save inserts when ID is zero and updates otherwise. All mutated
	// fields are written; there is no dirty tracking.
	Save(ctx context.Context, tx *Transaction) error
	GetByID(ctx context.Context, id int64) (*Transaction, error)
	GetAll(ctx context.Context, filter TransactionFilter) ([]*Transaction, error)
	Count(ctx context.Context, filter TransactionFilter) (int, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// VehicleRepository maps vehicle registration numbers to Mapon unit ids.
// Read-only from the import/enrichment path; mappings are maintained
// separately (seeded at startup).
type VehicleRepository interface {
	// GetUnitID returns nil without error when the vehicle has no mapping.
	GetUnitID(ctx context.Context, vehicleNumber string) (*int64, error)
	UpsertMapping(ctx context.Context, vehicleNumber string, unitID int64) error
}
