package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type EnrichmentStatus string

const (
	EnrichmentStatusPending   EnrichmentStatus = "pending"
	EnrichmentStatusCompleted EnrichmentStatus = "completed"
	EnrichmentStatusFailed    EnrichmentStatus = "failed"
	EnrichmentStatusNotFound  EnrichmentStatus = "not_found"
)

const DefaultUnit = "L"

// Transaction is a single fuel purchase imported from a card provider CSV,
// optionally enriched with GPS/odometer data from the Mapon API.
type Transaction struct {
	ID               int64            `json:"id"`
	VehicleNumber    string           `json:"vehicle_number"`
	CardNumber       string           `json:"card_number"`
	TransactionDate  time.Time        `json:"transaction_date"`
	StationName      string           `json:"station_name"`
	StationCountry   string           `json:"station_country"`
	ProductType      string           `json:"product_type"`
	Quantity         decimal.Decimal  `json:"quantity"`
	Unit             string           `json:"unit"`
	UnitPrice        *decimal.Decimal `json:"unit_price"`
	TotalAmount      decimal.Decimal  `json:"total_amount"`
	Currency         string           `json:"currency"`
	OriginalCurrency *string          `json:"original_currency"`
	OriginalAmount   *decimal.Decimal `json:"original_amount"`
	MaponUnitID      *int64           `json:"mapon_unit_id"`
	EnrichmentStatus EnrichmentStatus `json:"enrichment_status"`
	GPSLatitude      *float64         `json:"gps_latitude"`
	GPSLongitude     *float64         `json:"gps_longitude"`
	OdometerGPS      *int64           `json:"odometer_gps"`
	EnrichedAt       *time.Time       `json:"enriched_at"`
	ImportBatchID    string           `json:"import_batch_id"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// IsEnriched reports whether GPS data has already been applied.
func (t *Transaction) IsEnriched() bool {
	return t.EnrichmentStatus == EnrichmentStatusCompleted
}

func (t *Transaction) MarkEnrichmentNotFound() {
	t.EnrichmentStatus = EnrichmentStatusNotFound
}

func (t *Transaction) MarkEnrichmentFailed() {
	t.EnrichmentStatus = EnrichmentStatusFailed
}

// ApplyEnrichment copies coordinates verbatim, rounds the odometer reading
// to the nearest whole unit and marks the transaction completed.
func (t *Transaction) ApplyEnrichment(latitude, longitude, odometer float64, at time.Time) {
	lat := latitude
	lng := longitude
	odo := int64(math.Round(odometer))

	t.GPSLatitude = &lat
	t.GPSLongitude = &lng
	t.OdometerGPS = &odo
	t.EnrichmentStatus = EnrichmentStatusCompleted
	t.EnrichedAt = &at
}

// EnrichmentSummary aggregates per-transaction outcomes of an enrichment run.
type EnrichmentSummary struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	NotFound  int `json:"not_found"`
	Skipped   int `json:"skipped"`
}

// ImportResult reports the outcome of one CSV import call.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors"`
	BatchID  string   `json:"batch_id"`
}
