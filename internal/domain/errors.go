package domain

import "errors"

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrEmptyCSV            = errors.New("csv data cannot be empty")
	ErrInvalidCSVFormat    = errors.New("invalid CSV format")

	// ErrEnrichmentNotFound covers every way the external lookup can come
	// up empty: transport failures, malformed responses, zero or multiple
	// matching units. The provider does not let us tell these apart.
	ErrEnrichmentNotFound = errors.New("enrichment not found")

	// ErrEnrichmentFailed marks a sample that arrived but is unusable
	// (missing mileage or GPS coordinates).
	ErrEnrichmentFailed = errors.New("enrichment failed")
)
