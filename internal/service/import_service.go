package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DeadSloth/mapon-backend-assignment/internal/domain"
	"github.com/DeadSloth/mapon-backend-assignment/pkg/logger"
)

// fuelCardRow mirrors the fixed column layout of the card provider export.
type fuelCardRow struct {
	Date          string `csv:"Date"`
	Time          string `csv:"Time"`
	CardNumber    string `csv:"Card Nr."`
	VehicleNumber string `csv:"Vehicle Nr."`
	Product       string `csv:"Product"`
	Amount        string `csv:"Amount"`
	TotalSum      string `csv:"Total sum"`
	Currency      string `csv:"Currency"`
	Country       string `csv:"Country"`
	CountryISO    string `csv:"Country ISO"`
	FuelStation   string `csv:"Fuel station"`
}

// Product names that represent an actual fuel purchase. Rows with anything
// else on the pump line (car wash, service fees, shop goods) are skipped.
var fuelKeywords = []string{
	"diesel", "petrol", "gasoline", "benzin", "unleaded",
	"95", "98", "lpg", "cng", "adblue",
}

var (
	dateLayouts = []string{"2006-01-02", "02.01.2006"}
	timeLayouts = []string{"15:04:05", "15:04"}
)

// ImportService turns raw provider CSV text into pending transactions.
type ImportService struct {
	repo     domain.TransactionRepository
	vehicles domain.VehicleRepository
	logger   *logger.Logger
}

func NewImportService(repo domain.TransactionRepository, vehicles domain.VehicleRepository, log *logger.Logger) *ImportService {
	return &ImportService{
		repo:     repo,
		vehicles: vehicles,
		logger:   log,
	}
}

// ImportCSV parses, classifies and persists the rows of one CSV upload
// under a shared batch id. Row-level problems are recorded in the result
// and never abort the batch; storage and lookup failures do.
func (s *ImportService) ImportCSV(ctx context.Context, csvData string) (*domain.ImportResult, error) {
	if strings.TrimSpace(csvData) == "" {
		return nil, domain.ErrEmptyCSV
	}

	var rows []fuelCardRow
	if err := gocsv.UnmarshalString(csvData, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCSVFormat, err)
	}

	batchID := uuid.New().String()
	ctx = logger.WithBatchID(ctx, batchID)

	s.logger.Info(ctx, "Starting CSV import",
		"rows", len(rows),
	)

	result := &domain.ImportResult{
		Errors:  []string{},
		BatchID: batchID,
	}

	for i, row := range rows {
		// Header occupies line 1 of the file.
		lineNumber := i + 2

		tx, skip, rowErr := s.buildTransaction(row)
		if rowErr != "" {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %s", lineNumber, rowErr))
			s.logger.Warn(ctx, "Rejected CSV row",
				"line", lineNumber,
				"reason", rowErr,
			)
			continue
		}
		if skip {
			result.Skipped++
			continue
		}

		unitID, err := s.vehicles.GetUnitID(ctx, tx.VehicleNumber)
		if err != nil {
			return nil, err
		}
		// Unmapped vehicles import fine; their enrichment fails later
		// for lack of a unit id.
		tx.MaponUnitID = unitID

		tx.EnrichmentStatus = domain.EnrichmentStatusPending
		tx.ImportBatchID = batchID

		if err := s.repo.Save(ctx, tx); err != nil {
			return nil, err
		}
		result.Imported++
	}

	s.logger.Info(ctx, "CSV import completed",
		"imported", result.Imported,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)

	return result, nil
}

// buildTransaction validates and coerces one CSV row. A non-empty error
// string marks the row failed; skip marks a valid non-fuel row.
func (s *ImportService) buildTransaction(row fuelCardRow) (tx *domain.Transaction, skip bool, rowErr string) {
	vehicleNumber := strings.TrimSpace(row.VehicleNumber)
	if vehicleNumber == "" {
		return nil, false, "missing vehicle number"
	}

	product := strings.TrimSpace(row.Product)
	if product == "" {
		return nil, false, "missing product type"
	}

	if strings.TrimSpace(row.Amount) == "" {
		return nil, false, "missing amount"
	}
	if strings.TrimSpace(row.TotalSum) == "" {
		return nil, false, "missing total amount"
	}
	if strings.TrimSpace(row.Date) == "" {
		return nil, false, "missing transaction date"
	}

	if !isFuelProduct(product) {
		return nil, true, ""
	}

	transactionDate, err := parseRowTimestamp(row.Date, row.Time)
	if err != nil {
		return nil, false, fmt.Sprintf("invalid date/time %q %q", strings.TrimSpace(row.Date), strings.TrimSpace(row.Time))
	}

	quantity, err := decimal.NewFromString(strings.TrimSpace(row.Amount))
	if err != nil {
		return nil, false, fmt.Sprintf("invalid amount %q", strings.TrimSpace(row.Amount))
	}

	totalAmount, err := decimal.NewFromString(strings.TrimSpace(row.TotalSum))
	if err != nil {
		return nil, false, fmt.Sprintf("invalid total amount %q", strings.TrimSpace(row.TotalSum))
	}

	currency := strings.ToUpper(strings.TrimSpace(row.Currency))
	if currency == "" {
		currency = "EUR"
	}

	stationCountry := strings.TrimSpace(row.CountryISO)
	if stationCountry == "" {
		stationCountry = strings.TrimSpace(row.Country)
	}

	tx = &domain.Transaction{
		VehicleNumber:   vehicleNumber,
		CardNumber:      strings.TrimSpace(row.CardNumber),
		TransactionDate: transactionDate,
		StationName:     strings.TrimSpace(row.FuelStation),
		StationCountry:  stationCountry,
		ProductType:     product,
		Quantity:        quantity,
		Unit:            domain.DefaultUnit,
		TotalAmount:     totalAmount,
		Currency:        currency,
	}

	if quantity.IsPositive() {
		unitPrice := totalAmount.Div(quantity).Round(4)
		tx.UnitPrice = &unitPrice
	}

	return tx, false, ""
}

func isFuelProduct(product string) bool {
	p := strings.ToLower(product)
	for _, keyword := range fuelKeywords {
		if strings.Contains(p, keyword) {
			return true
		}
	}
	return false
}

// parseRowTimestamp combines the Date and Time columns into one UTC
// timestamp. An empty time means start of day.
func parseRowTimestamp(dateStr, timeStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	timeStr = strings.TrimSpace(timeStr)

	var day time.Time
	var err error
	for _, layout := range dateLayouts {
		if day, err = time.ParseInLocation(layout, dateStr, time.UTC); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, err
	}

	if timeStr == "" {
		return day, nil
	}

	for _, layout := range timeLayouts {
		if clock, clockErr := time.Parse(layout, timeStr); clockErr == nil {
			return day.Add(
				time.Duration(clock.Hour())*time.Hour +
					time.Duration(clock.Minute())*time.Minute +
					time.Duration(clock.Second())*time.Second,
			), nil
		}
	}

	return time.Time{}, fmt.Errorf("unparseable time %q", timeStr)
}
