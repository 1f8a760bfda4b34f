package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/DeadSloth/mapon-backend-assignment/internal/domain"
)

// PostgresStore implements the transaction and vehicle repositories on a
// pgx/stdlib pool.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const transactionColumns = `
	id, vehicle_number, card_number, transaction_date, station_name,
	station_country, product_type, quantity, unit, unit_price, total_amount,
	currency, original_currency, original_amount, mapon_unit_id,
	enrichment_status, gps_latitude, gps_longitude, odometer_gps,
	enriched_at, import_batch_id, created_at, updated_at`

func (s *PostgresStore) Save(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == 0 {
		return s.insert(ctx, tx)
	}
	return s.update(ctx, tx)
}

func (s *PostgresStore) insert(ctx context.Context, tx *domain.Transaction) error {
	const query = `
		INSERT INTO transactions (
			vehicle_number, card_number, transaction_date, station_name,
			station_country, product_type, quantity, unit, unit_price,
			total_amount, currency, original_currency, original_amount,
			mapon_unit_id, enrichment_status, gps_latitude, gps_longitude,
			odometer_gps, enriched_at, import_batch_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id, created_at, updated_at
	`
	return s.db.QueryRowContext(ctx, query,
		tx.VehicleNumber,
		tx.CardNumber,
		tx.TransactionDate,
		tx.StationName,
		tx.StationCountry,
		tx.ProductType,
		tx.Quantity,
		tx.Unit,
		nullDecimal(tx.UnitPrice),
		tx.TotalAmount,
		tx.Currency,
		tx.OriginalCurrency,
		nullDecimal(tx.OriginalAmount),
		tx.MaponUnitID,
		tx.EnrichmentStatus,
		tx.GPSLatitude,
		tx.GPSLongitude,
		tx.OdometerGPS,
		tx.EnrichedAt,
		tx.ImportBatchID,
	).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
}

func (s *PostgresStore) update(ctx context.Context, tx *domain.Transaction) error {
	const query = `
		UPDATE transactions SET
			vehicle_number = $1, card_number = $2, transaction_date = $3,
			station_name = $4, station_country = $5, product_type = $6,
			quantity = $7, unit = $8, unit_price = $9, total_amount = $10,
			currency = $11, original_currency = $12, original_amount = $13,
			mapon_unit_id = $14, enrichment_status = $15, gps_latitude = $16,
			gps_longitude = $17, odometer_gps = $18, enriched_at = $19,
			import_batch_id = $20, updated_at = NOW()
		WHERE id = $21
		RETURNING updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		tx.VehicleNumber,
		tx.CardNumber,
		tx.TransactionDate,
		tx.StationName,
		tx.StationCountry,
		tx.ProductType,
		tx.Quantity,
		tx.Unit,
		nullDecimal(tx.UnitPrice),
		tx.TotalAmount,
		tx.Currency,
		tx.OriginalCurrency,
		nullDecimal(tx.OriginalAmount),
		tx.MaponUnitID,
		tx.EnrichmentStatus,
		tx.GPSLatitude,
		tx.GPSLongitude,
		tx.OdometerGPS,
		tx.EnrichedAt,
		tx.ImportBatchID,
		tx.ID,
	).Scan(&tx.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrTransactionNotFound
	}
	return err
}

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE id = $1`, transactionColumns)

	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	return tx, err
}

func (s *PostgresStore) GetAll(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE ($1 = '' OR vehicle_number = $1)
		  AND ($2 = '' OR enrichment_status = $2)
		ORDER BY transaction_date DESC, id DESC
		LIMIT $3 OFFSET $4
	`, transactionColumns)

	rows, err := s.db.QueryContext(ctx, query, filter.VehicleNumber, string(filter.Status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func (s *PostgresStore) Count(ctx context.Context, filter domain.TransactionFilter) (int, error) {
	const query = `
		SELECT COUNT(*) FROM transactions
		WHERE ($1 = '' OR vehicle_number = $1)
		  AND ($2 = '' OR enrichment_status = $2)
	`
	var count int
	err := s.db.QueryRowContext(ctx, query, filter.VehicleNumber, string(filter.Status)).Scan(&count)
	return count, err
}

func (s *PostgresStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PostgresStore) GetUnitID(ctx context.Context, vehicleNumber string) (*int64, error) {
	const query = `SELECT mapon_unit_id FROM vehicles WHERE vehicle_number = $1`

	var unitID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, normalizeVehicleNumber(vehicleNumber)).Scan(&unitID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !unitID.Valid {
		return nil, nil
	}
	return &unitID.Int64, nil
}

func (s *PostgresStore) UpsertMapping(ctx context.Context, vehicleNumber string, unitID int64) error {
	const query = `
		INSERT INTO vehicles (vehicle_number, mapon_unit_id)
		VALUES ($1, $2)
		ON CONFLICT (vehicle_number) DO UPDATE SET mapon_unit_id = EXCLUDED.mapon_unit_id
	`
	_, err := s.db.ExecContext(ctx, query, normalizeVehicleNumber(vehicleNumber), unitID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		tx               domain.Transaction
		cardNumber       sql.NullString
		stationName      sql.NullString
		stationCountry   sql.NullString
		unit             sql.NullString
		unitPrice        decimal.NullDecimal
		originalCurrency sql.NullString
		originalAmount   decimal.NullDecimal
		maponUnitID      sql.NullInt64
		gpsLatitude      sql.NullFloat64
		gpsLongitude     sql.NullFloat64
		odometerGPS      sql.NullInt64
		enrichedAt       sql.NullTime
		importBatchID    sql.NullString
	)

	err := row.Scan(
		&tx.ID,
		&tx.VehicleNumber,
		&cardNumber,
		&tx.TransactionDate,
		&stationName,
		&stationCountry,
		&tx.ProductType,
		&tx.Quantity,
		&unit,
		&unitPrice,
		&tx.TotalAmount,
		&tx.Currency,
		&originalCurrency,
		&originalAmount,
		&maponUnitID,
		&tx.EnrichmentStatus,
		&gpsLatitude,
		&gpsLongitude,
		&odometerGPS,
		&enrichedAt,
		&importBatchID,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.CardNumber = cardNumber.String
	tx.StationName = stationName.String
	tx.StationCountry = stationCountry.String
	tx.ImportBatchID = importBatchID.String
	tx.Unit = domain.DefaultUnit
	if unit.Valid {
		tx.Unit = unit.String
	}
	if unitPrice.Valid {
		tx.UnitPrice = &unitPrice.Decimal
	}
	if originalCurrency.Valid {
		tx.OriginalCurrency = &originalCurrency.String
	}
	if originalAmount.Valid {
		tx.OriginalAmount = &originalAmount.Decimal
	}
	if maponUnitID.Valid {
		tx.MaponUnitID = &maponUnitID.Int64
	}
	if gpsLatitude.Valid {
		tx.GPSLatitude = &gpsLatitude.Float64
	}
	if gpsLongitude.Valid {
		tx.GPSLongitude = &gpsLongitude.Float64
	}
	if odometerGPS.Valid {
		tx.OdometerGPS = &odometerGPS.Int64
	}
	if enrichedAt.Valid {
		tx.EnrichedAt = &enrichedAt.Time
	}

	return &tx, nil
}

func collectTransactions(rows *sql.Rows) ([]*domain.Transaction, error) {
	txs := []*domain.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txs, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
