package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"ms-booking/internal/apperr"
	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

type PostgreSQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPostgreSQLStoreWithDB creates a new PostgreSQL store using an existing database connection
func NewPostgreSQLStoreWithDB(db *sql.DB, log *logger.Logger) (*PostgreSQLStore, error) {
	log.Info("DATABASE", "Creating payment storage with existing database connection")

	store := &PostgreSQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize payment tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize payment tables: %w", err)
	}

	log.Info("DATABASE", "Payment storage initialized successfully with existing connection")
	return store, nil
}

func NewPostgreSQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*PostgreSQLStore, error) {
	log.LogDatabase("CONNECT", "postgresql", fmt.Sprintf("Connecting to PostgreSQL at %s:%s", cfg.Host, cfg.Port))

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Error("DATABASE", "Failed to open PostgreSQL connection: "+err.Error())
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.Ping(); err != nil {
		log.Error("DATABASE", "Failed to ping PostgreSQL: "+err.Error())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgreSQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "postgresql", "PostgreSQL connection established and tables initialized")
	return store, nil
}

func (s *PostgreSQLStore) initTables() error {
	s.log.LogDatabase("MIGRATE", "postgresql", "Creating payments table if not exists")

	paymentsQuery := `
    CREATE TABLE IF NOT EXISTS payments (
        payment_id VARCHAR(64) PRIMARY KEY,
        booking_id VARCHAR(36) NOT NULL UNIQUE,
        amount DECIMAL(10,2) NOT NULL,
        currency VARCHAR(8) NOT NULL,
        method VARCHAR(32) NOT NULL,
        status VARCHAR(32) NOT NULL,
        checkout_session_id VARCHAR(255) DEFAULT '',
        payment_intent_id VARCHAR(255) DEFAULT '',
        checkout_url VARCHAR(1024) DEFAULT '',
        transfer_reference VARCHAR(64) DEFAULT '',
        transfer_note VARCHAR(255) DEFAULT '',
        transfer_verified BOOLEAN DEFAULT FALSE,
        transfer_verified_by VARCHAR(64) DEFAULT '',
        refunded_amount DECIMAL(10,2) DEFAULT 0,
        refunded_at TIMESTAMPTZ,
        expires_at TIMESTAMPTZ,
        created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMPTZ
    );
    `

	if _, err := s.db.Exec(paymentsQuery); err != nil {
		return fmt.Errorf("failed to create payments table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_payments_booking_id ON payments(booking_id);",
		"CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status);",
		"CREATE INDEX IF NOT EXISTS idx_payments_transfer_reference ON payments(transfer_reference);",
	}

	for _, indexQuery := range indexes {
		if _, err := s.db.Exec(indexQuery); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	s.log.LogDatabase("SUCCESS", "postgresql", "Payment tables and indexes ready")
	return nil
}

const paymentColumns = `
    payment_id, booking_id, amount, currency, method, status,
    checkout_session_id, payment_intent_id, checkout_url,
    transfer_reference, transfer_note, transfer_verified, transfer_verified_by,
    refunded_amount, refunded_at, expires_at, created_at, updated_at
`

func (s *PostgreSQLStore) scanPayment(row *sql.Row) (*models.Payment, error) {
	payment := &models.Payment{}
	var refundedAt, expiresAt, updatedAt sql.NullTime
	err := row.Scan(
		&payment.PaymentID, &payment.BookingID, &payment.Amount, &payment.Currency,
		&payment.Method, &payment.Status,
		&payment.CheckoutSessionID, &payment.PaymentIntentID, &payment.CheckoutURL,
		&payment.TransferReference, &payment.TransferNote, &payment.TransferVerified, &payment.TransferVerifiedBy,
		&payment.RefundedAmount, &refundedAt, &expiresAt, &payment.CreatedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if refundedAt.Valid {
		payment.RefundedAt = refundedAt.Time
	}
	if expiresAt.Valid {
		payment.ExpiresAt = expiresAt.Time
	}
	if updatedAt.Valid {
		payment.UpdatedAt = updatedAt.Time
	}
	return payment, nil
}

// SavePayment saves a payment to the database
func (s *PostgreSQLStore) SavePayment(payment *models.Payment) error {
	s.log.LogDatabase("INSERT", "postgresql", fmt.Sprintf("Saving payment %s", payment.PaymentID))

	query := `
    INSERT INTO payments (` + paymentColumns + `)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
    `

	_, err := s.db.Exec(query,
		payment.PaymentID, payment.BookingID, payment.Amount, payment.Currency,
		payment.Method, payment.Status,
		payment.CheckoutSessionID, payment.PaymentIntentID, payment.CheckoutURL,
		payment.TransferReference, payment.TransferNote, payment.TransferVerified, payment.TransferVerifiedBy,
		payment.RefundedAmount, nullableTime(payment.RefundedAt), nullableTime(payment.ExpiresAt),
		payment.CreatedAt, nullableTime(payment.UpdatedAt),
	)

	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save payment %s: %s", payment.PaymentID, err.Error()))
		return fmt.Errorf("failed to save payment: %w", err)
	}

	s.log.LogDatabase("SUCCESS", "postgresql", fmt.Sprintf("Payment %s saved successfully", payment.PaymentID))
	return nil
}

// GetPayment retrieves a payment by ID
func (s *PostgreSQLStore) GetPayment(id string) (*models.Payment, error) {
	s.log.LogDatabase("SELECT", "postgresql", fmt.Sprintf("Fetching payment %s", id))

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_id = $1`

	payment, err := s.scanPayment(s.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			s.log.LogDatabase("NOT_FOUND", "postgresql", fmt.Sprintf("Payment %s not found", id))
			return nil, apperr.NotFound("payment %s not found", id)
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get payment %s: %s", id, err.Error()))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return payment, nil
}

// GetPaymentByBookingID retrieves the payment attached to a booking
func (s *PostgreSQLStore) GetPaymentByBookingID(bookingID string) (*models.Payment, error) {
	s.log.LogDatabase("SELECT", "postgresql", fmt.Sprintf("Fetching payment for booking %s", bookingID))

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = $1`

	payment, err := s.scanPayment(s.db.QueryRow(query, bookingID))
	if err != nil {
		if err == sql.ErrNoRows {
			s.log.LogDatabase("NOT_FOUND", "postgresql", fmt.Sprintf("No payment found for booking %s", bookingID))
			return nil, apperr.NotFound("no payment for booking %s", bookingID)
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get payment for booking %s: %s", bookingID, err.Error()))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return payment, nil
}

// UpdatePayment updates a payment in the database
func (s *PostgreSQLStore) UpdatePayment(payment *models.Payment) error {
	s.log.LogDatabase("UPDATE", "postgresql", fmt.Sprintf("Updating payment %s", payment.PaymentID))

	query := `
    UPDATE payments SET
        status = $1, checkout_session_id = $2, payment_intent_id = $3, checkout_url = $4,
        transfer_reference = $5, transfer_note = $6, transfer_verified = $7, transfer_verified_by = $8,
        refunded_amount = $9, refunded_at = $10, expires_at = $11, updated_at = $12
    WHERE payment_id = $13
    `

	_, err := s.db.Exec(query,
		payment.Status, payment.CheckoutSessionID, payment.PaymentIntentID, payment.CheckoutURL,
		payment.TransferReference, payment.TransferNote, payment.TransferVerified, payment.TransferVerifiedBy,
		payment.RefundedAmount, nullableTime(payment.RefundedAt), nullableTime(payment.ExpiresAt),
		nullableTime(payment.UpdatedAt), payment.PaymentID,
	)

	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to update payment %s: %s", payment.PaymentID, err.Error()))
		return fmt.Errorf("failed to update payment: %w", err)
	}

	s.log.LogDatabase("SUCCESS", "postgresql", fmt.Sprintf("Payment %s updated successfully", payment.PaymentID))
	return nil
}

// DeletePaymentByBookingID removes the payment of a purged booking
func (s *PostgreSQLStore) DeletePaymentByBookingID(bookingID string) error {
	s.log.LogDatabase("DELETE", "postgresql", fmt.Sprintf("Deleting payment for booking %s", bookingID))

	_, err := s.db.Exec(`DELETE FROM payments WHERE booking_id = $1`, bookingID)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to delete payment for booking %s: %s", bookingID, err.Error()))
		return fmt.Errorf("failed to delete payment: %w", err)
	}

	return nil
}

func (s *PostgreSQLStore) Close() error {
	s.log.LogDatabase("CLOSE", "postgresql", "Closing PostgreSQL connection")
	return s.db.Close()
}

func (s *PostgreSQLStore) HealthCheck() error {
	return s.db.Ping()
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
