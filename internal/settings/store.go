package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// settingsRowID is the primary key of the singleton row.
const settingsRowID int64 = 1

// Store reads and writes the payment-settings singleton. The row is
// materialized lazily from the configured defaults on first read, so a
// fresh database behaves the same as one where an admin saved defaults.
type Store struct {
	Bun      *bun.DB
	Defaults config.PaymentDefaults
	Logger   *logger.Logger

	box *secretBox
}

func NewStore(db *bun.DB, defaults config.PaymentDefaults, log *logger.Logger) *Store {
	return &Store{
		Bun:      db,
		Defaults: defaults,
		Logger:   log,
		box:      newSecretBox(defaults.SettingsSecret),
	}
}

// Get returns the current settings, materializing the defaults row when
// none exists yet.
func (s *Store) Get() (*models.PaymentSettings, error) {
	ctx := context.Background()

	var row models.PaymentSettings
	err := s.Bun.NewSelect().
		Model(&row).
		Where("settings_id = ?", settingsRowID).
		Limit(1).
		Scan(ctx)
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	row = s.defaultsRow()
	if _, err := s.Bun.NewInsert().
		Model(&row).
		On("CONFLICT (settings_id) DO NOTHING").
		Exec(ctx); err != nil {
		return nil, err
	}
	s.Logger.Info("SETTINGS", "Materialized payment settings from defaults")

	// Re-read in case a concurrent materialization won the insert.
	if err := s.Bun.NewSelect().
		Model(&row).
		Where("settings_id = ?", settingsRowID).
		Limit(1).
		Scan(ctx); err != nil {
		return nil, err
	}
	return &row, nil
}

// Update applies a partial update to the settings row. A supplied gateway
// secret is encrypted before it is stored; an empty string clears it.
func (s *Store) Update(req models.SettingsUpdateRequest) (*models.PaymentSettings, error) {
	row, err := s.Get()
	if err != nil {
		return nil, err
	}

	if req.CardEnabled != nil {
		row.CardEnabled = *req.CardEnabled
	}
	if req.BankTransferEnabled != nil {
		row.BankTransferEnabled = *req.BankTransferEnabled
	}
	if req.BankName != nil {
		row.BankName = *req.BankName
	}
	if req.BankAccountName != nil {
		row.BankAccountName = *req.BankAccountName
	}
	if req.BankIBAN != nil {
		row.BankIBAN = *req.BankIBAN
	}
	if req.BankBIC != nil {
		row.BankBIC = *req.BankBIC
	}
	if req.TransferNoteTemplate != nil {
		row.TransferNoteTemplate = *req.TransferNoteTemplate
	}
	if req.PaymentDeadlineDays != nil {
		row.PaymentDeadlineDays = *req.PaymentDeadlineDays
	}
	if req.ReminderLeadHours != nil {
		row.ReminderLeadHours = *req.ReminderLeadHours
	}
	if req.RemindersEnabled != nil {
		row.RemindersEnabled = *req.RemindersEnabled
	}
	if req.TaxRate != nil {
		row.TaxRate = *req.TaxRate
	}
	if req.InvoicePrefix != nil {
		row.InvoicePrefix = *req.InvoicePrefix
	}
	if req.GatewaySecret != nil {
		if *req.GatewaySecret == "" {
			row.GatewaySecretEnc = ""
		} else {
			enc, err := s.box.Encrypt(*req.GatewaySecret)
			if err != nil {
				return nil, fmt.Errorf("failed to encrypt gateway secret: %w", err)
			}
			row.GatewaySecretEnc = enc
		}
	}
	row.UpdatedAt = time.Now()

	if _, err := s.Bun.NewUpdate().
		Model(row).
		WherePK().
		Exec(context.Background()); err != nil {
		return nil, err
	}

	s.Logger.Info("SETTINGS", "Payment settings updated")
	return row, nil
}

// GatewaySecret decrypts the stored gateway credential. Empty when the
// process-wide default credential should be used.
func (s *Store) GatewaySecret() (string, error) {
	row, err := s.Get()
	if err != nil {
		return "", err
	}
	if row.GatewaySecretEnc == "" {
		return "", nil
	}
	return s.box.Decrypt(row.GatewaySecretEnc)
}

func (s *Store) defaultsRow() models.PaymentSettings {
	return models.PaymentSettings{
		SettingsID:           settingsRowID,
		CardEnabled:          s.Defaults.CardEnabled,
		BankTransferEnabled:  s.Defaults.BankTransferEnabled,
		BankName:             s.Defaults.BankName,
		BankAccountName:      s.Defaults.BankAccountName,
		BankIBAN:             s.Defaults.BankIBAN,
		BankBIC:              s.Defaults.BankBIC,
		TransferNoteTemplate: s.Defaults.TransferNoteTemplate,
		PaymentDeadlineDays:  s.Defaults.PaymentDeadlineDays,
		ReminderLeadHours:    s.Defaults.ReminderLeadHours,
		RemindersEnabled:     s.Defaults.RemindersEnabled,
		TaxRate:              s.Defaults.TaxRate,
		InvoicePrefix:        s.Defaults.InvoicePrefix,
		NextInvoiceNumber:    1,
		UpdatedAt:            time.Now(),
	}
}
