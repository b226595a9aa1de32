package models

import (
	"time"

	"github.com/uptrace/bun"
)

// PaymentSettings is the process-wide singleton row of payment
// configuration. Absence of the row means "use defaults"; the settings
// store materializes it lazily on first read.
type PaymentSettings struct {
	bun.BaseModel `bun:"table:payment_settings"`

	SettingsID int64 `json:"settings_id" bun:"settings_id,pk"`

	CardEnabled         bool `json:"card_enabled" bun:"card_enabled"`
	BankTransferEnabled bool `json:"bank_transfer_enabled" bun:"bank_transfer_enabled"`

	BankName        string `json:"bank_name" bun:"bank_name,nullzero"`
	BankAccountName string `json:"bank_account_name" bun:"bank_account_name,nullzero"`
	BankIBAN        string `json:"bank_iban" bun:"bank_iban,nullzero"`
	BankBIC         string `json:"bank_bic" bun:"bank_bic,nullzero"`

	// Remittance-note template; {CODICE}, {RISORSA} and {DATA} are
	// substituted with the transfer reference, the resource name and the
	// booking start date.
	TransferNoteTemplate string `json:"transfer_note_template" bun:"transfer_note_template,nullzero"`

	PaymentDeadlineDays int  `json:"payment_deadline_days" bun:"payment_deadline_days"`
	ReminderLeadHours   int  `json:"reminder_lead_hours" bun:"reminder_lead_hours"`
	RemindersEnabled    bool `json:"reminders_enabled" bun:"reminders_enabled"`

	TaxRate           float64 `json:"tax_rate" bun:"tax_rate"`
	InvoicePrefix     string  `json:"invoice_prefix" bun:"invoice_prefix,nullzero"`
	NextInvoiceNumber int     `json:"next_invoice_number" bun:"next_invoice_number"`

	// Gateway secret, AES-GCM encrypted at rest; decrypted only at point
	// of use. Empty means "use the process-wide default credential".
	GatewaySecretEnc string `json:"-" bun:"gateway_secret_enc,nullzero"`

	UpdatedAt time.Time `json:"updated_at" bun:"updated_at,nullzero"`
}

type SettingsUpdateRequest struct {
	CardEnabled          *bool    `json:"card_enabled,omitempty"`
	BankTransferEnabled  *bool    `json:"bank_transfer_enabled,omitempty"`
	BankName             *string  `json:"bank_name,omitempty"`
	BankAccountName      *string  `json:"bank_account_name,omitempty"`
	BankIBAN             *string  `json:"bank_iban,omitempty"`
	BankBIC              *string  `json:"bank_bic,omitempty"`
	TransferNoteTemplate *string  `json:"transfer_note_template,omitempty"`
	PaymentDeadlineDays  *int     `json:"payment_deadline_days,omitempty"`
	ReminderLeadHours    *int     `json:"reminder_lead_hours,omitempty"`
	RemindersEnabled     *bool    `json:"reminders_enabled,omitempty"`
	TaxRate              *float64 `json:"tax_rate,omitempty"`
	InvoicePrefix        *string  `json:"invoice_prefix,omitempty"`
	GatewaySecret        *string  `json:"gateway_secret,omitempty"` // plaintext on input only
}
