package storage

import "ms-booking/internal/models"

// Store persists payment records. Payments live in their own table with a
// raw SQL store so the payment side stays decoupled from the booking ORM.
type Store interface {
	SavePayment(payment *models.Payment) error
	GetPayment(id string) (*models.Payment, error)
	GetPaymentByBookingID(bookingID string) (*models.Payment, error)
	UpdatePayment(payment *models.Payment) error
	DeletePaymentByBookingID(bookingID string) error
	Close() error
	HealthCheck() error
}
