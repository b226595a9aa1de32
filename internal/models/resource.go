package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Resource is a bookable unit (room, equipment). The catalog that manages
// resources lives outside this service; the engine only reads rate and
// active flag by id.
type Resource struct {
	bun.BaseModel `bun:"table:resources"`

	ResourceID string    `json:"resource_id" bun:"resource_id,pk"`
	Name       string    `json:"name" bun:"name,notnull"`
	HourlyRate float64   `json:"hourly_rate" bun:"hourly_rate,notnull"`
	Currency   string    `json:"currency" bun:"currency,notnull"`
	IsActive   bool      `json:"is_active" bun:"is_active"`
	CreatedAt  time.Time `json:"created_at" bun:"created_at,nullzero"`
}
