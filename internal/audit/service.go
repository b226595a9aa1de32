package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-booking/internal/auth"
	"ms-booking/internal/clock"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

const defaultPageSize = 50

// retentionPeriod is how long audit entries are kept before the daily
// sweep removes them.
const retentionPeriod = 90 * 24 * time.Hour

type Store interface {
	Insert(entry models.AuditEntry) error
	Find(filter models.AuditFilter) ([]models.AuditEntry, int, error)
	FindByEntity(entityType, entityID string) ([]models.AuditEntry, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// Service writes and reads the audit trail. Recording is fire-and-forget:
// a storage failure is logged and swallowed so an audit outage can never
// fail the operation being audited.
type Service struct {
	Store  Store
	Clock  clock.Clock
	Logger *logger.Logger
}

func NewService(store Store, clk clock.Clock, log *logger.Logger) *Service {
	return &Service{Store: store, Clock: clk, Logger: log}
}

// Record appends one audit entry. Metadata is JSON-encoded in place; an
// entry that cannot be stored is logged and dropped.
func (s *Service) Record(actor models.Principal, action, entityType, entityID, description string, metadata map[string]interface{}) {
	entry := models.AuditEntry{
		EntryID:     uuid.NewString(),
		ActorID:     actor.ID,
		ActorEmail:  actor.Email,
		ActorRole:   actor.Role,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Description: description,
		CreatedAt:   s.Clock.Now(),
	}

	if len(metadata) > 0 {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			s.Logger.Warn("AUDIT", fmt.Sprintf("failed to encode metadata for %s on %s/%s: %v", action, entityType, entityID, err))
		} else {
			entry.Metadata = string(encoded)
		}
	}

	if err := s.Store.Insert(entry); err != nil {
		s.Logger.Error("AUDIT", fmt.Sprintf("failed to record %s on %s/%s: %v", action, entityType, entityID, err))
		return
	}

	s.Logger.LogAudit(action, entityID, description)
}

// FindAll returns one filtered page of the trail. Staff only.
func (s *Service) FindAll(actor models.Principal, filter models.AuditFilter) (*models.AuditPage, error) {
	if err := auth.Require(actor, auth.ActionAuditRead); err != nil {
		return nil, err
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultPageSize
	}

	entries, total, err := s.Store.Find(filter)
	if err != nil {
		return nil, err
	}
	return &models.AuditPage{Entries: entries, Total: total, Page: filter.Page}, nil
}

// FindByEntity returns the full history of one entity, newest first.
func (s *Service) FindByEntity(actor models.Principal, entityType, entityID string) ([]models.AuditEntry, error) {
	if err := auth.Require(actor, auth.ActionAuditRead); err != nil {
		return nil, err
	}
	return s.Store.FindByEntity(entityType, entityID)
}

// PurgeExpired removes entries past the retention period. Called by the
// daily retention sweep.
func (s *Service) PurgeExpired() (int64, error) {
	cutoff := s.Clock.Now().Add(-retentionPeriod)
	removed, err := s.Store.DeleteOlderThan(cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.Logger.Info("AUDIT", fmt.Sprintf("retention sweep removed %d entries older than %s", removed, cutoff.Format(time.RFC3339)))
	}
	return removed, nil
}
