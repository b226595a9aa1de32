package audit

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) Insert(entry models.AuditEntry) error {
	_, err := d.Bun.NewInsert().
		Model(&entry).
		Exec(context.Background())
	return err
}

// Find applies the filter and returns one page plus the total match count.
func (d *DB) Find(filter models.AuditFilter) ([]models.AuditEntry, int, error) {
	ctx := context.Background()

	applyFilter := func(q *bun.SelectQuery) *bun.SelectQuery {
		if filter.ActorID != "" {
			q = q.Where("actor_id = ?", filter.ActorID)
		}
		if filter.Action != "" {
			q = q.Where("action = ?", filter.Action)
		}
		if filter.EntityType != "" {
			q = q.Where("entity_type = ?", filter.EntityType)
		}
		if !filter.From.IsZero() {
			q = q.Where("created_at >= ?", filter.From)
		}
		if !filter.To.IsZero() {
			q = q.Where("created_at < ?", filter.To)
		}
		return q
	}

	total, err := applyFilter(d.Bun.NewSelect().Model((*models.AuditEntry)(nil))).Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	var entries []models.AuditEntry
	err = applyFilter(d.Bun.NewSelect().Model(&entries)).
		Order("created_at DESC").
		Limit(filter.PageSize).
		Offset((filter.Page - 1) * filter.PageSize).
		Scan(ctx)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// FindByEntity returns the full history of one entity, newest first.
func (d *DB) FindByEntity(entityType, entityID string) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("entity_type = ?", entityType).
		Where("entity_id = ?", entityID).
		Order("created_at DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteOlderThan removes entries created before the cutoff and reports
// how many were removed.
func (d *DB) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.AuditEntry)(nil)).
		Where("created_at < ?", cutoff).
		Exec(context.Background())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
