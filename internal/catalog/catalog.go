package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-booking/internal/apperr"
	"ms-booking/internal/models"
)

// Store is a read-only view on the resource catalog. Resource management
// itself belongs to another service; the engine only needs rates and the
// active flag.
type Store struct {
	Bun *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{Bun: db}
}

func (s *Store) GetResource(id string) (*models.Resource, error) {
	var resource models.Resource
	err := s.Bun.NewSelect().
		Model(&resource).
		Where("resource_id = ?", id).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("resource %s not found", id)
		}
		return nil, err
	}
	return &resource, nil
}

// ListActive returns the bookable resources.
func (s *Store) ListActive() ([]models.Resource, error) {
	var resources []models.Resource
	err := s.Bun.NewSelect().
		Model(&resources).
		Where("is_active = ?", true).
		Order("name ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return resources, nil
}
