package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"salonsched/internal/domain"
	"salonsched/internal/store"
)

type RegistryRepo struct {
	db *bun.DB
}

func NewRegistryRepo(db *bun.DB) *RegistryRepo {
	return &RegistryRepo{db: db}
}

func (r *RegistryRepo) CompanyLocation(ctx context.Context, companyID uuid.UUID) (*time.Location, error) {
	var tz string
	err := r.db.NewSelect().
		Model((*domain.Company)(nil)).
		Column("timezone").
		Where("id = ?", companyID).
		Scan(ctx, &tz)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return time.LoadLocation(tz)
}

func (r *RegistryRepo) ClientExists(ctx context.Context, companyID, clientID uuid.UUID) (bool, error) {
	return r.db.NewSelect().
		Model((*domain.Client)(nil)).
		Where("company_id = ?", companyID).
		Where("id = ?", clientID).
		Exists(ctx)
}

func (r *RegistryRepo) ServiceExists(ctx context.Context, companyID, serviceID uuid.UUID) (bool, error) {
	return r.db.NewSelect().
		Model((*domain.Service)(nil)).
		Where("company_id = ?", companyID).
		Where("id = ?", serviceID).
		Exists(ctx)
}

func (r *RegistryRepo) StaffExists(ctx context.Context, companyID, staffID uuid.UUID) (bool, error) {
	return r.db.NewSelect().
		Model((*domain.Staff)(nil)).
		Where("company_id = ?", companyID).
		Where("id = ?", staffID).
		Exists(ctx)
}
