package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/internal/credential/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) List(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]domain.Credential, error) {
	var items []domain.Credential
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, provider, config, is_active, created_at, updated_at
		 FROM integration_credentials
		 WHERE company_id = ?
		 ORDER BY provider`,
		companyID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, companyID snowflake.ID, provider domain.Provider) (*domain.Credential, error) {
	var item domain.Credential
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, provider, config, is_active, created_at, updated_at
		 FROM integration_credentials
		 WHERE company_id = ? AND provider = ?
		 LIMIT 1`,
		companyID,
		provider,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, credential *domain.Credential) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO integration_credentials (
			id, company_id, provider, config, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_id, provider)
		DO UPDATE SET config = EXCLUDED.config,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`,
		credential.ID,
		credential.CompanyID,
		credential.Provider,
		credential.Config,
		credential.IsActive,
		credential.CreatedAt,
		credential.UpdatedAt,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, companyID snowflake.ID, provider domain.Provider, isActive bool, updatedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE integration_credentials
		 SET is_active = ?, updated_at = ?
		 WHERE company_id = ? AND provider = ?`,
		isActive,
		updatedAt,
		companyID,
		provider,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, companyID snowflake.ID, provider domain.Provider) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM integration_credentials WHERE company_id = ? AND provider = ?`,
		companyID,
		provider,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
