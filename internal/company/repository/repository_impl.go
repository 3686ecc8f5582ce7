package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/internal/company/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, company *domain.Company) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO companies (id, name, slug, custom_domain, default_gateway, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		company.ID,
		company.Name,
		company.Slug,
		company.CustomDomain,
		company.DefaultGateway,
		company.CreatedAt,
		company.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Company, error) {
	var company domain.Company
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, custom_domain, default_gateway, created_at, updated_at
		 FROM companies WHERE id = ?`,
		id,
	).Scan(&company).Error
	if err != nil {
		return nil, err
	}
	if company.ID == 0 {
		return nil, nil
	}
	return &company, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Company, error) {
	var company domain.Company
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, custom_domain, default_gateway, created_at, updated_at
		 FROM companies WHERE slug = ?`,
		slug,
	).Scan(&company).Error
	if err != nil {
		return nil, err
	}
	if company.ID == 0 {
		return nil, nil
	}
	return &company, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, company *domain.Company) error {
	return db.WithContext(ctx).Exec(
		`UPDATE companies SET name = ?, custom_domain = ?, default_gateway = ?, updated_at = ?
		 WHERE id = ?`,
		company.Name,
		company.CustomDomain,
		company.DefaultGateway,
		company.UpdatedAt,
		company.ID,
	).Error
}

func (r *repo) ListIDs(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Table("companies").Order("id").Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
