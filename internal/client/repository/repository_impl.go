package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/internal/client/domain"
	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, client *domain.Client) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO clients (id, company_id, name, document, email, phone, status, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		client.ID,
		client.CompanyID,
		client.Name,
		client.Document,
		client.Email,
		client.Phone,
		client.Status,
		client.Metadata,
		client.CreatedAt,
		client.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*domain.Client, error) {
	var client domain.Client
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, name, document, email, phone, status, metadata, created_at, updated_at
		 FROM clients WHERE company_id = ? AND id = ?`,
		companyID,
		id,
	).Scan(&client).Error
	if err != nil {
		return nil, err
	}
	if client.ID == 0 {
		return nil, nil
	}
	return &client, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, filter domain.ListClientFilter, page pagination.Pagination) ([]*domain.Client, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Client{}).
		Where("company_id = ?", companyID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Name != "" {
		stmt = stmt.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(filter.Name)+"%")
	}
	stmt, err := pagination.Apply(stmt, "", page)
	if err != nil {
		return nil, err
	}

	var clients []*domain.Client
	if err := stmt.Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, client *domain.Client) error {
	return db.WithContext(ctx).Exec(
		`UPDATE clients SET name = ?, document = ?, email = ?, phone = ?, status = ?, metadata = ?, updated_at = ?
		 WHERE company_id = ? AND id = ?`,
		client.Name,
		client.Document,
		client.Email,
		client.Phone,
		client.Status,
		client.Metadata,
		client.UpdatedAt,
		client.CompanyID,
		client.ID,
	).Error
}
