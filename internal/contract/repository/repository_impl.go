package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/internal/contract/domain"
	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, contract *domain.Contract) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO contracts (id, company_id, client_id, plan_id, status, monthly_value, start_date, end_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		contract.ID,
		contract.CompanyID,
		contract.ClientID,
		contract.PlanID,
		contract.Status,
		contract.MonthlyValue,
		contract.StartDate,
		contract.EndDate,
		contract.CreatedAt,
		contract.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*domain.Contract, error) {
	var contract domain.Contract
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, client_id, plan_id, status, monthly_value, start_date, end_date, created_at, updated_at
		 FROM contracts WHERE company_id = ? AND id = ?`,
		companyID,
		id,
	).Scan(&contract).Error
	if err != nil {
		return nil, err
	}
	if contract.ID == 0 {
		return nil, nil
	}
	return &contract, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, filter domain.ListContractFilter, page pagination.Pagination) ([]*domain.Contract, error) {
	stmt := db.WithContext(ctx).Model(&domain.Contract{}).Where("company_id = ?", companyID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.ClientID != 0 {
		stmt = stmt.Where("client_id = ?", filter.ClientID)
	}
	stmt, err := pagination.Apply(stmt, "", page)
	if err != nil {
		return nil, err
	}

	var contracts []*domain.Contract
	if err := stmt.Find(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, contract *domain.Contract) error {
	return db.WithContext(ctx).Exec(
		`UPDATE contracts SET status = ?, monthly_value = ?, end_date = ?, updated_at = ?
		 WHERE company_id = ? AND id = ?`,
		contract.Status,
		contract.MonthlyValue,
		contract.EndDate,
		contract.UpdatedAt,
		contract.CompanyID,
		contract.ID,
	).Error
}
