package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/internal/plan/domain"
	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, plan *domain.Plan) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO plans (id, company_id, name, description, monthly_value, billing_day, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID,
		plan.CompanyID,
		plan.Name,
		plan.Description,
		plan.MonthlyValue,
		plan.BillingDay,
		plan.Active,
		plan.CreatedAt,
		plan.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*domain.Plan, error) {
	var plan domain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, name, description, monthly_value, billing_day, active, created_at, updated_at
		 FROM plans WHERE company_id = ? AND id = ?`,
		companyID,
		id,
	).Scan(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, activeOnly bool, page pagination.Pagination) ([]*domain.Plan, error) {
	stmt := db.WithContext(ctx).Model(&domain.Plan{}).Where("company_id = ?", companyID)
	if activeOnly {
		stmt = stmt.Where("active = ?", true)
	}
	stmt, err := pagination.Apply(stmt, "", page)
	if err != nil {
		return nil, err
	}

	var plans []*domain.Plan
	if err := stmt.Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, plan *domain.Plan) error {
	return db.WithContext(ctx).Exec(
		`UPDATE plans SET name = ?, description = ?, monthly_value = ?, billing_day = ?, active = ?, updated_at = ?
		 WHERE company_id = ? AND id = ?`,
		plan.Name,
		plan.Description,
		plan.MonthlyValue,
		plan.BillingDay,
		plan.Active,
		plan.UpdatedAt,
		plan.CompanyID,
		plan.ID,
	).Error
}
