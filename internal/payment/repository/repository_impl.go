package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/internal/payment/domain"
	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
	"gorm.io/gorm"
)

const paymentColumns = `id, company_id, client_id, contract_id, amount, due_date, period, status,
	payment_gateway, external_id, paid_at, transaction_type, description, checkout_url,
	metadata, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(insertSQL, insertArgs(payment)...).Error
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, payment *domain.Payment) (bool, error) {
	res := db.WithContext(ctx).Exec(insertSQL+` ON CONFLICT DO NOTHING`, insertArgs(payment)...)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

const insertSQL = `INSERT INTO payment_transactions (` + paymentColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func insertArgs(p *domain.Payment) []any {
	return []any{
		p.ID,
		p.CompanyID,
		p.ClientID,
		p.ContractID,
		p.Amount,
		p.DueDate,
		p.Period,
		p.Status,
		p.PaymentGateway,
		p.ExternalID,
		p.PaidAt,
		p.TransactionType,
		p.Description,
		p.CheckoutURL,
		p.Metadata,
		p.CreatedAt,
		p.UpdatedAt,
	}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*domain.Payment, error) {
	var payment domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+`
		 FROM payment_transactions
		 WHERE company_id = ? AND id = ?`,
		companyID,
		id,
	).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, gateway, externalID string) (*domain.Payment, error) {
	var payment domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+`
		 FROM payment_transactions
		 WHERE payment_gateway = ? AND external_id = ?
		 LIMIT 1`,
		gateway,
		externalID,
	).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Payment, error) {
	stmt := db.WithContext(ctx).Model(&domain.Payment{}).Where("company_id = ?", companyID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.ClientID != 0 {
		stmt = stmt.Where("client_id = ?", filter.ClientID)
	}
	if filter.ContractID != 0 {
		stmt = stmt.Where("contract_id = ?", filter.ContractID)
	}
	stmt, err := pagination.Apply(stmt, "", page)
	if err != nil {
		return nil, err
	}

	var payments []*domain.Payment
	if err := stmt.Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// ExistsForPeriod matches either the stored period or a due date inside the month, so
// rows created before periods were recorded still count.
func (r *repo) ExistsForPeriod(ctx context.Context, db *gorm.DB, q domain.PeriodQuery) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM payment_transactions
		 WHERE company_id = ?
		   AND client_id = ?
		   AND contract_id = ?
		   AND status IN (?, ?, ?)
		   AND (period = ? OR (due_date >= ? AND due_date < ?))`,
		q.CompanyID,
		q.ClientID,
		q.ContractID,
		domain.StatusPending,
		domain.StatusOverdue,
		domain.StatusPaid,
		q.Period,
		q.MonthStart,
		q.MonthEnd,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) ListPaidWithActiveContract(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT p.id, p.company_id, p.client_id, p.contract_id, p.amount, p.due_date, p.period, p.status,
			p.payment_gateway, p.external_id, p.paid_at, p.transaction_type, p.description, p.checkout_url,
			p.metadata, p.created_at, p.updated_at
		 FROM payment_transactions p
		 JOIN contracts c ON c.id = p.contract_id AND c.company_id = p.company_id
		 WHERE p.company_id = ?
		   AND p.status = ?
		   AND c.status = 'active'
		 ORDER BY p.due_date ASC, p.id ASC`,
		companyID,
		domain.StatusPaid,
	).Scan(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) ListOverdueCandidates(ctx context.Context, db *gorm.DB, companyID snowflake.ID, asOf time.Time, limit int) ([]*domain.Payment, error) {
	if limit <= 0 {
		limit = 500
	}
	var payments []*domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+`
		 FROM payment_transactions
		 WHERE company_id = ?
		   AND status = ?
		   AND due_date IS NOT NULL
		   AND due_date < ?
		 ORDER BY due_date ASC, id ASC
		 LIMIT ?`,
		companyID,
		domain.StatusPending,
		asOf,
		limit,
	).Scan(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, payment *domain.Payment, from domain.Status) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_transactions SET status = ?, paid_at = ?, updated_at = ?
		 WHERE company_id = ? AND id = ? AND status = ?`,
		payment.Status,
		payment.PaidAt,
		payment.UpdatedAt,
		payment.CompanyID,
		payment.ID,
		from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) UpdateGatewayLink(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_transactions SET payment_gateway = ?, external_id = ?, checkout_url = ?, updated_at = ?
		 WHERE company_id = ? AND id = ?`,
		payment.PaymentGateway,
		payment.ExternalID,
		payment.CheckoutURL,
		payment.UpdatedAt,
		payment.CompanyID,
		payment.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM payment_transactions WHERE company_id = ? AND id = ?`,
		companyID,
		id,
	).Error
}
