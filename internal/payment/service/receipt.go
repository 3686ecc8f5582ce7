package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/internal/payment/domain"
	"github.com/smallbiznis/vehicleguard/internal/providers/pdf"
)

const receiptDateLayout = "02/01/2006"

// GenerateReceipt renders a PDF receipt for a paid charge.
func (s *Service) GenerateReceipt(ctx context.Context, companyID, id snowflake.ID) ([]byte, error) {
	if s.pdf == nil {
		return nil, domain.ErrReceiptUnavailable
	}
	payment, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.StatusPaid {
		return nil, domain.ErrReceiptUnavailable
	}

	company, err := s.companySvc.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	client, err := s.clientRepo.FindByID(ctx, s.db, companyID, payment.ClientID)
	if err != nil {
		return nil, err
	}

	data := pdf.ReceiptData{
		CompanyName:   company.Name,
		ReceiptNumber: payment.ID.String(),
		Description:   "Mensalidade de rastreamento veicular",
		Period:        derefString(payment.Period),
		Amount:        domain.FormatBRL(payment.Amount),
		Gateway:       derefString(payment.PaymentGateway),
		Reference:     derefString(payment.ExternalID),
	}
	if client != nil {
		data.ClientName = client.Name
		data.ClientEmail = derefString(client.Email)
	}
	if desc := strings.TrimSpace(derefString(payment.Description)); desc != "" {
		data.Description = desc
	}
	if payment.DueDate != nil {
		data.DueDate = payment.DueDate.Format(receiptDateLayout)
	}
	if payment.PaidAt != nil {
		data.DatePaid = payment.PaidAt.Format(receiptDateLayout)
	}

	return s.pdf.GenerateReceipt(ctx, data)
}
