package pdf

import (
	"context"
	"errors"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// ReceiptData is pre-formatted; the renderer does no currency or date handling.
type ReceiptData struct {
	CompanyName   string
	ClientName    string
	ClientEmail   string
	ReceiptNumber string
	Description   string
	Period        string
	DueDate       string
	DatePaid      string
	Amount        string
	Gateway       string
	Reference     string
}

type MarotoProvider struct{}

func New() Provider {
	return &MarotoProvider{}
}

func (p *MarotoProvider) GenerateReceipt(ctx context.Context, receipt ReceiptData) ([]byte, error) {
	if receipt.ReceiptNumber == "" || receipt.Amount == "" {
		return nil, errors.New("receipt number and amount are required")
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Página {current} de {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Recibo de pagamento", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, receipt.CompanyName, props.Text{
			Size:  11,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(24,
		col.New(6).Add(
			text.New("Recibo nº "+receipt.ReceiptNumber, props.Text{Top: 0}),
			text.New("Pago em: "+receipt.DatePaid, props.Text{Top: 5}),
			text.New("Vencimento: "+orDash(receipt.DueDate), props.Text{Top: 10}),
			text.New("Competência: "+orDash(receipt.Period), props.Text{Top: 15}),
		),
		col.New(6).Add(
			text.New("Pagador", props.Text{Style: fontstyle.Bold}),
			text.New(receipt.ClientName, props.Text{Top: 5}),
			text.New(receipt.ClientEmail, props.Text{Top: 10}),
		),
	)

	m.AddRow(4, line.NewCol(12))

	m.AddRow(10,
		text.NewCol(8, "Descrição", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Valor", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(12,
		text.NewCol(8, orDash(receipt.Description), props.Text{Size: 9}),
		text.NewCol(4, receipt.Amount, props.Text{Size: 9, Align: align.Right}),
	)

	m.AddRow(4, line.NewCol(12))

	m.AddRow(12,
		col.New(6),
		text.NewCol(3, "Total pago", props.Text{Style: fontstyle.Bold, Size: 10}),
		text.NewCol(3, receipt.Amount, props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right}),
	)

	if receipt.Gateway != "" {
		m.AddRow(10,
			text.NewCol(12, "Processado por "+receipt.Gateway+" (ref. "+orDash(receipt.Reference)+")", props.Text{
				Size: 8,
				Top:  2,
			}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
