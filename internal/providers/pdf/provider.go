package pdf

import (
	"context"

	"go.uber.org/fx"
)

type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) ([]byte, error)
}

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)
