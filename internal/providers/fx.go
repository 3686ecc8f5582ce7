package providers

import (
	"github.com/smallbiznis/vehicleguard/internal/providers/pdf"
	"github.com/smallbiznis/vehicleguard/internal/providers/whatsapp"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	whatsapp.Module,
	pdf.Module,
)
