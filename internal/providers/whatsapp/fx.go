package whatsapp

import (
	"net/http"

	"go.uber.org/fx"
)

type Params struct {
	fx.In

	HTTPClient *http.Client `name:"gateway_http_client" optional:"true"`
}

var Module = fx.Module("providers.whatsapp",
	fx.Provide(func(p Params) Provider { return NewEvolution(p.HTTPClient) }),
)
