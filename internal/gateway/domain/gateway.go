package domain

import "strings"

type Gateway string

const (
	MercadoPago Gateway = "mercadopago"
	Asaas       Gateway = "asaas"
	Inter       Gateway = "inter"
	Gerencianet Gateway = "gerencianet"
)

var All = []Gateway{MercadoPago, Asaas, Inter, Gerencianet}

func Parse(value string) (Gateway, bool) {
	candidate := Gateway(strings.ToLower(strings.TrimSpace(value)))
	for _, gw := range All {
		if gw == candidate {
			return gw, true
		}
	}
	return "", false
}

func (g Gateway) String() string { return string(g) }
