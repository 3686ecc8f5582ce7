package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/smallbiznis/vehicleguard/internal/gateway/rest"
)

// SendError carries the raw Evolution response so operators can see why a message failed.
type SendError struct {
	StatusCode int
	Body       string
}

func (e *SendError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("evolution: status %d", e.StatusCode)
	}
	return fmt.Sprintf("evolution: status %d: %s", e.StatusCode, e.Body)
}

type EvolutionProvider struct {
	httpClient *http.Client
}

func NewEvolution(httpClient *http.Client) *EvolutionProvider {
	return &EvolutionProvider{httpClient: httpClient}
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type sendTextResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
	Status string `json:"status"`
}

func (p *EvolutionProvider) SendText(ctx context.Context, instance Instance, msg Message) (Receipt, error) {
	if err := instance.Validate(); err != nil {
		return Receipt{}, err
	}
	number, err := NormalizeNumber(msg.Number)
	if err != nil {
		return Receipt{}, err
	}

	client := rest.NewClient(instance.URL, p.httpClient)
	headers := http.Header{}
	headers.Set("apikey", instance.APIKey)

	var raw json.RawMessage
	path := "/message/sendText/" + url.PathEscape(instance.Name)
	if err := client.Do(ctx, http.MethodPost, path, headers, sendTextRequest{Number: number, Text: msg.Text}, &raw); err != nil {
		var statusErr *rest.StatusError
		if errors.As(err, &statusErr) {
			return Receipt{}, &SendError{StatusCode: statusErr.StatusCode, Body: statusErr.Body}
		}
		return Receipt{}, fmt.Errorf("evolution: %w", err)
	}

	receipt := Receipt{Raw: string(raw)}
	var decoded sendTextResponse
	if len(raw) > 0 && json.Unmarshal(raw, &decoded) == nil {
		receipt.MessageID = decoded.Key.ID
		receipt.Status = decoded.Status
	}
	return receipt, nil
}
