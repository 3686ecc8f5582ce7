package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/vehicleguard/internal/apikey/domain"
	"github.com/smallbiznis/vehicleguard/internal/authorization"
	"github.com/smallbiznis/vehicleguard/internal/companycontext"
	gatewaydomain "github.com/smallbiznis/vehicleguard/internal/gateway/domain"
	notificationdomain "github.com/smallbiznis/vehicleguard/internal/notification/domain"
	paymentdomain "github.com/smallbiznis/vehicleguard/internal/payment/domain"
	"github.com/smallbiznis/vehicleguard/internal/payment/webhook"
	"github.com/smallbiznis/vehicleguard/internal/paymentevents"
	eventdomain "github.com/smallbiznis/vehicleguard/internal/paymentevents/domain"
	"go.uber.org/zap/zaptest"
)

const (
	testCompanyID = snowflake.ID(100)
	testKeyID     = snowflake.ID(300)
	testRawKey    = "vg_abc_0123456789"
)

type fakeAPIKeys struct {
	apikeydomain.Service

	calls int
	role  apikeydomain.Role
}

func (f *fakeAPIKeys) Authenticate(_ context.Context, raw string) (*apikeydomain.APIKey, error) {
	f.calls++
	if raw != testRawKey {
		return nil, apikeydomain.ErrUnauthorized
	}
	role := f.role
	if role == "" {
		role = apikeydomain.RoleAdmin
	}
	return &apikeydomain.APIKey{ID: testKeyID, CompanyID: testCompanyID, Role: role, IsActive: true}, nil
}

type fakeAuthz struct {
	deny    map[string]bool
	actor   string
	company string
}

func (f *fakeAuthz) Authorize(_ context.Context, actor string, companyID string, _ string, action string) error {
	f.actor = actor
	f.company = companyID
	if f.deny[action] {
		return authorization.ErrForbidden
	}
	return nil
}

type fakePayments struct {
	paymentdomain.Service

	updateErr   error
	lastCompany snowflake.ID
	lastPayment snowflake.ID
}

func (f *fakePayments) GetByID(ctx context.Context, id string) (paymentdomain.Payment, error) {
	companyID, _ := companycontext.CompanyIDFromContext(ctx)
	if id != "55" {
		return paymentdomain.Payment{}, paymentdomain.ErrNotFound
	}
	return paymentdomain.Payment{ID: 55, CompanyID: companyID, Status: paymentdomain.StatusPending}, nil
}

func (f *fakePayments) UpdateStatus(context.Context, string, paymentdomain.UpdateStatusRequest) (paymentdomain.StatusChange, error) {
	return paymentdomain.StatusChange{}, f.updateErr
}

func (f *fakePayments) GenerateNextCharge(_ context.Context, companyID, paymentID snowflake.ID) (paymentdomain.GenerateResult, error) {
	f.lastCompany = companyID
	f.lastPayment = paymentID
	return paymentdomain.Skipped("payment not paid"), nil
}

func (f *fakePayments) Backfill(_ context.Context, companyID snowflake.ID) (paymentdomain.BackfillSummary, error) {
	f.lastCompany = companyID
	return paymentdomain.BackfillSummary{Processed: 5, Generated: 2, AlreadyExists: 2}, nil
}

func (f *fakePayments) GenerateReceipt(_ context.Context, _, id snowflake.ID) ([]byte, error) {
	if id != 55 {
		return nil, paymentdomain.ErrReceiptUnavailable
	}
	return []byte("%PDF-1.4"), nil
}

type fakeNotifications struct {
	notificationdomain.Service

	skipped []snowflake.ID
}

func (f *fakeNotifications) Skip(_ context.Context, companyID, id snowflake.ID) (notificationdomain.Notification, error) {
	f.skipped = append(f.skipped, id)
	return notificationdomain.Notification{ID: id, CompanyID: companyID, Status: notificationdomain.StatusSkipped}, nil
}

type fakeReceiver struct {
	gateway  string
	delivery gatewaydomain.Delivery
}

func (f *fakeReceiver) Receive(_ context.Context, gatewayName string, delivery gatewaydomain.Delivery) []webhook.ItemResult {
	f.gateway = gatewayName
	f.delivery = delivery
	return []webhook.ItemResult{{Outcome: webhook.OutcomeError, Error: "credential_decrypt_failed"}}
}

type testServer struct {
	srv           *Server
	apiKeys       *fakeAPIKeys
	authz         *fakeAuthz
	payments      *fakePayments
	notifications *fakeNotifications
	receiver      *fakeReceiver
	hub           *paymentevents.Hub
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	ts := testServer{
		apiKeys:       &fakeAPIKeys{},
		authz:         &fakeAuthz{deny: map[string]bool{}},
		payments:      &fakePayments{},
		notifications: &fakeNotifications{},
		receiver:      &fakeReceiver{},
		hub:           paymentevents.NewHub(),
	}
	ts.srv = &Server{
		engine:          engine,
		log:             zaptest.NewLogger(t),
		apiKeySvc:       ts.apiKeys,
		authzSvc:        ts.authz,
		paymentSvc:      ts.payments,
		notificationSvc: ts.notifications,
		webhookSvc:      ts.receiver,
		paymentEvents:   ts.hub,
	}
	ts.srv.RegisterRoutes()
	return ts
}

func (ts testServer) do(req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(resp, req)
	return resp
}

func authed(method, path, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testRawKey)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, resp.Body.String())
	}
	return body.Error
}

func TestWebhookAlwaysAcknowledges(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/MercadoPago?data.id=123&type=payment", bytes.NewBufferString(`{"type":"payment","data":{"id":"123"}}`))
	req.Header.Set("Content-Type", "application/json")
	resp := ts.do(req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if strings.TrimSpace(resp.Body.String()) != `{"received":true}` {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
	if ts.receiver.gateway != "mercadopago" {
		t.Fatalf("expected normalized gateway, got %q", ts.receiver.gateway)
	}
	if !strings.Contains(string(ts.receiver.delivery.Body), `"id":"123"`) {
		t.Fatalf("expected body to reach receiver, got %s", ts.receiver.delivery.Body)
	}
	if ts.receiver.delivery.Query.Get("data.id") != "123" {
		t.Fatalf("expected query to reach receiver")
	}
	if ts.apiKeys.calls != 0 {
		t.Fatal("webhooks must not require an api key")
	}
}

func TestAPIKeyRequired(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(httptest.NewRequest(http.MethodGet, "/api/payments/55", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", resp.Code)
	}

	req := authed(http.MethodGet, "/api/payments/55", "")
	req.Header.Set("Authorization", "Bearer vg_wrong")
	if resp := ts.do(req); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown key, got %d", resp.Code)
	}

	req = authed(http.MethodGet, "/api/payments/55", "")
	req.Header.Set(HeaderCompany, "999")
	calls := ts.apiKeys.calls
	if resp := ts.do(req); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when company header is supplied, got %d", resp.Code)
	}
	if ts.apiKeys.calls != calls {
		t.Fatal("expected company header to be rejected before authentication")
	}
}

func TestAuthenticatedRequestIsScopedToKeyCompany(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(authed(http.MethodGet, "/api/payments/55", ""))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.Code, resp.Body.String())
	}

	var body struct {
		Data paymentdomain.Payment `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.CompanyID != testCompanyID {
		t.Fatalf("expected company %s, got %s", testCompanyID, body.Data.CompanyID)
	}
	if ts.authz.actor != "api_key:"+testKeyID.String() || ts.authz.company != testCompanyID.String() {
		t.Fatalf("unexpected authorization subject %q/%q", ts.authz.actor, ts.authz.company)
	}
}

func TestAuthorizationDenied(t *testing.T) {
	ts := newTestServer(t)
	ts.authz.deny[authorization.ActionPaymentDelete] = true

	resp := ts.do(authed(http.MethodDelete, "/api/payments/55", ""))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
	if payload := decodeError(t, resp); payload.Type != "forbidden" {
		t.Fatalf("expected forbidden type, got %q", payload.Type)
	}
}

func TestUpdatePaymentStatusMapsDomainErrors(t *testing.T) {
	ts := newTestServer(t)

	ts.payments.updateErr = paymentdomain.ErrPaidImmutable
	resp := ts.do(authed(http.MethodPatch, "/api/payments/55/status", `{"status":"pending"}`))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
	if payload := decodeError(t, resp); payload.Message != "paid_payment_immutable" {
		t.Fatalf("unexpected message %q", payload.Message)
	}

	ts.payments.updateErr = paymentdomain.ErrInvalidStatus
	resp = ts.do(authed(http.MethodPatch, "/api/payments/55/status", `{"status":"nope"}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	payload := decodeError(t, resp)
	if len(payload.Errors) != 1 || payload.Errors[0].Field != "status" {
		t.Fatalf("unexpected validation errors %+v", payload.Errors)
	}
}

func TestGenerateNextChargeUsesKeyCompany(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(authed(http.MethodPost, "/api/payments/55/next-charge", ""))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ts.payments.lastCompany != testCompanyID || ts.payments.lastPayment != 55 {
		t.Fatalf("unexpected generator call %s/%s", ts.payments.lastCompany, ts.payments.lastPayment)
	}
	if !strings.Contains(resp.Body.String(), `"created":false`) {
		t.Fatalf("expected skip result, got %s", resp.Body.String())
	}

	resp = ts.do(authed(http.MethodPost, "/api/payments/abc/next-charge", ""))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", resp.Code)
	}
}

func TestBackfillRoute(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(authed(http.MethodPost, "/api/payments/backfill", ""))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body struct {
		Data paymentdomain.BackfillSummary `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Processed != 5 || body.Data.Generated != 2 || body.Data.AlreadyExists != 2 {
		t.Fatalf("unexpected summary %+v", body.Data)
	}
}

func TestReceiptRoute(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(authed(http.MethodGet, "/api/payments/55/receipt", ""))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("unexpected content type %q", got)
	}

	resp = ts.do(authed(http.MethodGet, "/api/payments/56/receipt", ""))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for unpaid receipt, got %d", resp.Code)
	}
}

func TestSkipNotification(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(authed(http.MethodPost, "/api/notifications/77/skip", ""))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if len(ts.notifications.skipped) != 1 || ts.notifications.skipped[0] != 77 {
		t.Fatalf("unexpected skip calls %v", ts.notifications.skipped)
	}
}

func TestPaymentStreamWritesBacklog(t *testing.T) {
	ts := newTestServer(t)

	keepAlive, _, err := ts.hub.Subscribe(testCompanyID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer keepAlive.Close()
	ts.hub.Publish(testCompanyID, eventdomain.Message{
		ID:        "1",
		CompanyID: testCompanyID.String(),
		PaymentID: "55",
		Type:      eventdomain.EventPaymentStatusChanged,
		CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := authed(http.MethodGet, "/api/payments/stream", "").WithContext(ctx)
	resp := ts.do(req)

	if got := resp.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}
	body := resp.Body.String()
	if !strings.HasPrefix(body, "retry: 2000") {
		t.Fatalf("expected retry preamble, got %q", body)
	}
	if !strings.Contains(body, "event:payment.status_changed") || !strings.Contains(body, `"payment_id":"55"`) {
		t.Fatalf("expected backlog event, got %q", body)
	}
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{name: "wrapped not found", err: errors.Join(errors.New("load"), paymentdomain.ErrNotFound), status: http.StatusNotFound, kind: "not_found"},
		{name: "envelope", err: &gatewaydomain.ValidationError{Fields: map[string]string{"action": "required"}}, status: http.StatusBadRequest, kind: "validation_error"},
		{name: "upstream", err: &gatewaydomain.UpstreamError{Gateway: gatewaydomain.Asaas, StatusCode: 500}, status: http.StatusBadGateway, kind: "bad_gateway"},
		{name: "company mismatch", err: gatewaydomain.ErrCompanyMismatch, status: http.StatusForbidden, kind: "forbidden"},
		{name: "rate limited", err: notificationdomain.ErrRateLimited, status: http.StatusTooManyRequests, kind: "rate_limited"},
		{name: "already scheduled", err: notificationdomain.ErrAlreadyScheduled, status: http.StatusConflict, kind: "conflict"},
		{name: "period taken", err: paymentdomain.ErrPeriodConflict, status: http.StatusConflict, kind: "conflict"},
		{name: "status moved", err: paymentdomain.ErrStatusConflict, status: http.StatusConflict, kind: "conflict"},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError, kind: "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			if status != tc.status || payload.Type != tc.kind {
				t.Fatalf("expected %d/%s, got %d/%s", tc.status, tc.kind, status, payload.Type)
			}
		})
	}
}
