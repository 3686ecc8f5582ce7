package webhook

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditrepo "github.com/smallbiznis/vehicleguard/internal/audit/repository"
	auditservice "github.com/smallbiznis/vehicleguard/internal/audit/service"
	"github.com/smallbiznis/vehicleguard/internal/clock"
	gatewaydomain "github.com/smallbiznis/vehicleguard/internal/gateway/domain"
	paymentdomain "github.com/smallbiznis/vehicleguard/internal/payment/domain"
	"github.com/smallbiznis/vehicleguard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var companyID = snowflake.ID(77)

type fakeAdapter struct {
	verifyErr error
	charge    gatewaydomain.Charge
	resolved  string
}

func (a *fakeAdapter) Verify(gatewaydomain.Delivery) error { return a.verifyErr }

func (a *fakeAdapter) CreateCharge(context.Context, gatewaydomain.CreateChargeRequest) (gatewaydomain.Charge, error) {
	return gatewaydomain.Charge{}, gatewaydomain.ErrUnsupported
}

func (a *fakeAdapter) GetCharge(_ context.Context, id string) (gatewaydomain.Charge, error) {
	charge := a.charge
	charge.ExternalID = id
	return charge, nil
}

func (a *fakeAdapter) CancelCharge(context.Context, string) (gatewaydomain.Charge, error) {
	return gatewaydomain.Charge{}, gatewaydomain.ErrUnsupported
}

func (a *fakeAdapter) ResolveNotification(context.Context, string) (string, error) {
	return a.resolved, nil
}

type fakeGateways struct {
	gatewaydomain.Service
	adapter       *fakeAdapter
	notifications []gatewaydomain.Notification
	parseErr      error
	adapterErr    error
}

func (g *fakeGateways) ParseWebhook(string, gatewaydomain.Delivery) ([]gatewaydomain.Notification, error) {
	return g.notifications, g.parseErr
}

func (g *fakeGateways) Adapter(context.Context, snowflake.ID, gatewaydomain.Gateway) (gatewaydomain.Adapter, error) {
	if g.adapterErr != nil {
		return nil, g.adapterErr
	}
	return g.adapter, nil
}

type fakePayments struct {
	paymentdomain.Service
	payments  map[string]paymentdomain.Payment
	generated []snowflake.ID
}

func (p *fakePayments) FindByExternalID(_ context.Context, _, externalID string) (*paymentdomain.Payment, error) {
	payment, ok := p.payments[externalID]
	if !ok {
		return nil, nil
	}
	return &payment, nil
}

func (p *fakePayments) ApplyGatewaySignal(_ context.Context, _, id snowflake.ID, signal paymentdomain.Signal) (paymentdomain.StatusChange, error) {
	for key, payment := range p.payments {
		if payment.ID != id {
			continue
		}
		next, changed := paymentdomain.NextStatus(payment.Status, signal)
		change := paymentdomain.StatusChange{
			Previous:  payment.Status,
			Changed:   changed,
			Preserved: !changed && paymentdomain.Preserved(payment.Status, signal),
		}
		payment.Status = next
		p.payments[key] = payment
		change.Payment = payment
		return change, nil
	}
	return paymentdomain.StatusChange{}, paymentdomain.ErrNotFound
}

func (p *fakePayments) GenerateNextCharge(_ context.Context, _, id snowflake.ID) (paymentdomain.GenerateResult, error) {
	p.generated = append(p.generated, id)
	return paymentdomain.GenerateResult{Created: true, Outcome: paymentdomain.OutcomeCreated}, nil
}

type recordingNotifier struct {
	paid []snowflake.ID
}

func (n *recordingNotifier) NotifyPaid(_ context.Context, payment paymentdomain.Payment) error {
	n.paid = append(n.paid, payment.ID)
	return nil
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	gateways *fakeGateways
	payments *fakePayments
	notifier *recordingNotifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	log := zaptest.NewLogger(t)

	external := "pay_123"
	gateways := &fakeGateways{adapter: &fakeAdapter{
		charge: gatewaydomain.Charge{RawStatus: "RECEIVED", Signal: paymentdomain.SignalApproved},
	}}
	payments := &fakePayments{payments: map[string]paymentdomain.Payment{
		external: {ID: 900, CompanyID: companyID, Status: paymentdomain.StatusPending, ExternalID: &external},
	}}
	notifier := &recordingNotifier{}

	svc := NewService(Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      clock.NewFakeClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)),
		PaymentSvc: payments,
		GatewaySvc: gateways,
		AuditSvc: auditservice.NewService(auditservice.Params{
			DB:    db,
			Log:   log,
			GenID: node,
			Repo:  auditrepo.Provide(),
		}),
		Notifier: notifier,
	})
	return fixture{svc: svc, db: db, gateways: gateways, payments: payments, notifier: notifier}
}

func (f fixture) deliveries(t *testing.T) []Delivery {
	t.Helper()
	var rows []Delivery
	require.NoError(t, f.db.Raw(`SELECT * FROM payment_webhook_deliveries ORDER BY id`).Scan(&rows).Error)
	return rows
}

func TestReceiveAppliesPaidSignal(t *testing.T) {
	f := newFixture(t)
	f.gateways.notifications = []gatewaydomain.Notification{{ExternalID: "pay_123", Event: "PAYMENT_RECEIVED"}}

	results := f.svc.Receive(context.Background(), "Asaas", gatewaydomain.Delivery{Body: []byte(`{"event":"PAYMENT_RECEIVED"}`)})

	require.Len(t, results, 1)
	assert.Equal(t, OutcomeApplied, results[0].Outcome)
	assert.Equal(t, "pending", results[0].PreviousStatus)
	assert.Equal(t, "paid", results[0].ResolvedStatus)
	assert.NotEmpty(t, results[0].DeliveryID)
	assert.Equal(t, []snowflake.ID{900}, f.payments.generated)
	assert.Equal(t, []snowflake.ID{900}, f.notifier.paid)

	rows := f.deliveries(t)
	require.Len(t, rows, 1)
	assert.Equal(t, "asaas", rows[0].Gateway)
	assert.Equal(t, OutcomeApplied, rows[0].Outcome)
	require.NotNil(t, rows[0].CompanyID)
	assert.Equal(t, companyID, *rows[0].CompanyID)

	var audits int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(1) FROM audit_logs WHERE action = ? AND actor_type = ?`,
		"payment.webhook.received", "gateway").Scan(&audits).Error)
	assert.Equal(t, int64(1), audits)
}

func TestReceiveKeepsPaidAgainstLateSignal(t *testing.T) {
	f := newFixture(t)
	payment := f.payments.payments["pay_123"]
	payment.Status = paymentdomain.StatusPaid
	f.payments.payments["pay_123"] = payment
	f.gateways.adapter.charge = gatewaydomain.Charge{RawStatus: "OVERDUE", Signal: paymentdomain.SignalOverdue}
	f.gateways.notifications = []gatewaydomain.Notification{{ExternalID: "pay_123"}}

	results := f.svc.Receive(context.Background(), "asaas", gatewaydomain.Delivery{})

	require.Len(t, results, 1)
	assert.Equal(t, OutcomePreserved, results[0].Outcome)
	assert.Equal(t, "paid", results[0].ResolvedStatus)
	assert.Empty(t, f.payments.generated)
	assert.Empty(t, f.notifier.paid)
}

func TestReceiveRecordsFailures(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(f fixture)
		outcome Outcome
	}{
		{
			name: "unknown charge",
			mutate: func(f fixture) {
				f.gateways.notifications = []gatewaydomain.Notification{{ExternalID: "missing"}}
			},
			outcome: OutcomeNotFound,
		},
		{
			name: "bad signature",
			mutate: func(f fixture) {
				f.gateways.notifications = []gatewaydomain.Notification{{ExternalID: "pay_123"}}
				f.gateways.adapter.verifyErr = gatewaydomain.ErrInvalidSignature
			},
			outcome: OutcomeInvalidSignature,
		},
		{
			name: "credentials",
			mutate: func(f fixture) {
				f.gateways.notifications = []gatewaydomain.Notification{{ExternalID: "pay_123"}}
				f.gateways.adapterErr = errors.New("resolve asaas credentials: not_found")
			},
			outcome: OutcomeCredentialsError,
		},
		{
			name: "unknown gateway",
			mutate: func(f fixture) {
				f.gateways.parseErr = gatewaydomain.ErrUnknownGateway
			},
			outcome: OutcomeUnknownGateway,
		},
		{
			name: "ignored event",
			mutate: func(f fixture) {
				f.gateways.parseErr = gatewaydomain.ErrEventIgnored
			},
			outcome: OutcomeIgnored,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tc.mutate(f)

			results := f.svc.Receive(context.Background(), "asaas", gatewaydomain.Delivery{})

			require.Len(t, results, 1)
			assert.Equal(t, tc.outcome, results[0].Outcome)
			assert.Equal(t, paymentdomain.StatusPending, f.payments.payments["pay_123"].Status)
			rows := f.deliveries(t)
			require.Len(t, rows, 1)
			assert.Equal(t, tc.outcome, rows[0].Outcome)
		})
	}
}

func TestReceiveResolvesNotificationToken(t *testing.T) {
	f := newFixture(t)
	f.gateways.adapter.resolved = "pay_123"
	f.gateways.notifications = []gatewaydomain.Notification{{Token: "tok_1"}}

	query := url.Values{}
	query.Set("company_id", companyID.String())
	results := f.svc.Receive(context.Background(), "gerencianet", gatewaydomain.Delivery{Query: query})

	require.Len(t, results, 1)
	assert.Equal(t, "pay_123", results[0].ExternalID)
	assert.Equal(t, OutcomeApplied, results[0].Outcome)
}

func TestReceiveTokenWithoutCompany(t *testing.T) {
	f := newFixture(t)
	f.gateways.notifications = []gatewaydomain.Notification{{Token: "tok_1"}}

	results := f.svc.Receive(context.Background(), "gerencianet", gatewaydomain.Delivery{})

	require.Len(t, results, 1)
	assert.Equal(t, OutcomeInvalidPayload, results[0].Outcome)
}

func TestReceiveHandlesBatches(t *testing.T) {
	f := newFixture(t)
	f.gateways.notifications = []gatewaydomain.Notification{{ExternalID: "pay_123"}, {ExternalID: "other"}}

	results := f.svc.Receive(context.Background(), "inter", gatewaydomain.Delivery{})

	require.Len(t, results, 2)
	assert.Equal(t, OutcomeApplied, results[0].Outcome)
	assert.Equal(t, OutcomeNotFound, results[1].Outcome)
	assert.NotEqual(t, results[0].DeliveryID, results[1].DeliveryID)
	assert.Len(t, f.deliveries(t), 2)
}
