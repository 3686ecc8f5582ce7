package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditrepo "github.com/smallbiznis/vehicleguard/internal/audit/repository"
	auditservice "github.com/smallbiznis/vehicleguard/internal/audit/service"
	clientdomain "github.com/smallbiznis/vehicleguard/internal/client/domain"
	clientrepo "github.com/smallbiznis/vehicleguard/internal/client/repository"
	"github.com/smallbiznis/vehicleguard/internal/clock"
	companydomain "github.com/smallbiznis/vehicleguard/internal/company/domain"
	companyrepo "github.com/smallbiznis/vehicleguard/internal/company/repository"
	companyservice "github.com/smallbiznis/vehicleguard/internal/company/service"
	"github.com/smallbiznis/vehicleguard/internal/companycontext"
	"github.com/smallbiznis/vehicleguard/internal/config"
	contractdomain "github.com/smallbiznis/vehicleguard/internal/contract/domain"
	contractrepo "github.com/smallbiznis/vehicleguard/internal/contract/repository"
	"github.com/smallbiznis/vehicleguard/internal/payment/domain"
	"github.com/smallbiznis/vehicleguard/internal/payment/repository"
	eventrepo "github.com/smallbiznis/vehicleguard/internal/paymentevents/repository"
	"github.com/smallbiznis/vehicleguard/internal/providers/pdf"
	"github.com/smallbiznis/vehicleguard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var companyID = snowflake.ID(42)

type fixture struct {
	svc   *Service
	db    *gorm.DB
	node  *snowflake.Node
	ctx   context.Context
	clock *clock.FakeClock
	repo  domain.Repository
}

func newFixture(t *testing.T, repo domain.Repository) fixture {
	t.Helper()
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	log := zaptest.NewLogger(t)
	ctx := companycontext.WithCompanyID(context.Background(), companyID)
	fake := clock.NewFakeClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))

	now := time.Now().UTC()
	require.NoError(t, companyrepo.Provide().Insert(ctx, db, &companydomain.Company{
		ID:        companyID,
		Name:      "Rastreio Sul",
		Slug:      "rastreio-sul",
		CreatedAt: now,
		UpdatedAt: now,
	}))

	if repo == nil {
		repo = repository.Provide()
	}
	companySvc := companyservice.New(companyservice.Params{
		DB:     db,
		Log:    log,
		GenID:  node,
		Repo:   companyrepo.Provide(),
		Config: config.Config{AppBaseURL: "https://app.vehicleguard.test"},
	})
	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  auditrepo.Provide(),
	})

	svc := New(Params{
		DB:           db,
		Log:          log,
		GenID:        node,
		Clock:        fake,
		Repo:         repo,
		EventRepo:    eventrepo.Provide(),
		ClientRepo:   clientrepo.Provide(),
		ContractRepo: contractrepo.Provide(),
		CompanySvc:   companySvc,
		AuditSvc:     auditSvc,
		PDF:          pdf.New(),
	}).(*Service)

	return fixture{svc: svc, db: db, node: node, ctx: ctx, clock: fake, repo: repo}
}

func (f fixture) client(t *testing.T, name string) clientdomain.Client {
	t.Helper()
	now := time.Now().UTC()
	email := "financeiro@example.com"
	client := clientdomain.Client{
		ID:        f.node.Generate(),
		CompanyID: companyID,
		Name:      name,
		Email:     &email,
		Status:    clientdomain.StatusActive,
		Metadata:  datatypes.JSONMap{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, clientrepo.Provide().Insert(f.ctx, f.db, &client))
	return client
}

func (f fixture) contract(t *testing.T, clientID snowflake.ID, value int64, end *time.Time) contractdomain.Contract {
	t.Helper()
	now := time.Now().UTC()
	contract := contractdomain.Contract{
		ID:           f.node.Generate(),
		CompanyID:    companyID,
		ClientID:     clientID,
		Status:       contractdomain.StatusActive,
		MonthlyValue: value,
		StartDate:    date(2024, 1, 1),
		EndDate:      end,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, contractrepo.Provide().Insert(f.ctx, f.db, &contract))
	return contract
}

func (f fixture) payment(t *testing.T, clientID snowflake.ID, contractID *snowflake.ID, status domain.Status, due time.Time) domain.Payment {
	t.Helper()
	now := time.Now().UTC()
	payment := domain.Payment{
		ID:              f.node.Generate(),
		CompanyID:       companyID,
		ClientID:        clientID,
		ContractID:      contractID,
		Amount:          12990,
		DueDate:         &due,
		Status:          status,
		TransactionType: domain.TransactionTypeRecurring,
		Metadata:        datatypes.JSONMap{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if contractID != nil {
		period := domain.Period(due)
		payment.Period = &period
	}
	if status == domain.StatusPaid {
		payment.PaidAt = &now
	}
	require.NoError(t, repository.Provide().Insert(f.ctx, f.db, &payment))
	return payment
}

func (f fixture) countPayments(t *testing.T, contractID snowflake.ID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM payment_transactions WHERE contract_id = ?`, contractID).Scan(&count).Error)
	return count
}

func (f fixture) clearDueDate(t *testing.T, paymentID snowflake.ID) {
	t.Helper()
	require.NoError(t, f.db.Exec(`UPDATE payment_transactions SET due_date = NULL, period = NULL WHERE id = ?`, paymentID).Error)
}

func (f fixture) statusEvents(t *testing.T, paymentID snowflake.ID) []string {
	t.Helper()
	var payloads []string
	require.NoError(t, f.db.Raw(
		`SELECT payload FROM payment_events WHERE payment_id = ? AND event_type = ? ORDER BY id`,
		paymentID, "payment.status_changed",
	).Scan(&payloads).Error)
	return payloads
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateAssignsCheckoutURL(t *testing.T) {
	f := newFixture(t, nil)
	client := f.client(t, "Frota Norte")

	_, err := f.svc.Create(f.ctx, domain.CreatePaymentRequest{ClientID: client.ID.String(), Amount: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	gateway := "stripe"
	_, err = f.svc.Create(f.ctx, domain.CreatePaymentRequest{ClientID: client.ID.String(), Amount: 100, PaymentGateway: &gateway})
	assert.ErrorIs(t, err, domain.ErrInvalidGateway)

	due := "2024-04-05"
	payment, err := f.svc.Create(f.ctx, domain.CreatePaymentRequest{ClientID: client.ID.String(), Amount: 15000, DueDate: &due})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, payment.Status)
	assert.Equal(t, domain.TransactionTypeCharge, payment.TransactionType)
	require.NotNil(t, payment.CheckoutURL)
	assert.Equal(t, "https://app.vehicleguard.test/checkout/"+payment.ID.String(), *payment.CheckoutURL)

	var events int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM payment_events WHERE payment_id = ?`, payment.ID).Scan(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestGenerateNextChargeIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	client := f.client(t, "Frota Norte")
	contract := f.contract(t, client.ID, 14990, nil)
	paid := f.payment(t, client.ID, &contract.ID, domain.StatusPaid, date(2024, 1, 31))

	first, err := f.svc.GenerateNextCharge(f.ctx, companyID, paid.ID)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, domain.OutcomeCreated, first.Outcome)
	require.NotNil(t, first.Payment)
	assert.Equal(t, date(2024, 2, 29), *first.Payment.DueDate)
	assert.Equal(t, "2024-02", *first.Payment.Period)
	assert.Equal(t, int64(14990), first.Payment.Amount)
	assert.Equal(t, domain.StatusPending, first.Payment.Status)

	second, err := f.svc.GenerateNextCharge(f.ctx, companyID, paid.ID)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, domain.OutcomeAlreadyExists, second.Outcome)
	assert.Equal(t, domain.ReasonAlreadyExists, second.Reason)

	assert.Equal(t, int64(2), f.countPayments(t, contract.ID))
}

func TestGenerateNextChargeFallsBackToPreviousAmount(t *testing.T) {
	f := newFixture(t, nil)
	client := f.client(t, "Frota Norte")
	contract := f.contract(t, client.ID, 0, nil)
	paid := f.payment(t, client.ID, &contract.ID, domain.StatusPaid, date(2024, 3, 15))

	result, err := f.svc.GenerateNextCharge(f.ctx, companyID, paid.ID)
	require.NoError(t, err)
	require.True(t, result.Created)
	assert.Equal(t, paid.Amount, result.Payment.Amount)
}

func TestGenerateNextChargeRespectsEndDate(t *testing.T) {
	f := newFixture(t, nil)
	client := f.client(t, "Frota Norte")

	end := date(2024, 2, 15)
	ending := f.contract(t, client.ID, 9900, &end)
	paid := f.payment(t, client.ID, &ending.ID, domain.StatusPaid, date(2024, 1, 20))

	result, err := f.svc.GenerateNextCharge(f.ctx, companyID, paid.ID)
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, domain.OutcomeSkipped, result.Outcome)
	assert.Equal(t, domain.ReasonBeyondEndDate, result.Reason)

	exact := date(2024, 2, 20)
	boundary := f.contract(t, client.ID, 9900, &exact)
	paidBoundary := f.payment(t, client.ID, &boundary.ID, domain.StatusPaid, date(2024, 1, 20))

	result, err = f.svc.GenerateNextCharge(f.ctx, companyID, paidBoundary.ID)
	require.NoError(t, err)
	assert.True(t, result.Created)
}

func TestGenerateNextChargeSkips(t *testing.T) {
	f := newFixture(t, nil)
	client := f.client(t, "Frota Norte")
	contract := f.contract(t, client.ID, 9900, nil)

	pending := f.payment(t, client.ID, &contract.ID, domain.StatusPending, date(2024, 1, 10))
	result, err := f.svc.GenerateNextCharge(f.ctx, companyID, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonNotPaid, result.Reason)

	oneOff := f.payment(t, client.ID, nil, domain.StatusPaid, date(2024, 1, 10))
	result, err = f.svc.GenerateNextCharge(f.ctx, companyID, oneOff.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonOneOff, result.Reason)

	suspended := f.contract(t, client.ID, 9900, nil)
	suspended.Status = contractdomain.StatusSuspended
	require.NoError(t, contractrepo.Provide().Update(f.ctx, f.db, &suspended))
	paid := f.payment(t, client.ID, &suspended.ID, domain.StatusPaid, date(2024, 1, 10))
	result, err = f.svc.GenerateNextCharge(f.ctx, companyID, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonContractInactive, result.Reason)

	// An inactive contract is reported before a missing due date.
	undatedInactive := f.payment(t, client.ID, &suspended.ID, domain.StatusPaid, date(2024, 2, 10))
	f.clearDueDate(t, undatedInactive.ID)
	result, err = f.svc.GenerateNextCharge(f.ctx, companyID, undatedInactive.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonContractInactive, result.Reason)

	undated := f.payment(t, client.ID, &contract.ID, domain.StatusPaid, date(2024, 2, 10))
	f.clearDueDate(t, undated.ID)
	result, err = f.svc.GenerateNextCharge(f.ctx, companyID, undated.ID)
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, domain.OutcomeSkipped, result.Outcome)
	assert.Equal(t, domain.ReasonNoDueDate, result.Reason)

	_, err = f.svc.GenerateNextCharge(f.ctx, companyID, f.node.Generate())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApplyGatewaySignalGuardsPaid(t *testing.T) {
	f := newFixture(t, nil)
	client := f.client(t, "Frota Norte")
	paid := f.payment(t, client.ID, nil, domain.StatusPaid, date(2024, 2, 10))

	change, err := f.svc.ApplyGatewaySignal(f.ctx, companyID, paid.ID, domain.SignalPending)
	require.NoError(t, err)
	assert.False(t, change.Changed)
	assert.True(t, change.Preserved)
	assert.Equal(t, domain.StatusPaid, change.Payment.Status)

	change, err = f.svc.ApplyGatewaySignal(f.ctx, companyID, paid.ID, domain.SignalRefunded)
	require.NoError(t, err)
	assert.True(t, change.Changed)
	assert.Equal(t, domain.StatusRefunded, change.Payment.Status)

	stored, err := f.svc.Get(f.ctx, companyID, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, stored.Status)
}

func TestUpdateStatusRequiresForceToLeavePaid(t *testing.T) {
	f := newFixture(t, nil)
	client := f.client(t, "Frota Norte")
	paid := f.payment(t, client.ID, nil, domain.StatusPaid, date(2024, 2, 10))

	_, err := f.svc.UpdateStatus(f.ctx, paid.ID.String(), domain.UpdateStatusRequest{Status: "pending"})
	assert.ErrorIs(t, err, domain.ErrPaidImmutable)

	_, err = f.svc.UpdateStatus(f.ctx, paid.ID.String(), domain.UpdateStatusRequest{Status: "lost"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	change, err := f.svc.UpdateStatus(f.ctx, paid.ID.String(), domain.UpdateStatusRequest{Status: "pending", Force: true})
	require.NoError(t, err)
	assert.True(t, change.Changed)
	assert.Nil(t, change.Payment.PaidAt)
}

type failingRepo struct {
	domain.Repository
	failClient snowflake.ID
}

func (r failingRepo) InsertIfAbsent(ctx context.Context, db *gorm.DB, payment *domain.Payment) (bool, error) {
	if payment.ClientID == r.failClient {
		return false, errors.New("insert failed")
	}
	return r.Repository.InsertIfAbsent(ctx, db, payment)
}

func TestBackfillIsolatesFailures(t *testing.T) {
	f := newFixture(t, nil)
	clients := make([]clientdomain.Client, 5)
	for i := range clients {
		clients[i] = f.client(t, "Cliente")
	}
	f = rebind(t, f, failingRepo{Repository: repository.Provide(), failClient: clients[4].ID})

	for i, client := range clients {
		contract := f.contract(t, client.ID, 9900, nil)
		f.payment(t, client.ID, &contract.ID, domain.StatusPaid, date(2024, 1, 10))
		if i == 2 || i == 3 {
			f.payment(t, client.ID, &contract.ID, domain.StatusPending, date(2024, 2, 10))
		}
	}

	summary, err := f.svc.Backfill(f.ctx, companyID)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Processed)
	assert.Equal(t, 2, summary.Generated)
	assert.Equal(t, 2, summary.AlreadyExists)
	assert.Equal(t, 0, summary.Skipped)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0].Error, "insert failed")
}

// rebind swaps the payment repository while keeping the fixture's database.
func rebind(t *testing.T, f fixture, repo domain.Repository) fixture {
	t.Helper()
	f.svc.repo = repo
	f.repo = repo
	return f
}

func TestMarkOverdue(t *testing.T) {
	f := newFixture(t, nil)
	client := f.client(t, "Frota Norte")
	late := f.payment(t, client.ID, nil, domain.StatusPending, date(2024, 3, 1))
	dueToday := f.payment(t, client.ID, nil, domain.StatusPending, date(2024, 3, 10))
	paid := f.payment(t, client.ID, nil, domain.StatusPaid, date(2024, 2, 1))

	marked, err := f.svc.MarkOverdue(f.ctx, companyID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	got, err := f.svc.Get(f.ctx, companyID, late.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOverdue, got.Status)

	got, err = f.svc.Get(f.ctx, companyID, dueToday.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)

	got, err = f.svc.Get(f.ctx, companyID, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, got.Status)
}

func TestGenerateReceiptOnlyForPaid(t *testing.T) {
	f := newFixture(t, nil)
	client := f.client(t, "Frota Norte")
	pending := f.payment(t, client.ID, nil, domain.StatusPending, date(2024, 3, 1))
	paid := f.payment(t, client.ID, nil, domain.StatusPaid, date(2024, 2, 1))

	_, err := f.svc.GenerateReceipt(f.ctx, companyID, pending.ID)
	assert.ErrorIs(t, err, domain.ErrReceiptUnavailable)

	out, err := f.svc.GenerateReceipt(f.ctx, companyID, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestDeleteWritesEvent(t *testing.T) {
	f := newFixture(t, nil)
	client := f.client(t, "Frota Norte")
	payment := f.payment(t, client.ID, nil, domain.StatusPending, date(2024, 3, 1))

	require.NoError(t, f.svc.Delete(f.ctx, payment.ID.String()))

	_, err := f.svc.Get(f.ctx, companyID, payment.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var eventType string
	require.NoError(t, f.db.Raw(`SELECT event_type FROM payment_events WHERE payment_id = ?`, payment.ID).Scan(&eventType).Error)
	assert.Equal(t, "payment.deleted", eventType)
}

// paidUnderneath marks the target payment paid on a separate write right after
// the service reads it, so the service acts on a stale snapshot.
type paidUnderneath struct {
	domain.Repository
	target snowflake.ID
	done   *bool
}

func (r paidUnderneath) FindByID(ctx context.Context, db *gorm.DB, company, id snowflake.ID) (*domain.Payment, error) {
	snapshot, err := r.Repository.FindByID(ctx, db, company, id)
	if err != nil || snapshot == nil || id != r.target || *r.done {
		return snapshot, err
	}
	*r.done = true

	paid := *snapshot
	paidAt := time.Now().UTC()
	paid.Status = domain.StatusPaid
	paid.PaidAt = &paidAt
	paid.UpdatedAt = paidAt
	updated, err := r.Repository.UpdateStatus(ctx, db, &paid, snapshot.Status)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, errors.New("concurrent payment write did not apply")
	}
	return snapshot, nil
}

func TestMarkOverdueKeepsConcurrentlyPaidCharge(t *testing.T) {
	f := newFixture(t, nil)
	client := f.client(t, "Frota Norte")
	late := f.payment(t, client.ID, nil, domain.StatusPending, date(2024, 3, 1))
	f = rebind(t, f, paidUnderneath{Repository: repository.Provide(), target: late.ID, done: new(bool)})

	marked, err := f.svc.MarkOverdue(f.ctx, companyID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, marked)

	got, err := f.svc.Get(f.ctx, companyID, late.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, got.Status)
	assert.NotNil(t, got.PaidAt)
	assert.Empty(t, f.statusEvents(t, late.ID))
}

func TestLateWebhookKeepsConcurrentlyPaidCharge(t *testing.T) {
	f := newFixture(t, nil)
	client := f.client(t, "Frota Norte")
	pending := f.payment(t, client.ID, nil, domain.StatusPending, date(2024, 3, 1))
	f = rebind(t, f, paidUnderneath{Repository: repository.Provide(), target: pending.ID, done: new(bool)})

	change, err := f.svc.ApplyGatewaySignal(f.ctx, companyID, pending.ID, domain.SignalCancelled)
	require.NoError(t, err)
	assert.False(t, change.Changed)
	assert.True(t, change.Preserved)
	assert.Equal(t, domain.StatusPaid, change.Payment.Status)
}

// alwaysMoved reports every status write as lost to another writer.
type alwaysMoved struct {
	domain.Repository
}

func (alwaysMoved) UpdateStatus(context.Context, *gorm.DB, *domain.Payment, domain.Status) (bool, error) {
	return false, nil
}

func TestUpdateStatusGivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newFixture(t, nil)
	client := f.client(t, "Frota Norte")
	pending := f.payment(t, client.ID, nil, domain.StatusPending, date(2024, 3, 1))
	f = rebind(t, f, alwaysMoved{Repository: repository.Provide()})

	_, err := f.svc.UpdateStatus(f.ctx, pending.ID.String(), domain.UpdateStatusRequest{Status: "cancelled"})
	assert.ErrorIs(t, err, domain.ErrStatusConflict)

	_, err = f.svc.ApplyGatewaySignal(f.ctx, companyID, pending.ID, domain.SignalApproved)
	assert.ErrorIs(t, err, domain.ErrStatusConflict)
}

func TestPeriodConflicts(t *testing.T) {
	f := newFixture(t, nil)
	client := f.client(t, "Frota Norte")
	contract := f.contract(t, client.ID, 9900, nil)
	contractID := contract.ID.String()
	due := "2024-04-05"

	_, err := f.svc.Create(f.ctx, domain.CreatePaymentRequest{ClientID: client.ID.String(), ContractID: &contractID, Amount: 9900, DueDate: &due})
	require.NoError(t, err)
	_, err = f.svc.Create(f.ctx, domain.CreatePaymentRequest{ClientID: client.ID.String(), ContractID: &contractID, Amount: 9900, DueDate: &due})
	assert.ErrorIs(t, err, domain.ErrPeriodConflict)

	cancelled := f.payment(t, client.ID, &contract.ID, domain.StatusCancelled, date(2024, 4, 20))
	_, err = f.svc.UpdateStatus(f.ctx, cancelled.ID.String(), domain.UpdateStatusRequest{Status: "pending"})
	assert.ErrorIs(t, err, domain.ErrPeriodConflict)

	got, err := f.svc.Get(f.ctx, companyID, cancelled.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
}

func TestStatusEventsRecordSource(t *testing.T) {
	f := newFixture(t, nil)
	client := f.client(t, "Frota Norte")
	late := f.payment(t, client.ID, nil, domain.StatusPending, date(2024, 3, 1))
	webhook := f.payment(t, client.ID, nil, domain.StatusPending, date(2024, 3, 20))

	marked, err := f.svc.MarkOverdue(f.ctx, companyID, 0)
	require.NoError(t, err)
	require.Equal(t, 1, marked)
	_, err = f.svc.ApplyGatewaySignal(f.ctx, companyID, webhook.ID, domain.SignalApproved)
	require.NoError(t, err)

	overdue := f.statusEvents(t, late.ID)
	require.Len(t, overdue, 1)
	assert.Contains(t, overdue[0], `"source":"scheduler"`)

	approved := f.statusEvents(t, webhook.ID)
	require.Len(t, approved, 1)
	assert.Contains(t, approved[0], `"source":"gateway"`)
}
