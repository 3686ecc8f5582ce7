package authorization

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/vehicleguard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)
	return NewService(Params{DB: db, Log: zaptest.NewLogger(t), Enforcer: enforcer}), db
}

func insertKey(t *testing.T, db *gorm.DB, id, companyID int64, role string, active bool) {
	t.Helper()
	require.NoError(t, db.Exec(
		`INSERT INTO api_keys (id, company_id, key_id, name, key_hash, role, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, companyID, "key_"+role, "test", "hash_"+role, role, active, time.Now().UTC(),
	).Error)
}

func TestAuthorizeByRole(t *testing.T) {
	svc, db := newTestService(t)
	insertKey(t, db, 11, 7, "viewer", true)
	insertKey(t, db, 12, 7, "operator", true)
	insertKey(t, db, 13, 7, "admin", true)
	ctx := context.Background()

	cases := []struct {
		actor  string
		object string
		action string
		err    error
	}{
		{"api_key:11", ObjectPayment, ActionPaymentView, nil},
		{"api_key:11", ObjectPayment, ActionPaymentCreate, ErrForbidden},
		{"api_key:12", ObjectPayment, ActionPaymentStatus, nil},
		{"api_key:12", ObjectPayment, ActionPaymentDelete, ErrForbidden},
		{"api_key:12", ObjectCredential, ActionCredentialManage, ErrForbidden},
		{"api_key:13", ObjectPayment, ActionPaymentDelete, nil},
		{"api_key:13", ObjectAPIKey, ActionAPIKeyCreate, nil},
		{"system", ObjectPayment, ActionPaymentBackfill, nil},
	}
	for _, tc := range cases {
		err := svc.Authorize(ctx, tc.actor, "7", tc.object, tc.action)
		if tc.err == nil {
			assert.NoError(t, err, "%s %s", tc.actor, tc.action)
		} else {
			assert.ErrorIs(t, err, tc.err, "%s %s", tc.actor, tc.action)
		}
	}
}

func TestAuthorizeRejectsOtherCompanyAndRevokedKeys(t *testing.T) {
	svc, db := newTestService(t)
	insertKey(t, db, 11, 7, "admin", true)
	insertKey(t, db, 12, 7, "operator", false)

	assert.ErrorIs(t, svc.Authorize(context.Background(), "api_key:11", "8", ObjectPayment, ActionPaymentView), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(context.Background(), "api_key:12", "7", ObjectPayment, ActionPaymentView), ErrForbidden)
}

func TestAuthorizeValidatesInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, "", "7", ObjectPayment, ActionPaymentView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:1", "7", ObjectPayment, ActionPaymentView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "system", "abc", ObjectPayment, ActionPaymentView), ErrInvalidCompany)
	assert.ErrorIs(t, svc.Authorize(ctx, "system", "7", "", ActionPaymentView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, "system", "7", ObjectPayment, " "), ErrInvalidAction)
}

func TestRoleChangeTakesEffect(t *testing.T) {
	svc, db := newTestService(t)
	insertKey(t, db, 11, 7, "viewer", true)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, "api_key:11", "7", ObjectPayment, ActionPaymentCreate), ErrForbidden)

	require.NoError(t, db.Exec(`UPDATE api_keys SET role = ? WHERE id = ?`, "operator", 11).Error)
	assert.NoError(t, svc.Authorize(ctx, "api_key:11", "7", ObjectPayment, ActionPaymentCreate))
}
