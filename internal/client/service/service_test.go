package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/internal/client/domain"
	"github.com/smallbiznis/vehicleguard/internal/client/repository"
	"github.com/smallbiznis/vehicleguard/internal/companycontext"
	"github.com/smallbiznis/vehicleguard/internal/testutil"
	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func strPtr(v string) *string { return &v }

func setup(t *testing.T) (domain.Service, context.Context) {
	t.Helper()
	svc := New(Params{
		DB:    testutil.NewDB(t),
		Log:   zaptest.NewLogger(t),
		GenID: testutil.NewNode(t),
		Repo:  repository.Provide(),
	})
	return svc, companycontext.WithCompanyID(context.Background(), snowflake.ID(1))
}

func TestCreateNormalizesContactFields(t *testing.T) {
	svc, ctx := setup(t)

	client, err := svc.Create(ctx, domain.CreateClientRequest{
		Name:     " Joao Silva ",
		Document: strPtr("123.456.789-09"),
		Email:    strPtr("Joao@Example.com"),
		Phone:    strPtr("(11) 98765-4321"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Joao Silva", client.Name)
	assert.Equal(t, "12345678909", *client.Document)
	assert.Equal(t, "joao@example.com", *client.Email)
	assert.Equal(t, "11987654321", *client.Phone)
	assert.Equal(t, domain.StatusActive, client.Status)

	loaded, err := svc.GetByID(ctx, client.ID.String())
	require.NoError(t, err)
	assert.Equal(t, client.ID, loaded.ID)
	assert.Equal(t, "11987654321", *loaded.Phone)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc, ctx := setup(t)

	_, err := svc.Create(context.Background(), domain.CreateClientRequest{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidCompany)

	_, err = svc.Create(ctx, domain.CreateClientRequest{Name: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateClientRequest{Name: "x", Phone: strPtr("123")})
	assert.ErrorIs(t, err, domain.ErrInvalidPhone)

	_, err = svc.Create(ctx, domain.CreateClientRequest{Name: "x", Email: strPtr("nope")})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestTenantIsolation(t *testing.T) {
	svc, ctx := setup(t)
	client, err := svc.Create(ctx, domain.CreateClientRequest{Name: "Maria"})
	require.NoError(t, err)

	other := companycontext.WithCompanyID(context.Background(), snowflake.ID(2))
	_, err = svc.GetByID(other, client.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListPaginatesAndFilters(t *testing.T) {
	svc, ctx := setup(t)
	for _, name := range []string{"Ana", "Bruno", "Carla"} {
		_, err := svc.Create(ctx, domain.CreateClientRequest{Name: name})
		require.NoError(t, err)
	}

	first, err := svc.List(ctx, domain.ListClientRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.Clients, 2)
	assert.True(t, first.HasMore)

	second, err := svc.List(ctx, domain.ListClientRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, second.Clients, 1)
	assert.False(t, second.HasMore)

	filtered, err := svc.List(ctx, domain.ListClientRequest{Name: "br"})
	require.NoError(t, err)
	require.Len(t, filtered.Clients, 1)
	assert.Equal(t, "Bruno", filtered.Clients[0].Name)
}

func TestUpdateStatus(t *testing.T) {
	svc, ctx := setup(t)
	client, err := svc.Create(ctx, domain.CreateClientRequest{Name: "Maria"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, client.ID.String(), domain.UpdateClientRequest{Status: strPtr("archived")})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	updated, err := svc.Update(ctx, client.ID.String(), domain.UpdateClientRequest{Status: strPtr("inactive"), Phone: strPtr("+55 11 98765-4321")})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInactive, updated.Status)
	assert.Equal(t, "5511987654321", *updated.Phone)
}
