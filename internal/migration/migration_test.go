package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/smallbiznis/vehicleguard/pkg/rls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	files, err := Files()
	require.NoError(t, err)
	require.NotEmpty(t, files)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, name := range files {
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected migration file %q", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestInitMigrationHasChargeUniqueness(t *testing.T) {
	body, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_init.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "ux_payment_transactions_contract_period")
	assert.Contains(t, string(body), "status IN ('pending', 'overdue', 'paid')")
}

func TestApplyRequiresHandle(t *testing.T) {
	_, err := Apply(nil)
	assert.Error(t, err)
}

func TestTenantPolicyUsesRLSSetting(t *testing.T) {
	body, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000002_tenant_rls.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "current_setting('"+rls.Setting+"', true)")
}
