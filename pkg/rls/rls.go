package rls

import (
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Setting is the session variable read by the tenant isolation policies.
const Setting = "app.current_company_id"

// WithCompany pins the transaction to one company so row level security policies
// reject rows of any other tenant. Dialects without session settings are left untouched.
func WithCompany(tx *gorm.DB, companyID snowflake.ID) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT set_config(?, ?, true)", Setting, companyID.String()).Error
}
