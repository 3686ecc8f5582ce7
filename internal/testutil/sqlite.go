// Package testutil provides an in-memory database with the production schema for package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbCounter atomic.Int64

// schema mirrors internal/migration/migrations in SQLite syntax.
var schema = []string{
	`CREATE TABLE companies (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		custom_domain TEXT,
		default_gateway TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE clients (
		id INTEGER PRIMARY KEY,
		company_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		document TEXT,
		email TEXT,
		phone TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE plans (
		id INTEGER PRIMARY KEY,
		company_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		monthly_value INTEGER NOT NULL DEFAULT 0,
		billing_day INTEGER,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE contracts (
		id INTEGER PRIMARY KEY,
		company_id INTEGER NOT NULL,
		client_id INTEGER NOT NULL,
		plan_id INTEGER,
		status TEXT NOT NULL DEFAULT 'active',
		monthly_value INTEGER NOT NULL DEFAULT 0,
		start_date DATE NOT NULL,
		end_date DATE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE payment_transactions (
		id INTEGER PRIMARY KEY,
		company_id INTEGER NOT NULL,
		client_id INTEGER NOT NULL,
		contract_id INTEGER,
		amount INTEGER NOT NULL,
		due_date DATE,
		period TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		payment_gateway TEXT,
		external_id TEXT,
		paid_at DATETIME,
		transaction_type TEXT NOT NULL DEFAULT 'charge',
		description TEXT,
		checkout_url TEXT,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_payment_transactions_gateway_external
		ON payment_transactions (payment_gateway, external_id)
		WHERE external_id IS NOT NULL`,
	`CREATE UNIQUE INDEX ux_payment_transactions_contract_period
		ON payment_transactions (company_id, client_id, contract_id, period)
		WHERE contract_id IS NOT NULL AND period IS NOT NULL AND status IN ('pending', 'overdue', 'paid')`,
	`CREATE TABLE payment_notifications (
		id INTEGER PRIMARY KEY,
		company_id INTEGER NOT NULL,
		client_id INTEGER NOT NULL,
		payment_id INTEGER,
		event_type TEXT NOT NULL,
		offset_days INTEGER NOT NULL DEFAULT 0,
		scheduled_for DATETIME NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		message_body TEXT NOT NULL,
		sent_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_payment_notifications_payment_event
		ON payment_notifications (payment_id, event_type)
		WHERE payment_id IS NOT NULL AND event_type <> 'manual'`,
	`CREATE TABLE integration_credentials (
		id INTEGER PRIMARY KEY,
		company_id INTEGER NOT NULL,
		provider TEXT NOT NULL,
		config TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (company_id, provider)
	)`,
	`CREATE TABLE payment_webhook_deliveries (
		id INTEGER PRIMARY KEY,
		company_id INTEGER,
		gateway TEXT NOT NULL,
		external_id TEXT,
		delivery_id TEXT NOT NULL UNIQUE,
		outcome TEXT NOT NULL,
		previous_status TEXT,
		resolved_status TEXT,
		received_at DATETIME NOT NULL
	)`,
	`CREATE TABLE payment_events (
		id INTEGER PRIMARY KEY,
		company_id INTEGER NOT NULL,
		payment_id INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		published_at DATETIME,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE api_keys (
		id INTEGER PRIMARY KEY,
		company_id INTEGER NOT NULL,
		key_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		key_hash TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT 'operator',
		is_active BOOLEAN NOT NULL DEFAULT 1,
		last_used_at DATETIME,
		created_at DATETIME NOT NULL,
		revoked_at DATETIME
	)`,
	`CREATE TABLE audit_logs (
		id INTEGER PRIMARY KEY,
		company_id INTEGER,
		actor_type TEXT NOT NULL,
		actor_id TEXT,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT,
		metadata TEXT NOT NULL DEFAULT '{}',
		ip_address TEXT,
		user_agent TEXT,
		created_at DATETIME NOT NULL
	)`,
}

// NewDB opens a private in-memory database with every table created.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", dbCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

// NewNode returns a snowflake node for tests.
func NewNode(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}
