// Package dbtest opens throwaway SQLite databases carrying the settlement schema
// for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var seq atomic.Int64

// Schema mirrors the goose migrations with SQLite-compatible types.
var Schema = []string{
	`CREATE TABLE ticket_listings (
		id TEXT PRIMARY KEY,
		seller_id TEXT NOT NULL,
		event_name TEXT NOT NULL,
		price_cents INTEGER NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		buyer_id TEXT,
		sold_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		seller_id TEXT,
		name TEXT NOT NULL,
		price_cents INTEGER NOT NULL,
		shipping_cents INTEGER NOT NULL DEFAULT 0,
		currency TEXT NOT NULL,
		inventory_count INTEGER NOT NULL DEFAULT 0,
		is_digital BOOLEAN NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE businesses (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		credit_balance INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE purchases (
		id TEXT PRIMARY KEY,
		buyer_id TEXT NOT NULL,
		buyer_email TEXT NOT NULL,
		seller_id TEXT,
		purchase_type TEXT NOT NULL,
		reference_id TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1,
		amount_cents INTEGER NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		digital_delivered BOOLEAN NOT NULL DEFAULT 0,
		stripe_session_id TEXT UNIQUE,
		stripe_payment_intent_id TEXT,
		paid_at DATETIME,
		failed_at DATETIME,
		refund_flagged_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE escrow_orders (
		id TEXT PRIMARY KEY,
		purchase_id TEXT NOT NULL UNIQUE,
		buyer_id TEXT NOT NULL,
		buyer_email TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		total_xp INTEGER NOT NULL,
		status TEXT NOT NULL,
		secondary_currency TEXT,
		secondary_amount INTEGER NOT NULL DEFAULT 0,
		escrow_released_at DATETIME,
		escrow_released_by TEXT,
		platform_fee_xp INTEGER,
		seller_received_xp INTEGER,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE disputes (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE pickup_beacons (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		qr_code TEXT NOT NULL UNIQUE,
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		status TEXT NOT NULL,
		expires_at DATETIME NOT NULL,
		picked_up_at DATETIME,
		picked_up_by TEXT,
		photo_url TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE wallets (
		user_id TEXT NOT NULL,
		currency TEXT NOT NULL,
		balance INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME,
		PRIMARY KEY (user_id, currency)
	)`,
	`CREATE TABLE ledger_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		currency TEXT NOT NULL,
		amount INTEGER NOT NULL,
		transaction_type TEXT NOT NULL,
		reference_id TEXT,
		reference_type TEXT,
		balance_after INTEGER NOT NULL,
		metadata TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE seller_connect_accounts (
		id TEXT PRIMARY KEY,
		seller_id TEXT NOT NULL UNIQUE,
		stripe_account_id TEXT NOT NULL UNIQUE,
		onboarding_status TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		link TEXT,
		read_at DATETIME,
		created_at DATETIME
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL UNIQUE,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
}

// Open returns a fresh in-memory database with Schema applied. Each call gets its
// own database so tests never observe each other's rows.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("%s_%d", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()), seq.Add(1))
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// a single connection keeps the shared in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range Schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}
