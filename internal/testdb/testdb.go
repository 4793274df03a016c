// Package testdb opens throwaway sqlite databases carrying the wallet schema
// for repository and service tests.
package testdb

import (
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_]`)

const schema = `
CREATE TABLE wallets (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  available_balance INTEGER NOT NULL DEFAULT 0,
  held_balance INTEGER NOT NULL DEFAULT 0,
  balance INTEGER NOT NULL DEFAULT 0,
  version INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE ledger_entries (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  entry_kind TEXT NOT NULL,
  amount INTEGER NOT NULL,
  wallet_effect INTEGER NOT NULL,
  held_effect INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  reference TEXT NOT NULL,
  counterparty_id TEXT,
  available_balance INTEGER NOT NULL,
  held_balance INTEGER NOT NULL,
  balance INTEGER NOT NULL,
  metadata TEXT,
  created_at DATETIME,
  UNIQUE (user_id, entry_kind, reference)
);
CREATE TABLE escrow_transactions (
  id TEXT PRIMARY KEY,
  listing_id TEXT NOT NULL,
  sender_id TEXT NOT NULL,
  receiver_id TEXT NOT NULL,
  amount INTEGER NOT NULL,
  platform_fee INTEGER NOT NULL DEFAULT 0,
  net_amount INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  reference TEXT NOT NULL UNIQUE,
  completed_at DATETIME,
  failed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE listings (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  title TEXT NOT NULL,
  price INTEGER NOT NULL,
  status TEXT NOT NULL,
  buyer_id TEXT,
  transaction_id TEXT,
  fulfillment_status TEXT NOT NULL,
  shipped_at DATETIME,
  buyer_confirmed_at DATETIME,
  version INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE user_profiles (
  user_id TEXT PRIMARY KEY,
  is_premium INTEGER NOT NULL DEFAULT 0,
  premium_status TEXT NOT NULL,
  premium_expires_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE ad_campaigns (
  id TEXT PRIMARY KEY,
  advertiser_id TEXT NOT NULL,
  title TEXT NOT NULL,
  placements TEXT,
  budget INTEGER NOT NULL,
  status TEXT NOT NULL,
  reference TEXT NOT NULL UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);
CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);
CREATE TABLE gateway_payments (
  reference TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  purpose TEXT NOT NULL CHECK (purpose IN ('wallet_funding', 'premium')),
  amount INTEGER NOT NULL CHECK (amount > 0),
  created_at DATETIME
);`

// Open returns a private in-memory database for t with every wallet table
// created. The pool is pinned to one connection so concurrent callers queue
// on it the way they would on a row lock.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := unsafeName.ReplaceAllString(t.Name(), "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.Exec(schema).Error)
	return conn
}
