package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"opacbridge/internal/components/assert"
	"opacbridge/internal/components/chrono"
	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/db"
	"opacbridge/internal/opac"
)

const report_cache_load = "cache.load"

// Snapshot is the last AccountData fetched for an account.
type Snapshot struct {
	Data        opac.AccountData
	RefreshedAt time.Time
}

// Stale is true when the snapshot is older than maxAge at now.
func (s Snapshot) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.RefreshedAt) > maxAge
}

// Cache stores one Snapshot per (library, account).
type Cache struct {
	db   *db.Queries
	time chrono.TimeAPI
	tel  telemetry.API
}

func NewCache(qry *db.Queries, time chrono.TimeAPI, tel telemetry.API) Cache {
	assert.NotNil(qry)
	assert.NotNil(time)
	assert.NotNil(tel)

	return Cache{
		db:   qry,
		time: time,
		tel:  telemetry.NewScopedAPI("cache", tel),
	}
}

// Store replaces the snapshot of data.AccountID in library, refreshed now.
func (c Cache) Store(ctx context.Context, library string, data opac.AccountData) error {
	if data.AccountID == "" {
		return fmt.Errorf("cache: account data without account id")
	}
	serialized, err := json.Marshal(data)
	if err != nil {
		return err
	}
	param := db.PutAccountCacheParams{
		Library:     library,
		AccountID:   data.AccountID,
		Data:        string(serialized),
		RefreshedAt: c.time.Now().Unix(),
	}
	err = c.db.PutAccountCache(ctx, param)
	if err != nil {
		c.tel.ReportBroken(report_db_query, err, "PutAccountCache", library, data.AccountID)
	}
	return err
}

// Load returns the stored snapshot, ok is false when there is none or it
// can no longer be decoded.
func (c Cache) Load(ctx context.Context, library, accountID string) (snapshot Snapshot, ok bool, err error) {
	param := db.GetAccountCacheParams{Library: library, AccountID: accountID}
	row, err := c.db.GetAccountCache(ctx, param)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		c.tel.ReportBroken(report_db_query, err, "GetAccountCache", param)
		return Snapshot{}, false, err
	}

	var data opac.AccountData
	err = json.Unmarshal([]byte(row.Data), &data)
	if err != nil {
		c.tel.ReportWarning(report_cache_load, err, library, accountID)
		return Snapshot{}, false, nil
	}
	return Snapshot{
		Data:        data,
		RefreshedAt: time.Unix(row.RefreshedAt, 0).In(c.time.Location()),
	}, true, nil
}

func (c Cache) Drop(ctx context.Context, library, accountID string) error {
	param := db.DeleteAccountCacheParams{Library: library, AccountID: accountID}
	err := c.db.DeleteAccountCache(ctx, param)
	if err != nil {
		c.tel.ReportBroken(report_db_query, err, "DeleteAccountCache", param)
	}
	return err
}
