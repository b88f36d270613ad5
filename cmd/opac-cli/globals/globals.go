package globals

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"opacbridge/internal/backend"
	"opacbridge/internal/components/chrono"
	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/db"
	"opacbridge/internal/ledger"
	"opacbridge/internal/library"
	"opacbridge/internal/opac"
)

const key = "opac-cli.ctx"

type Value struct {
	Catalogue library.Catalogue
	Accounts  []opac.Account
	Pool      backend.Pool
	Time      chrono.TimeAPI
	Tel       telemetry.API

	DBPath   string
	openOnce sync.Once
	database *sql.DB
	openErr  error
}

// Library looks up ident in the catalogue.
func (v *Value) Library(ident string) (opac.Library, error) {
	lib, ok := v.Catalogue.Get(ident)
	if !ok {
		return opac.Library{}, fmt.Errorf("unknown library %q, see the libraries command", ident)
	}
	return lib, nil
}

// Database opens the ledger database on first use.
func (v *Value) Database(ctx context.Context) (*sql.DB, error) {
	v.openOnce.Do(func() {
		v.database, v.openErr = db.Open(ctx, v.DBPath)
	})
	return v.database, v.openErr
}

func (v *Value) Ledger(ctx context.Context) (ledger.Ledger, error) {
	database, err := v.Database(ctx)
	if err != nil {
		return ledger.Ledger{}, err
	}
	return ledger.NewLedger(db.New(database), db.NewMakeTx(database), v.Tel), nil
}

func (v *Value) Cache(ctx context.Context) (ledger.Cache, error) {
	database, err := v.Database(ctx)
	if err != nil {
		return ledger.Cache{}, err
	}
	return ledger.NewCache(db.New(database), v.Time, v.Tel), nil
}

func (v *Value) Close() error {
	if v.database == nil {
		return nil
	}
	return v.database.Close()
}

func Set(ctx context.Context, value *Value) context.Context {
	return context.WithValue(ctx, key, value)
}

func Get(ctx context.Context) *Value {
	return ctx.Value(key).(*Value)
}
