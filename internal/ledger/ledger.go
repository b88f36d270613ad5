// Package ledger keeps the loan history of every library and the last
// account snapshot per account in sqlite.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"opacbridge/internal/components/assert"
	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/db"
	"opacbridge/internal/opac"
)

const (
	report_db_query      = "db.query"
	report_ledger_update = "ledger.update"
)

// Entry is one loan in the history, Lending is true while it is still on
// the account.
type Entry struct {
	ID           int64
	Library      string
	MediaID      string
	Title        string
	Author       string
	Format       string
	Barcode      string
	Branch       string
	FirstSeen    time.Time
	LastSeen     time.Time
	Deadline     string
	ProlongCount int
	Lending      bool
}

// Changes counts what one Update did.
type Changes struct {
	Inserted int
	Updated  int
	Returned int
}

type Ledger struct {
	db     *db.Queries
	makeTx db.MakeTx
	tel    telemetry.API
}

func NewLedger(qry *db.Queries, makeTx db.MakeTx, tel telemetry.API) Ledger {
	assert.NotNil(qry)
	assert.NotNil(makeTx)
	assert.NotNil(tel)

	return Ledger{
		db:     qry,
		makeTx: makeTx,
		tel:    telemetry.NewScopedAPI("ledger", tel),
	}
}

// sameItem matches by media id when both sides have one, otherwise by
// title, author and format.
func sameItem(h db.History, item opac.LentItem) bool {
	if h.MediaID != "" && item.MediaID != "" {
		return h.MediaID == item.MediaID
	}
	return h.Title == item.Title &&
		h.Author == item.Author &&
		h.Format == item.Format
}

func deadline(item opac.LentItem) string {
	if !item.Due.IsZero() {
		return item.Due.Format(db.DateLayout)
	}
	return item.DueText
}

// Update reconciles the history of library with the loans of a fresh
// account snapshot:
//
//   - a loan already in the history has its last seen date set to today,
//     a changed deadline counts as a renewal
//   - a loan not in the history is inserted, first and last seen today
//   - a history entry still lending but absent from the snapshot is
//     marked returned
func (l Ledger) Update(ctx context.Context, library string, data *opac.AccountData, today time.Time) (Changes, error) {
	if data == nil {
		return Changes{}, fmt.Errorf("ledger: no account data for %s", library)
	}
	day := today.Format(db.DateLayout)

	tx, discard, commit, err := l.makeTx(ctx)
	if err != nil {
		l.tel.ReportBroken(report_db_query, fmt.Errorf("make tx: %w", err))
		return Changes{}, err
	}
	defer discard()

	lending, err := tx.GetLendingHistory(ctx, library)
	if err != nil {
		l.tel.ReportBroken(report_db_query, err, "GetLendingHistory", library)
		return Changes{}, err
	}

	changes := Changes{}
	seen := make([]bool, len(lending))
	for _, item := range data.Lent {
		match := -1
		for i, h := range lending {
			if !seen[i] && sameItem(h, item) {
				match = i
				break
			}
		}

		if match < 0 {
			param := db.CreateHistoryParams{
				Library:   library,
				MediaID:   item.MediaID,
				Title:     item.Title,
				Author:    item.Author,
				Format:    item.Format,
				Barcode:   item.Barcode,
				Branch:    item.Branch,
				FirstDate: day,
				LastDate:  day,
				Deadline:  deadline(item),
			}
			_, err := tx.CreateHistory(ctx, param)
			if err != nil {
				l.tel.ReportBroken(report_db_query, err, "CreateHistory", param)
				return Changes{}, err
			}
			changes.Inserted++
			continue
		}

		seen[match] = true
		h := lending[match]
		param := db.UpdateLendingParams{
			ID:           h.ID,
			LastDate:     day,
			Deadline:     h.Deadline,
			ProlongCount: h.ProlongCount,
		}
		if due := deadline(item); due != "" && due != h.Deadline {
			if h.Deadline != "" {
				param.ProlongCount++
			}
			param.Deadline = due
		}
		if param.LastDate == h.LastDate && param.Deadline == h.Deadline {
			continue
		}
		err := tx.UpdateLending(ctx, param)
		if err != nil {
			l.tel.ReportBroken(report_db_query, err, "UpdateLending", param)
			return Changes{}, err
		}
		changes.Updated++
	}

	for i, h := range lending {
		if seen[i] {
			continue
		}
		err := tx.MarkReturned(ctx, h.ID)
		if err != nil {
			l.tel.ReportBroken(report_db_query, err, "MarkReturned", h.ID)
			return Changes{}, err
		}
		changes.Returned++
	}

	err = commit()
	if err != nil {
		l.tel.ReportBroken(report_db_query, fmt.Errorf("commit: %w", err))
		return Changes{}, err
	}
	l.tel.ReportDebug("history updated", library, changes)
	return changes, nil
}

func entryFromRow(h db.History, tel telemetry.API) Entry {
	first, err := time.Parse(db.DateLayout, h.FirstDate)
	if err != nil {
		tel.ReportWarning(report_ledger_update, err, h.ID)
	}
	last, err := time.Parse(db.DateLayout, h.LastDate)
	if err != nil {
		tel.ReportWarning(report_ledger_update, err, h.ID)
	}
	return Entry{
		ID:           h.ID,
		Library:      h.Library,
		MediaID:      h.MediaID,
		Title:        h.Title,
		Author:       h.Author,
		Format:       h.Format,
		Barcode:      h.Barcode,
		Branch:       h.Branch,
		FirstSeen:    first,
		LastSeen:     last,
		Deadline:     h.Deadline,
		ProlongCount: int(h.ProlongCount),
		Lending:      h.Lending,
	}
}

// History lists the entries of library, most recently seen first.
func (l Ledger) History(ctx context.Context, library string) ([]Entry, error) {
	rows, err := l.db.GetHistory(ctx, library)
	if err != nil {
		l.tel.ReportBroken(report_db_query, err, "GetHistory", library)
		return nil, err
	}
	entries := make([]Entry, len(rows))
	for i, h := range rows {
		entries[i] = entryFromRow(h, l.tel)
	}
	return entries, nil
}

// Get returns the entry with id, ok is false if there is none.
func (l Ledger) Get(ctx context.Context, id int64) (entry Entry, ok bool, err error) {
	row, err := l.db.GetHistoryItem(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		l.tel.ReportBroken(report_db_query, err, "GetHistoryItem", id)
		return Entry{}, false, err
	}
	return entryFromRow(row, l.tel), true, nil
}

func (l Ledger) Remove(ctx context.Context, id int64) error {
	err := l.db.DeleteHistoryItem(ctx, id)
	if err != nil {
		l.tel.ReportBroken(report_db_query, err, "DeleteHistoryItem", id)
	}
	return err
}

// Clear forgets the whole history of library.
func (l Ledger) Clear(ctx context.Context, library string) error {
	err := l.db.DeleteLibraryHistory(ctx, library)
	if err != nil {
		l.tel.ReportBroken(report_db_query, err, "DeleteLibraryHistory", library)
	}
	return err
}
