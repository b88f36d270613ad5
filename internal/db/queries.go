package db

import (
	"context"
)

const historyColumns = `id, library, media_id, title, author, format, barcode, branch,
    first_date, last_date, deadline, prolong_count, lending`

func scanHistory(rows interface{ Scan(...any) error }, h *History) error {
	return rows.Scan(
		&h.ID,
		&h.Library,
		&h.MediaID,
		&h.Title,
		&h.Author,
		&h.Format,
		&h.Barcode,
		&h.Branch,
		&h.FirstDate,
		&h.LastDate,
		&h.Deadline,
		&h.ProlongCount,
		&h.Lending,
	)
}

func (q *Queries) listHistory(ctx context.Context, query string, args ...any) ([]History, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []History
	for rows.Next() {
		var h History
		if err := scanHistory(rows, &h); err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getLendingHistory = `select ` + historyColumns + ` from history
where library = ? and lending = 1
order by id`

func (q *Queries) GetLendingHistory(ctx context.Context, library string) ([]History, error) {
	return q.listHistory(ctx, getLendingHistory, library)
}

const getHistory = `select ` + historyColumns + ` from history
where library = ?
order by last_date desc, id desc`

func (q *Queries) GetHistory(ctx context.Context, library string) ([]History, error) {
	return q.listHistory(ctx, getHistory, library)
}

const getHistoryItem = `select ` + historyColumns + ` from history where id = ?`

func (q *Queries) GetHistoryItem(ctx context.Context, id int64) (History, error) {
	row := q.db.QueryRowContext(ctx, getHistoryItem, id)
	var h History
	err := scanHistory(row, &h)
	return h, err
}

const createHistory = `insert into history (
    library, media_id, title, author, format, barcode, branch,
    first_date, last_date, deadline, prolong_count, lending
) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 1)
returning id`

type CreateHistoryParams struct {
	Library   string
	MediaID   string
	Title     string
	Author    string
	Format    string
	Barcode   string
	Branch    string
	FirstDate string
	LastDate  string
	Deadline  string
}

func (q *Queries) CreateHistory(ctx context.Context, arg CreateHistoryParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createHistory,
		arg.Library,
		arg.MediaID,
		arg.Title,
		arg.Author,
		arg.Format,
		arg.Barcode,
		arg.Branch,
		arg.FirstDate,
		arg.LastDate,
		arg.Deadline,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const updateLending = `update history
set last_date = ?, deadline = ?, prolong_count = ?
where id = ?`

type UpdateLendingParams struct {
	LastDate     string
	Deadline     string
	ProlongCount int64
	ID           int64
}

func (q *Queries) UpdateLending(ctx context.Context, arg UpdateLendingParams) error {
	_, err := q.db.ExecContext(ctx, updateLending,
		arg.LastDate,
		arg.Deadline,
		arg.ProlongCount,
		arg.ID,
	)
	return err
}

const markReturned = `update history set lending = 0 where id = ?`

func (q *Queries) MarkReturned(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markReturned, id)
	return err
}

const deleteHistoryItem = `delete from history where id = ?`

func (q *Queries) DeleteHistoryItem(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteHistoryItem, id)
	return err
}

const deleteLibraryHistory = `delete from history where library = ?`

func (q *Queries) DeleteLibraryHistory(ctx context.Context, library string) error {
	_, err := q.db.ExecContext(ctx, deleteLibraryHistory, library)
	return err
}

const putAccountCache = `insert into account_cache (library, account_id, data, refreshed_at)
values (?, ?, ?, ?)
on conflict (library, account_id) do update set
    data = excluded.data,
    refreshed_at = excluded.refreshed_at`

type PutAccountCacheParams struct {
	Library     string
	AccountID   string
	Data        string
	RefreshedAt int64
}

func (q *Queries) PutAccountCache(ctx context.Context, arg PutAccountCacheParams) error {
	_, err := q.db.ExecContext(ctx, putAccountCache,
		arg.Library,
		arg.AccountID,
		arg.Data,
		arg.RefreshedAt,
	)
	return err
}

const getAccountCache = `select library, account_id, data, refreshed_at from account_cache
where library = ? and account_id = ?`

type GetAccountCacheParams struct {
	Library   string
	AccountID string
}

func (q *Queries) GetAccountCache(ctx context.Context, arg GetAccountCacheParams) (AccountCache, error) {
	row := q.db.QueryRowContext(ctx, getAccountCache, arg.Library, arg.AccountID)
	var c AccountCache
	err := row.Scan(&c.Library, &c.AccountID, &c.Data, &c.RefreshedAt)
	return c, err
}

const deleteAccountCache = `delete from account_cache where library = ? and account_id = ?`

type DeleteAccountCacheParams struct {
	Library   string
	AccountID string
}

func (q *Queries) DeleteAccountCache(ctx context.Context, arg DeleteAccountCacheParams) error {
	_, err := q.db.ExecContext(ctx, deleteAccountCache, arg.Library, arg.AccountID)
	return err
}
