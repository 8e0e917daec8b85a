// Package sqlite provides a SQLite-backed exchange store.
// It implements ports.Transactor: a whole transfer commits in one SQL transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/barter/internal/storage/sqlitemigrate"
	"github.com/aretw0/barter/pkg/adapters/sqlite/migrations"
	"github.com/aretw0/barter/pkg/domain"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const (
	sideOffered   = "offered"
	sideRequested = "requested"
)

// Store persists items and proposals in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies embedded migrations.
// Write transactions take the database lock up front so concurrent transfers
// queue on busy_timeout instead of failing on lock upgrade.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetItem returns the ownership pair of an item.
func (s *Store) GetItem(ctx context.Context, id string) (domain.Ownership, error) {
	var own domain.Ownership
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT owner, owner_version FROM items WHERE id = ?`, id,
	).Scan(&own.Owner, &own.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Ownership{}, domain.ErrItemNotFound
	}
	if err != nil {
		return domain.Ownership{}, fmt.Errorf("get item: %w", err)
	}
	return own, nil
}

// SetOwnerIf performs a version-conditioned owner write.
func (s *Store) SetOwnerIf(ctx context.Context, id, newOwner string, expectedVersion int64) (int64, error) {
	if err := setOwnerIf(ctx, s.sqlDB, id, newOwner, expectedVersion); err != nil {
		return 0, err
	}
	return expectedVersion + 1, nil
}

func setOwnerIf(ctx context.Context, q queryer, id, newOwner string, expectedVersion int64) error {
	res, err := q.ExecContext(ctx,
		`UPDATE items SET owner = ?, owner_version = owner_version + 1
		  WHERE id = ? AND owner_version = ?`,
		newOwner, id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("set owner: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set owner rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	return missOr(ctx, q, `SELECT 1 FROM items WHERE id = ?`, id, domain.ErrItemNotFound, domain.ErrVersionMismatch)
}

// CreateItem stores a new item. A previously deleted ID resumes above its last version.
func (s *Store) CreateItem(ctx context.Context, item *domain.Item) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create item: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	version := domain.InitialOwnerVersion
	var last int64
	err = tx.QueryRowContext(ctx, `SELECT owner_version FROM retired_items WHERE id = ?`, item.ID).Scan(&last)
	switch {
	case err == nil:
		version = last + 1
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("read retired version: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO items (id, title, platform, condition, year, publisher, owner, owner_version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Title, item.Platform, item.Condition, item.Year, item.Publisher,
		item.Owner, version,
	); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrItemExists
		}
		return fmt.Errorf("create item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create item: %w", err)
	}
	item.OwnerVersion = version
	return nil
}

const itemColumns = `id, title, platform, condition, year, publisher, owner, owner_version`

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (domain.Item, error) {
	var item domain.Item
	err := row.Scan(&item.ID, &item.Title, &item.Platform, &item.Condition,
		&item.Year, &item.Publisher, &item.Owner, &item.OwnerVersion)
	return item, err
}

// GetItemRecord returns the full item.
func (s *Store) GetItemRecord(ctx context.Context, id string) (*domain.Item, error) {
	item, err := scanItem(s.sqlDB.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item record: %w", err)
	}
	return &item, nil
}

// ListItems returns items matching filter ordered by ID.
func (s *Store) ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	var where []string
	var args []any
	if filter.Owner != "" {
		where = append(where, "owner = ?")
		args = append(args, filter.Owner)
	}
	if filter.Year != 0 {
		where = append(where, "year = ?")
		args = append(args, filter.Year)
	}
	for column, value := range map[string]string{
		"title":     filter.Title,
		"platform":  filter.Platform,
		"publisher": filter.Publisher,
	} {
		if value != "" {
			where = append(where, "instr(lower("+column+"), lower(?)) > 0")
			args = append(args, value)
		}
	}

	query := `SELECT ` + itemColumns + ` FROM items`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// PatchItem updates the set attributes in one statement.
func (s *Store) PatchItem(ctx context.Context, id string, patch domain.ItemPatch) (*domain.Item, error) {
	var set []string
	var args []any
	add := func(column string, value any) {
		set = append(set, column+" = ?")
		args = append(args, value)
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Platform != nil {
		add("platform", *patch.Platform)
	}
	if patch.Condition != nil {
		add("condition", *patch.Condition)
	}
	if patch.Year != nil {
		add("year", *patch.Year)
	}
	if patch.Publisher != nil {
		add("publisher", *patch.Publisher)
	}
	if len(set) == 0 {
		return s.GetItemRecord(ctx, id)
	}

	args = append(args, id)
	item, err := scanItem(s.sqlDB.QueryRowContext(ctx,
		`UPDATE items SET `+strings.Join(set, ", ")+` WHERE id = ? RETURNING `+itemColumns, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("patch item: %w", err)
	}
	return &item, nil
}

// DeleteItem removes an item and records its last version in retired_items.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete item: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var version int64
	err = tx.QueryRowContext(ctx, `DELETE FROM items WHERE id = ? RETURNING owner_version`, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrItemNotFound
	}
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO retired_items (id, owner_version) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET owner_version = excluded.owner_version`,
		id, version,
	); err != nil {
		return fmt.Errorf("retire item version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete item: %w", err)
	}
	return nil
}

// GetProposal loads a proposal with its item sets.
func (s *Store) GetProposal(ctx context.Context, id string) (*domain.Proposal, error) {
	var p domain.Proposal
	var status string
	var createdAt, updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, initiator, counterparty, status, note, created_at, updated_at
		   FROM proposals WHERE id = ?`, id,
	).Scan(&p.ID, &p.Initiator, &p.Counterparty, &status, &p.Note, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProposalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	p.Status = domain.Status(status)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT side, item_id FROM proposal_items WHERE proposal_id = ? ORDER BY side, position`, id)
	if err != nil {
		return nil, fmt.Errorf("get proposal items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var side, itemID string
		if err := rows.Scan(&side, &itemID); err != nil {
			return nil, fmt.Errorf("scan proposal item: %w", err)
		}
		if side == sideOffered {
			p.OfferedItems = append(p.OfferedItems, itemID)
		} else {
			p.RequestedItems = append(p.RequestedItems, itemID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposal items: %w", err)
	}
	return &p, nil
}

// SetStatusIf performs a status-conditioned proposal write.
func (s *Store) SetStatusIf(ctx context.Context, id string, next, expected domain.Status, at time.Time) error {
	return setStatusIf(ctx, s.sqlDB, id, next, expected, at)
}

func setStatusIf(ctx context.Context, q queryer, id string, next, expected domain.Status, at time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE proposals SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(next), toMillis(at), id, string(expected),
	)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set status rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	return missOr(ctx, q, `SELECT 1 FROM proposals WHERE id = ?`, id, domain.ErrProposalNotFound, domain.ErrStatusMismatch)
}

// InsertProposal persists the proposal and its item sets in one transaction.
func (s *Store) InsertProposal(ctx context.Context, p *domain.Proposal) (string, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin insert proposal: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO proposals (id, initiator, counterparty, status, note, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Initiator, p.Counterparty, string(p.Status), p.Note, toMillis(p.CreatedAt), toMillis(p.UpdatedAt),
	); err != nil {
		return "", fmt.Errorf("insert proposal: %w", err)
	}
	for side, ids := range map[string][]string{sideOffered: p.OfferedItems, sideRequested: p.RequestedItems} {
		for i, itemID := range ids {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO proposal_items (proposal_id, side, position, item_id) VALUES (?, ?, ?, ?)`,
				p.ID, side, i, itemID,
			); err != nil {
				return "", fmt.Errorf("insert proposal item: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit insert proposal: %w", err)
	}
	return p.ID, nil
}

// ListProposals returns proposals involving account, newest first.
func (s *Store) ListProposals(ctx context.Context, account string) ([]domain.Proposal, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id FROM proposals WHERE initiator = ? OR counterparty = ?
		  ORDER BY created_at DESC, id`, account, account)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan proposal id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proposals: %w", err)
	}

	list := make([]domain.Proposal, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetProposal(ctx, id)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, nil
}

// CommitTransfer applies every owner write and the settle change in one transaction.
// Any failed precondition rolls the whole transaction back.
func (s *Store) CommitTransfer(ctx context.Context, plan domain.TransferPlan) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transfer: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, w := range plan.Writes {
		if err := setOwnerIf(ctx, tx, w.ItemID, w.To, w.ExpectedVersion); err != nil {
			return err
		}
	}
	settle := plan.Settle
	if err := setStatusIf(ctx, tx, settle.ProposalID, settle.To, settle.From, settle.At); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transfer: %w", err)
	}
	return nil
}

// missOr tells a missing row apart from a failed condition after a zero-row update.
func missOr(ctx context.Context, q queryer, query, id string, missing, mismatch error) error {
	var found int
	err := q.QueryRowContext(ctx, query, id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return missing
	}
	if err != nil {
		return fmt.Errorf("check existence: %w", err)
	}
	return mismatch
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
