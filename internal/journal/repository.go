// Package journal records every radio reception and how the bridge
// classified it, for after-the-fact diagnosis of adapter traffic.
package journal

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Outcome is what the bridge did with a reception.
type Outcome string

// Reception outcomes.
const (
	OutcomeIgnored      Outcome = "ignored"
	OutcomePublished    Outcome = "published"
	OutcomeUnresolved   Outcome = "unresolved"
	OutcomeNoResponse   Outcome = "no_response"
	OutcomeUnclassified Outcome = "unclassified"
)

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Paging limits for List.
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Entry is one journal row.
type Entry struct {
	ID       string  `json:"id"`
	Mode     uint8   `json:"mode"`
	Command  uint8   `json:"command"`
	Result   uint8   `json:"result"`
	Channel  uint8   `json:"channel"`
	Data     [4]byte `json:"data"`
	DeviceID uint32  `json:"device_id"`
	Outcome  Outcome `json:"outcome"`
	// Detail is a short human-readable note, e.g. the topics published.
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Channel *uint8  // optional
	Outcome Outcome // optional
	Limit   int     // default 50, max 500
	Offset  int
}

// ListResult is one page of journal entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines the journal storage operations.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// SQLiteRepository stores the journal in the reception_journal table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a journal repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts an entry. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = "rcv-" + uuid.NewString()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reception_journal (id, mode, command, result, channel, data, device_id, outcome, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Mode, entry.Command, entry.Result, entry.Channel,
		hex.EncodeToString(entry.Data[:]), entry.DeviceID,
		string(entry.Outcome), entry.Detail,
		entry.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.Channel != nil {
		conditions = append(conditions, "channel = ?")
		args = append(args, *filter.Channel)
	}
	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM reception_journal %s", where) //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting journal entries: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		`SELECT id, mode, command, result, channel, data, device_id, outcome, detail, created_at
		 FROM reception_journal %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var data, outcome, createdAt string

		if err := rows.Scan(&e.ID, &e.Mode, &e.Command, &e.Result, &e.Channel,
			&data, &e.DeviceID, &outcome, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}

		raw, err := hex.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("decoding journal data %q: %w", data, err)
		}
		copy(e.Data[:], raw)
		e.Outcome = Outcome(outcome)

		e.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing journal timestamp %q: %w", createdAt, err)
		}

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal entries: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// Prune deletes entries created before the cutoff and returns how many went.
func (r *SQLiteRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM reception_journal WHERE created_at < ?",
		before.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	return n, nil
}
