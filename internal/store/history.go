package store

import (
	"context"
	"fmt"
	"time"
)

type Delivery string

const (
	DeliveryVideo    Delivery = "video"
	DeliveryDocument Delivery = "document"
	DeliveryNone     Delivery = "none"
)

type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Download is one row of the history table.
type Download struct {
	ID          int64
	ChatID      int64
	UserID      int64
	URL         string
	Platform    string
	Title       string
	DurationSec int
	SizeBytes   int64
	Delivery    Delivery
	Status      Status
	Error       string
	CreatedAt   time.Time
}

type Stats struct {
	Total     int   `json:"total"`
	Succeeded int   `json:"succeeded"`
	Failed    int   `json:"failed"`
	Bytes     int64 `json:"bytes"`
}

func (d *DB) Record(ctx context.Context, dl Download) (int64, error) {
	if dl.Delivery == "" {
		dl.Delivery = DeliveryNone
	}
	if dl.CreatedAt.IsZero() {
		dl.CreatedAt = time.Now()
	}
	res, err := d.ExecContext(ctx, `INSERT INTO downloads
		(chat_id, user_id, url, platform, title, duration_sec, size_bytes, delivery, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		dl.ChatID, dl.UserID, dl.URL, dl.Platform, dl.Title, dl.DurationSec, dl.SizeBytes,
		string(dl.Delivery), string(dl.Status), dl.Error, dl.CreatedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("record download: %w", err)
	}
	return res.LastInsertId()
}

func (d *DB) ChatStats(ctx context.Context, chatID int64) (Stats, error) {
	return d.stats(ctx, "WHERE chat_id = ?", chatID)
}

func (d *DB) Totals(ctx context.Context) (Stats, error) {
	return d.stats(ctx, "")
}

func (d *DB) stats(ctx context.Context, where string, args ...any) (Stats, error) {
	var s Stats
	err := d.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN status = 'ok' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'ok' THEN size_bytes ELSE 0 END), 0)
		FROM downloads `+where, args...).Scan(&s.Total, &s.Succeeded, &s.Failed, &s.Bytes)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return s, nil
}

// Recent returns the newest downloads of a chat, newest first.
func (d *DB) Recent(ctx context.Context, chatID int64, limit int) ([]Download, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := d.QueryContext(ctx, `SELECT id, chat_id, user_id, url, platform, title, duration_sec,
		size_bytes, delivery, status, error, created_at
		FROM downloads WHERE chat_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []Download
	for rows.Next() {
		var (
			dl       Download
			delivery string
			status   string
			created  int64
		)
		if err := rows.Scan(&dl.ID, &dl.ChatID, &dl.UserID, &dl.URL, &dl.Platform, &dl.Title,
			&dl.DurationSec, &dl.SizeBytes, &delivery, &status, &dl.Error, &created); err != nil {
			return nil, err
		}
		dl.Delivery = Delivery(delivery)
		dl.Status = Status(status)
		dl.CreatedAt = time.UnixMilli(created)
		out = append(out, dl)
	}
	return out, rows.Err()
}
