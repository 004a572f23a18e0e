package db

import (
	"context"
	"time"
)

// 親ファイルが解決できない行は一覧に含めない
const listTimeline = `SELECT t.id, t.file_id, t.milestone_name, t.timestamp, t.created_at
FROM timeline t
JOIN files f ON f.id = t.file_id
ORDER BY t.id
LIMIT ? OFFSET ?`

func (q *Queries) ListTimeline(ctx context.Context, arg ListParams) ([]Timeline, error) {
	rows, err := q.db.QueryContext(ctx, listTimeline, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Timeline{}
	for rows.Next() {
		var i Timeline
		if err := rows.Scan(
			&i.ID,
			&i.FileID,
			&i.MilestoneName,
			&i.Timestamp,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getTimeline = `SELECT id, file_id, milestone_name, timestamp, created_at FROM timeline
WHERE id = ?`

func (q *Queries) GetTimeline(ctx context.Context, id int64) (Timeline, error) {
	row := q.db.QueryRowContext(ctx, getTimeline, id)
	var i Timeline
	err := row.Scan(
		&i.ID,
		&i.FileID,
		&i.MilestoneName,
		&i.Timestamp,
		&i.CreatedAt,
	)
	return i, err
}

const createTimeline = `INSERT INTO timeline (file_id, milestone_name, timestamp, created_at)
VALUES (?, ?, ?, ?)`

type CreateTimelineParams struct {
	FileID        int64
	MilestoneName string
	Timestamp     time.Time
	CreatedAt     time.Time
}

func (q *Queries) CreateTimeline(ctx context.Context, arg CreateTimelineParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createTimeline,
		arg.FileID,
		arg.MilestoneName,
		arg.Timestamp,
		arg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const updateTimeline = `UPDATE timeline
SET milestone_name = ?, timestamp = ?
WHERE id = ?`

type UpdateTimelineParams struct {
	MilestoneName string
	Timestamp     time.Time
	ID            int64
}

func (q *Queries) UpdateTimeline(ctx context.Context, arg UpdateTimelineParams) error {
	_, err := q.db.ExecContext(ctx, updateTimeline, arg.MilestoneName, arg.Timestamp, arg.ID)
	return err
}

const deleteTimeline = `DELETE FROM timeline
WHERE id = ?`

func (q *Queries) DeleteTimeline(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTimeline, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
