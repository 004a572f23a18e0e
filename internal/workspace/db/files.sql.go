package db

import (
	"context"
	"database/sql"
	"time"
)

const listFiles = `SELECT id, name, content, folder_id, last_edited_at, created_at FROM files
ORDER BY id
LIMIT ? OFFSET ?`

func (q *Queries) ListFiles(ctx context.Context, arg ListParams) ([]File, error) {
	rows, err := q.db.QueryContext(ctx, listFiles, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []File{}
	for rows.Next() {
		var i File
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Content,
			&i.FolderID,
			&i.LastEditedAt,
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

const getFile = `SELECT id, name, content, folder_id, last_edited_at, created_at FROM files
WHERE id = ?`

func (q *Queries) GetFile(ctx context.Context, id int64) (File, error) {
	row := q.db.QueryRowContext(ctx, getFile, id)
	var i File
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Content,
		&i.FolderID,
		&i.LastEditedAt,
		&i.CreatedAt,
	)
	return i, err
}

const createFile = `INSERT INTO files (name, content, folder_id, last_edited_at, created_at)
VALUES (?, ?, ?, ?, ?)`

type CreateFileParams struct {
	Name         string
	Content      string
	FolderID     sql.NullInt64
	LastEditedAt time.Time
	CreatedAt    time.Time
}

func (q *Queries) CreateFile(ctx context.Context, arg CreateFileParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createFile,
		arg.Name,
		arg.Content,
		arg.FolderID,
		arg.LastEditedAt,
		arg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const updateFile = `UPDATE files
SET name = ?, content = ?, folder_id = ?, last_edited_at = ?
WHERE id = ?`

type UpdateFileParams struct {
	Name         string
	Content      string
	FolderID     sql.NullInt64
	LastEditedAt time.Time
	ID           int64
}

func (q *Queries) UpdateFile(ctx context.Context, arg UpdateFileParams) error {
	_, err := q.db.ExecContext(ctx, updateFile,
		arg.Name,
		arg.Content,
		arg.FolderID,
		arg.LastEditedAt,
		arg.ID,
	)
	return err
}

const deleteFile = `DELETE FROM files
WHERE id = ?`

func (q *Queries) DeleteFile(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteFile, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
