package db

import (
	"context"
	"database/sql"
	"time"
)

const listFolders = `SELECT id, name, parent_id, created_at FROM folders
ORDER BY id
LIMIT ? OFFSET ?`

func (q *Queries) ListFolders(ctx context.Context, arg ListParams) ([]Folder, error) {
	rows, err := q.db.QueryContext(ctx, listFolders, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Folder{}
	for rows.Next() {
		var i Folder
		if err := rows.Scan(&i.ID, &i.Name, &i.ParentID, &i.CreatedAt); err != nil {
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

const getFolder = `SELECT id, name, parent_id, created_at FROM folders
WHERE id = ?`

func (q *Queries) GetFolder(ctx context.Context, id int64) (Folder, error) {
	row := q.db.QueryRowContext(ctx, getFolder, id)
	var i Folder
	err := row.Scan(&i.ID, &i.Name, &i.ParentID, &i.CreatedAt)
	return i, err
}

const getFolderParentID = `SELECT parent_id FROM folders
WHERE id = ?`

func (q *Queries) GetFolderParentID(ctx context.Context, id int64) (sql.NullInt64, error) {
	row := q.db.QueryRowContext(ctx, getFolderParentID, id)
	var parentID sql.NullInt64
	err := row.Scan(&parentID)
	return parentID, err
}

const countFolders = `SELECT COUNT(*) FROM folders`

func (q *Queries) CountFolders(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countFolders)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createFolder = `INSERT INTO folders (name, parent_id, created_at)
VALUES (?, ?, ?)`

type CreateFolderParams struct {
	Name      string
	ParentID  sql.NullInt64
	CreatedAt time.Time
}

func (q *Queries) CreateFolder(ctx context.Context, arg CreateFolderParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createFolder, arg.Name, arg.ParentID, arg.CreatedAt)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const updateFolder = `UPDATE folders
SET name = ?, parent_id = ?
WHERE id = ?`

type UpdateFolderParams struct {
	Name     string
	ParentID sql.NullInt64
	ID       int64
}

func (q *Queries) UpdateFolder(ctx context.Context, arg UpdateFolderParams) error {
	_, err := q.db.ExecContext(ctx, updateFolder, arg.Name, arg.ParentID, arg.ID)
	return err
}

const deleteFolder = `DELETE FROM folders
WHERE id = ?`

func (q *Queries) DeleteFolder(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteFolder, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
