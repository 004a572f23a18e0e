package db

import (
	"database/sql"
	"time"
)

// Folder はfoldersテーブルの行。
type Folder struct {
	ID        int64
	Name      string
	ParentID  sql.NullInt64
	CreatedAt time.Time
}

// File はfilesテーブルの行。
type File struct {
	ID           int64
	Name         string
	Content      string
	FolderID     sql.NullInt64
	LastEditedAt time.Time
	CreatedAt    time.Time
}

// Timeline はtimelineテーブルの行。
type Timeline struct {
	ID            int64
	FileID        int64
	MilestoneName string
	Timestamp     time.Time
	CreatedAt     time.Time
}

// GraphNode はgraph_nodesテーブルの行。
type GraphNode struct {
	ID           int64
	FileID       int64
	NodeName     string
	NodeMetadata string
	CreatedAt    time.Time
}

// GraphEdge はgraph_edgesテーブルの行。
type GraphEdge struct {
	ID        int64
	FromNode  int64
	ToNode    int64
	CreatedAt time.Time
}
