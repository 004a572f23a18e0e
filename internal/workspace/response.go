package workspace

import (
	"database/sql"
	"time"

	"github.com/nao1215/pensift/internal/workspace/db"
)

// folderResponse はフォルダのJSONレスポンス構造。
type folderResponse struct {
	// ID はフォルダの一意識別子。
	ID int64 `json:"id"`
	// Name はフォルダ名。
	Name string `json:"name"`
	// ParentID は親フォルダのID。ルートはnull。
	ParentID *int64 `json:"parent_id"`
	// CreatedAt は作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// fileResponse はファイルのJSONレスポンス構造。
type fileResponse struct {
	// ID はファイルの一意識別子。
	ID int64 `json:"id"`
	// Name はファイル名。
	Name string `json:"name"`
	// Content は本文。
	Content string `json:"content"`
	// FolderID は所属フォルダのID。未所属はnull。
	FolderID *int64 `json:"folder_id"`
	// LastEditedAt は最終編集日時（RFC3339形式）。
	LastEditedAt string `json:"last_edited_at"`
	// CreatedAt は作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// timelineResponse はタイムラインエントリのJSONレスポンス構造。
type timelineResponse struct {
	ID            int64  `json:"id"`
	FileID        int64  `json:"file_id"`
	MilestoneName string `json:"milestone_name"`
	Timestamp     string `json:"timestamp"`
	CreatedAt     string `json:"created_at"`
}

// nodeResponse はグラフノードのJSONレスポンス構造。
type nodeResponse struct {
	ID           int64  `json:"id"`
	FileID       int64  `json:"file_id"`
	NodeName     string `json:"node_name"`
	NodeMetadata string `json:"node_metadata"`
	CreatedAt    string `json:"created_at"`
}

// edgeResponse はグラフエッジのJSONレスポンス構造。
type edgeResponse struct {
	ID        int64  `json:"id"`
	FromNode  int64  `json:"from_node"`
	ToNode    int64  `json:"to_node"`
	CreatedAt string `json:"created_at"`
}

// formatTime は日時をUTCのRFC3339形式（ナノ秒まで）にする。
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func toFolderResponse(f db.Folder) folderResponse {
	return folderResponse{
		ID:        f.ID,
		Name:      f.Name,
		ParentID:  int64Ptr(f.ParentID),
		CreatedAt: formatTime(f.CreatedAt),
	}
}

func toFileResponse(f db.File) fileResponse {
	return fileResponse{
		ID:           f.ID,
		Name:         f.Name,
		Content:      f.Content,
		FolderID:     int64Ptr(f.FolderID),
		LastEditedAt: formatTime(f.LastEditedAt),
		CreatedAt:    formatTime(f.CreatedAt),
	}
}

func toTimelineResponse(t db.Timeline) timelineResponse {
	return timelineResponse{
		ID:            t.ID,
		FileID:        t.FileID,
		MilestoneName: t.MilestoneName,
		Timestamp:     formatTime(t.Timestamp),
		CreatedAt:     formatTime(t.CreatedAt),
	}
}

func toNodeResponse(n db.GraphNode) nodeResponse {
	return nodeResponse{
		ID:           n.ID,
		FileID:       n.FileID,
		NodeName:     n.NodeName,
		NodeMetadata: n.NodeMetadata,
		CreatedAt:    formatTime(n.CreatedAt),
	}
}

func toEdgeResponse(e db.GraphEdge) edgeResponse {
	return edgeResponse{
		ID:        e.ID,
		FromNode:  e.FromNode,
		ToNode:    e.ToNode,
		CreatedAt: formatTime(e.CreatedAt),
	}
}

// toResponses はDB行のスライスをJSONレスポンスのスライスに変換する。
// 空の場合もnullではなく [] を返す。
func toResponses[T, R any](rows []T, convert func(T) R) []R {
	responses := make([]R, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, convert(row))
	}
	return responses
}
