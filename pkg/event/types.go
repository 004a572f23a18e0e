// Package event はライブ更新プロトコルで交換するイベントの種類とペイロードを定義する。
//
// クライアントから受信するメッセージ（inbound）と、サーバーが同一ユーザーの
// 全接続へ中継するイベント（outbound）の両方をここで定義する。
package event

import (
	"encoding/json"
	"time"
)

// Type はメッセージの種類を表す。JSONの "type" フィールドに対応する。
type Type string

const (
	// TypeFileUpdate はファイル内容の編集を通知するinboundメッセージ。
	TypeFileUpdate Type = "file_update"
	// TypeFileSave はファイルの保存を通知するinboundメッセージ。
	TypeFileSave Type = "file_save"
	// TypeFolderUpdate はフォルダ名の変更を通知するinboundメッセージ。
	TypeFolderUpdate Type = "folder_update"
	// TypeTimelineUpdate はタイムラインの変更を通知するinboundメッセージ。
	TypeTimelineUpdate Type = "timeline_update"
	// TypeGraphUpdate はグラフの変更を通知するinboundメッセージ。
	TypeGraphUpdate Type = "graph_update"
)

const (
	// TypeFileUpdated はファイル内容が編集されたことを表す。
	TypeFileUpdated Type = "file_updated"
	// TypeFileSaved はファイルが保存されたことを表す。
	TypeFileSaved Type = "file_saved"
	// TypeFolderUpdated はフォルダが変更されたことを表す。
	TypeFolderUpdated Type = "folder_updated"
	// TypeTimelineUpdated はタイムラインが変更されたことを表す。
	TypeTimelineUpdated Type = "timeline_updated"
	// TypeGraphUpdated はグラフが変更されたことを表す。
	TypeGraphUpdated Type = "graph_updated"
	// TypeEcho は未知の種類のメッセージを送信者へ返すときに使う。
	TypeEcho Type = "echo"
	// TypeError は解析・検証できなかったメッセージを送信者へ返すときに使う。
	TypeError Type = "error"
)

// UnknownMessageType はechoイベントのmessageに入る固定文言。
const UnknownMessageType = "Unknown message type"

// FileUpdate はfile_updateメッセージ。
type FileUpdate struct {
	FileID  *int64  `json:"file_id" validate:"required"`
	Content *string `json:"content" validate:"required"`
}

// FileSave はfile_saveメッセージ。
type FileSave struct {
	FileID *int64 `json:"file_id" validate:"required"`
}

// FolderUpdate はfolder_updateメッセージ。
type FolderUpdate struct {
	FolderID *int64  `json:"folder_id" validate:"required"`
	Name     *string `json:"name" validate:"required"`
}

// TimelineUpdate はtimeline_updateメッセージ。
type TimelineUpdate struct {
	TimelineID    *int64  `json:"timeline_id" validate:"required"`
	MilestoneName *string `json:"milestone_name" validate:"required"`
}

// GraphUpdate はgraph_updateメッセージ。
type GraphUpdate struct {
	NodeID *int64 `json:"node_id" validate:"required"`
	EdgeID *int64 `json:"edge_id" validate:"required"`
}

// FileUpdated はfile_updatedイベント。
type FileUpdated struct {
	// Type は常に file_updated。
	Type Type `json:"type"`
	// FileID は編集されたファイルのID。
	FileID int64 `json:"file_id"`
	// Content は編集後の本文。
	Content string `json:"content"`
	// Timestamp はサーバーがイベントを生成した日時。
	Timestamp time.Time `json:"timestamp"`
}

// FileSaved はfile_savedイベント。
type FileSaved struct {
	Type      Type      `json:"type"`
	FileID    int64     `json:"file_id"`
	Timestamp time.Time `json:"timestamp"`
}

// FolderUpdated はfolder_updatedイベント。
type FolderUpdated struct {
	Type      Type      `json:"type"`
	FolderID  int64     `json:"folder_id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

// TimelineUpdated はtimeline_updatedイベント。
type TimelineUpdated struct {
	Type          Type      `json:"type"`
	TimelineID    int64     `json:"timeline_id"`
	MilestoneName string    `json:"milestone_name"`
	Timestamp     time.Time `json:"timestamp"`
}

// GraphUpdated はgraph_updatedイベント。
// エンティティストア由来の通知ではノードまたはエッジの一方がnullになる。
type GraphUpdated struct {
	Type      Type      `json:"type"`
	NodeID    *int64    `json:"node_id"`
	EdgeID    *int64    `json:"edge_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Echo は未知の種類のメッセージに対する応答。送信者にのみ返す。
type Echo struct {
	// Type は常に echo。
	Type Type `json:"type"`
	// Message は固定文言 "Unknown message type"。
	Message string `json:"message"`
	// Original は受信したメッセージそのもの。
	Original json.RawMessage `json:"original"`
}

// Error は解析・検証に失敗したメッセージへの応答。送信者にのみ返し、接続は維持する。
type Error struct {
	// Type は常に error。
	Type Type `json:"type"`
	// Error はエラー種別（malformed_message / validation）。
	Error string `json:"error"`
	// Message は失敗内容の説明。
	Message string `json:"message"`
	// Timestamp はサーバーが応答を生成した日時。
	Timestamp time.Time `json:"timestamp"`
}
