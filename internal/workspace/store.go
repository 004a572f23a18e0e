package workspace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/pensift/internal/workspace/db"
	"github.com/nao1215/pensift/pkg/apperr"
)

// 見つからない場合のメッセージ。クライアントはdetailの文言をそのまま表示する。
const (
	msgFolderNotFound   = "Folder not found"
	msgParentNotFound   = "Parent folder not found"
	msgFileNotFound     = "File not found"
	msgTimelineNotFound = "Timeline entry not found"
	msgNodeNotFound     = "Node not found"
	msgEdgeNotFound     = "Edge not found"
	msgNodesNotFound    = "One or both nodes not found"
)

const (
	// defaultNodeMetadata はメタデータ未指定のノードに入る値。
	defaultNodeMetadata = "{}"
	// defaultListLimit は一覧取得の既定の件数。
	defaultListLimit int64 = 100
)

// Page は一覧取得のページング条件。
type Page struct {
	// Offset は読み飛ばす行数。
	Offset int64
	// Limit は返す最大行数。
	Limit int64
}

// DefaultPage は既定のページング条件（skip=0, limit=100）を返す。
func DefaultPage() Page {
	return Page{Offset: 0, Limit: defaultListLimit}
}

func (p Page) validate() error {
	if p.Offset < 0 || p.Limit < 0 {
		return apperr.Validation("skip and limit must be non-negative", nil)
	}
	return nil
}

func (p Page) params() db.ListParams {
	return db.ListParams{Limit: p.Limit, Offset: p.Offset}
}

// FolderCreate はフォルダ作成の入力。
type FolderCreate struct {
	Name     string
	ParentID *int64
}

// FolderUpdate はフォルダの部分更新の入力。nilのフィールドは変更しない。
type FolderUpdate struct {
	Name     *string
	ParentID *int64
}

// IsEmpty は変更するフィールドが1つも無い場合にtrueを返す。
func (u FolderUpdate) IsEmpty() bool {
	return u.Name == nil && u.ParentID == nil
}

// FileCreate はファイル作成の入力。
type FileCreate struct {
	Name     string
	Content  string
	FolderID *int64
}

// FileUpdate はファイルの部分更新の入力。nilのフィールドは変更しない。
type FileUpdate struct {
	Name     *string
	Content  *string
	FolderID *int64
}

// IsEmpty は変更するフィールドが1つも無い場合にtrueを返す。
func (u FileUpdate) IsEmpty() bool {
	return u.Name == nil && u.Content == nil && u.FolderID == nil
}

// TimelineCreate はタイムラインエントリ作成の入力。
type TimelineCreate struct {
	FileID        int64
	MilestoneName string
	// Timestamp がnilの場合は作成日時を使う。
	Timestamp *time.Time
}

// TimelineUpdate はタイムラインエントリの部分更新の入力。
type TimelineUpdate struct {
	MilestoneName *string
	Timestamp     *time.Time
}

// IsEmpty は変更するフィールドが1つも無い場合にtrueを返す。
func (u TimelineUpdate) IsEmpty() bool {
	return u.MilestoneName == nil && u.Timestamp == nil
}

// NodeCreate はグラフノード作成の入力。
type NodeCreate struct {
	FileID   int64
	NodeName string
	// NodeMetadata がnilの場合は "{}" を使う。内容は検証しない。
	NodeMetadata *string
}

// NodeUpdate はグラフノードの部分更新の入力。
type NodeUpdate struct {
	NodeName     *string
	NodeMetadata *string
}

// IsEmpty は変更するフィールドが1つも無い場合にtrueを返す。
func (u NodeUpdate) IsEmpty() bool {
	return u.NodeName == nil && u.NodeMetadata == nil
}

// EdgeCreate はグラフエッジ作成の入力。自己ループと多重辺は許可する。
type EdgeCreate struct {
	FromNode int64
	ToNode   int64
}

// EdgeUpdate はグラフエッジの部分更新の入力。
type EdgeUpdate struct {
	FromNode *int64
	ToNode   *int64
}

// IsEmpty は変更するフィールドが1つも無い場合にtrueを返す。
func (u EdgeUpdate) IsEmpty() bool {
	return u.FromNode == nil && u.ToNode == nil
}

// Store はエンティティの永続化と参照整合性の検証を行う。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
	// queries はワークスペースのクエリ実行オブジェクト。
	queries *db.Queries
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time
}

// NewStore は新しいStoreを生成する。
func NewStore(sqlDB *sql.DB) *Store {
	return &Store{
		db:      sqlDB,
		queries: db.New(sqlDB),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// inTx はfnをトランザクション内で実行する。fnがエラーを返した場合はロールバックする。
func (s *Store) inTx(ctx context.Context, fn func(q *db.Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

// notFoundOr はsql.ErrNoRowsをNotFoundに変換し、それ以外はラップして返す。
func notFoundOr(err error, notFoundMessage, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(notFoundMessage)
	}
	return fmt.Errorf("%sに失敗: %w", op, err)
}

// deleted は削除件数が0ならNotFoundを返す。
func deleted(affected int64, err error, notFoundMessage, op string) error {
	if err != nil {
		return fmt.Errorf("%sに失敗: %w", op, err)
	}
	if affected == 0 {
		return apperr.NotFound(notFoundMessage)
	}
	return nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// ---- Folder ----

// ListFolders はフォルダをID順に返す。
func (s *Store) ListFolders(ctx context.Context, page Page) ([]db.Folder, error) {
	if err := page.validate(); err != nil {
		return nil, err
	}
	folders, err := s.queries.ListFolders(ctx, page.params())
	if err != nil {
		return nil, fmt.Errorf("フォルダ一覧の取得に失敗: %w", err)
	}
	return folders, nil
}

// GetFolder はフォルダを返す。
func (s *Store) GetFolder(ctx context.Context, id int64) (db.Folder, error) {
	folder, err := s.queries.GetFolder(ctx, id)
	if err != nil {
		return db.Folder{}, notFoundOr(err, msgFolderNotFound, "フォルダの取得")
	}
	return folder, nil
}

// CreateFolder はフォルダを作成する。parent_idを指定する場合は既存のフォルダでなければならない。
func (s *Store) CreateFolder(ctx context.Context, in FolderCreate) (db.Folder, error) {
	var folder db.Folder
	err := s.inTx(ctx, func(q *db.Queries) error {
		if in.ParentID != nil {
			if _, err := q.GetFolder(ctx, *in.ParentID); err != nil {
				return notFoundOr(err, msgParentNotFound, "親フォルダの取得")
			}
		}

		id, err := q.CreateFolder(ctx, db.CreateFolderParams{
			Name:      in.Name,
			ParentID:  nullInt64(in.ParentID),
			CreatedAt: s.now(),
		})
		if err != nil {
			return fmt.Errorf("フォルダの作成に失敗: %w", err)
		}

		folder, err = q.GetFolder(ctx, id)
		return err
	})
	return folder, err
}

// UpdateFolder は指定されたフィールドだけを更新する。
// parent_idを変更する場合、親の存在と循環しないことを検証する。
func (s *Store) UpdateFolder(ctx context.Context, id int64, in FolderUpdate) (db.Folder, error) {
	var folder db.Folder
	err := s.inTx(ctx, func(q *db.Queries) error {
		current, err := q.GetFolder(ctx, id)
		if err != nil {
			return notFoundOr(err, msgFolderNotFound, "フォルダの取得")
		}
		if in.IsEmpty() {
			folder = current
			return nil
		}

		params := db.UpdateFolderParams{ID: id, Name: current.Name, ParentID: current.ParentID}
		if in.Name != nil {
			params.Name = *in.Name
		}
		if in.ParentID != nil {
			if _, err := q.GetFolder(ctx, *in.ParentID); err != nil {
				return notFoundOr(err, msgParentNotFound, "親フォルダの取得")
			}
			if err := checkFolderCycle(ctx, q, id, *in.ParentID); err != nil {
				return err
			}
			params.ParentID = nullInt64(in.ParentID)
		}

		if err := q.UpdateFolder(ctx, params); err != nil {
			return fmt.Errorf("フォルダの更新に失敗: %w", err)
		}
		folder, err = q.GetFolder(ctx, id)
		return err
	})
	return folder, err
}

// checkFolderCycle はfolderIDをparentIDの子にすると循環するかを調べる。
// parentIDから根に向かって祖先をたどり、folderIDに行き当たれば循環とみなす。
// たどる回数はフォルダの総数で打ち切る。
func checkFolderCycle(ctx context.Context, q *db.Queries, folderID, parentID int64) error {
	if folderID == parentID {
		return apperr.Cycle("A folder cannot be its own parent")
	}

	total, err := q.CountFolders(ctx)
	if err != nil {
		return fmt.Errorf("フォルダ数の取得に失敗: %w", err)
	}

	current := parentID
	for range total {
		parent, err := q.GetFolderParentID(ctx, current)
		if err != nil {
			return notFoundOr(err, msgParentNotFound, "祖先フォルダの取得")
		}
		if !parent.Valid {
			return nil
		}
		if parent.Int64 == folderID {
			return apperr.Cycle("Moving the folder would create a cycle")
		}
		current = parent.Int64
	}
	// 総数を超えてたどれるのは既存の循環がある場合だけ
	return apperr.Cycle("Folder hierarchy already contains a cycle")
}

// DeleteFolder はフォルダを削除する。子フォルダと所属ファイルはルートに移る。
func (s *Store) DeleteFolder(ctx context.Context, id int64) error {
	affected, err := s.queries.DeleteFolder(ctx, id)
	return deleted(affected, err, msgFolderNotFound, "フォルダの削除")
}

// ---- File ----

// ListFiles はファイルをID順に返す。
func (s *Store) ListFiles(ctx context.Context, page Page) ([]db.File, error) {
	if err := page.validate(); err != nil {
		return nil, err
	}
	files, err := s.queries.ListFiles(ctx, page.params())
	if err != nil {
		return nil, fmt.Errorf("ファイル一覧の取得に失敗: %w", err)
	}
	return files, nil
}

// GetFile はファイルを返す。
func (s *Store) GetFile(ctx context.Context, id int64) (db.File, error) {
	file, err := s.queries.GetFile(ctx, id)
	if err != nil {
		return db.File{}, notFoundOr(err, msgFileNotFound, "ファイルの取得")
	}
	return file, nil
}

// CreateFile はファイルを作成する。folder_idを指定する場合は既存のフォルダでなければならない。
func (s *Store) CreateFile(ctx context.Context, in FileCreate) (db.File, error) {
	var file db.File
	err := s.inTx(ctx, func(q *db.Queries) error {
		if in.FolderID != nil {
			if _, err := q.GetFolder(ctx, *in.FolderID); err != nil {
				return notFoundOr(err, msgFolderNotFound, "フォルダの取得")
			}
		}

		now := s.now()
		id, err := q.CreateFile(ctx, db.CreateFileParams{
			Name:         in.Name,
			Content:      in.Content,
			FolderID:     nullInt64(in.FolderID),
			LastEditedAt: now,
			CreatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("ファイルの作成に失敗: %w", err)
		}

		file, err = q.GetFile(ctx, id)
		return err
	})
	return file, err
}

// UpdateFile は指定されたフィールドだけを更新し、last_edited_atを進める。
// 何も指定されなかった場合は現在の状態をそのまま返す。
func (s *Store) UpdateFile(ctx context.Context, id int64, in FileUpdate) (db.File, error) {
	var file db.File
	err := s.inTx(ctx, func(q *db.Queries) error {
		current, err := q.GetFile(ctx, id)
		if err != nil {
			return notFoundOr(err, msgFileNotFound, "ファイルの取得")
		}
		if in.IsEmpty() {
			file = current
			return nil
		}

		params := db.UpdateFileParams{
			ID:           id,
			Name:         current.Name,
			Content:      current.Content,
			FolderID:     current.FolderID,
			LastEditedAt: s.nextEditTime(current.LastEditedAt),
		}
		if in.Name != nil {
			params.Name = *in.Name
		}
		if in.Content != nil {
			params.Content = *in.Content
		}
		if in.FolderID != nil {
			if _, err := q.GetFolder(ctx, *in.FolderID); err != nil {
				return notFoundOr(err, msgFolderNotFound, "フォルダの取得")
			}
			params.FolderID = nullInt64(in.FolderID)
		}

		if err := q.UpdateFile(ctx, params); err != nil {
			return fmt.Errorf("ファイルの更新に失敗: %w", err)
		}
		file, err = q.GetFile(ctx, id)
		return err
	})
	return file, err
}

// nextEditTime は前回の編集日時より必ず後になる編集日時を返す。
func (s *Store) nextEditTime(previous time.Time) time.Time {
	next := s.now()
	if !next.After(previous) {
		next = previous.Add(time.Microsecond)
	}
	return next
}

// DeleteFile はファイルを削除する。タイムラインとグラフノードも削除される。
func (s *Store) DeleteFile(ctx context.Context, id int64) error {
	affected, err := s.queries.DeleteFile(ctx, id)
	return deleted(affected, err, msgFileNotFound, "ファイルの削除")
}

// ---- Timeline ----

// ListTimeline はファイルが存在するタイムラインエントリをID順に返す。
func (s *Store) ListTimeline(ctx context.Context, page Page) ([]db.Timeline, error) {
	if err := page.validate(); err != nil {
		return nil, err
	}
	entries, err := s.queries.ListTimeline(ctx, page.params())
	if err != nil {
		return nil, fmt.Errorf("タイムライン一覧の取得に失敗: %w", err)
	}
	return entries, nil
}

// GetTimeline はタイムラインエントリを返す。
func (s *Store) GetTimeline(ctx context.Context, id int64) (db.Timeline, error) {
	entry, err := s.queries.GetTimeline(ctx, id)
	if err != nil {
		return db.Timeline{}, notFoundOr(err, msgTimelineNotFound, "タイムラインの取得")
	}
	return entry, nil
}

// CreateTimeline はタイムラインエントリを作成する。file_idは既存のファイルでなければならない。
func (s *Store) CreateTimeline(ctx context.Context, in TimelineCreate) (db.Timeline, error) {
	var entry db.Timeline
	err := s.inTx(ctx, func(q *db.Queries) error {
		if _, err := q.GetFile(ctx, in.FileID); err != nil {
			return notFoundOr(err, msgFileNotFound, "ファイルの取得")
		}

		now := s.now()
		timestamp := now
		if in.Timestamp != nil {
			timestamp = in.Timestamp.UTC()
		}
		id, err := q.CreateTimeline(ctx, db.CreateTimelineParams{
			FileID:        in.FileID,
			MilestoneName: in.MilestoneName,
			Timestamp:     timestamp,
			CreatedAt:     now,
		})
		if err != nil {
			return fmt.Errorf("タイムラインの作成に失敗: %w", err)
		}

		entry, err = q.GetTimeline(ctx, id)
		return err
	})
	return entry, err
}

// UpdateTimeline は指定されたフィールドだけを更新する。
func (s *Store) UpdateTimeline(ctx context.Context, id int64, in TimelineUpdate) (db.Timeline, error) {
	var entry db.Timeline
	err := s.inTx(ctx, func(q *db.Queries) error {
		current, err := q.GetTimeline(ctx, id)
		if err != nil {
			return notFoundOr(err, msgTimelineNotFound, "タイムラインの取得")
		}
		if in.IsEmpty() {
			entry = current
			return nil
		}

		params := db.UpdateTimelineParams{ID: id, MilestoneName: current.MilestoneName, Timestamp: current.Timestamp}
		if in.MilestoneName != nil {
			params.MilestoneName = *in.MilestoneName
		}
		if in.Timestamp != nil {
			params.Timestamp = in.Timestamp.UTC()
		}

		if err := q.UpdateTimeline(ctx, params); err != nil {
			return fmt.Errorf("タイムラインの更新に失敗: %w", err)
		}
		entry, err = q.GetTimeline(ctx, id)
		return err
	})
	return entry, err
}

// DeleteTimeline はタイムラインエントリを削除する。
func (s *Store) DeleteTimeline(ctx context.Context, id int64) error {
	affected, err := s.queries.DeleteTimeline(ctx, id)
	return deleted(affected, err, msgTimelineNotFound, "タイムラインの削除")
}

// ---- GraphNode ----

// ListNodes はファイルが存在するグラフノードをID順に返す。
func (s *Store) ListNodes(ctx context.Context, page Page) ([]db.GraphNode, error) {
	if err := page.validate(); err != nil {
		return nil, err
	}
	nodes, err := s.queries.ListGraphNodes(ctx, page.params())
	if err != nil {
		return nil, fmt.Errorf("ノード一覧の取得に失敗: %w", err)
	}
	return nodes, nil
}

// GetNode はグラフノードを返す。
func (s *Store) GetNode(ctx context.Context, id int64) (db.GraphNode, error) {
	node, err := s.queries.GetGraphNode(ctx, id)
	if err != nil {
		return db.GraphNode{}, notFoundOr(err, msgNodeNotFound, "ノードの取得")
	}
	return node, nil
}

// CreateNode はグラフノードを作成する。file_idは既存のファイルでなければならない。
func (s *Store) CreateNode(ctx context.Context, in NodeCreate) (db.GraphNode, error) {
	var node db.GraphNode
	err := s.inTx(ctx, func(q *db.Queries) error {
		if _, err := q.GetFile(ctx, in.FileID); err != nil {
			return notFoundOr(err, msgFileNotFound, "ファイルの取得")
		}

		metadata := defaultNodeMetadata
		if in.NodeMetadata != nil {
			metadata = *in.NodeMetadata
		}
		id, err := q.CreateGraphNode(ctx, db.CreateGraphNodeParams{
			FileID:       in.FileID,
			NodeName:     in.NodeName,
			NodeMetadata: metadata,
			CreatedAt:    s.now(),
		})
		if err != nil {
			return fmt.Errorf("ノードの作成に失敗: %w", err)
		}

		node, err = q.GetGraphNode(ctx, id)
		return err
	})
	return node, err
}

// UpdateNode は指定されたフィールドだけを更新する。
func (s *Store) UpdateNode(ctx context.Context, id int64, in NodeUpdate) (db.GraphNode, error) {
	var node db.GraphNode
	err := s.inTx(ctx, func(q *db.Queries) error {
		current, err := q.GetGraphNode(ctx, id)
		if err != nil {
			return notFoundOr(err, msgNodeNotFound, "ノードの取得")
		}
		if in.IsEmpty() {
			node = current
			return nil
		}

		params := db.UpdateGraphNodeParams{ID: id, NodeName: current.NodeName, NodeMetadata: current.NodeMetadata}
		if in.NodeName != nil {
			params.NodeName = *in.NodeName
		}
		if in.NodeMetadata != nil {
			params.NodeMetadata = *in.NodeMetadata
		}

		if err := q.UpdateGraphNode(ctx, params); err != nil {
			return fmt.Errorf("ノードの更新に失敗: %w", err)
		}
		node, err = q.GetGraphNode(ctx, id)
		return err
	})
	return node, err
}

// DeleteNode はグラフノードを削除する。このノードを端点とするエッジも削除される。
func (s *Store) DeleteNode(ctx context.Context, id int64) error {
	affected, err := s.queries.DeleteGraphNode(ctx, id)
	return deleted(affected, err, msgNodeNotFound, "ノードの削除")
}

// ---- GraphEdge ----

// ListEdges は始点ノードのファイルが存在するグラフエッジをID順に返す。
func (s *Store) ListEdges(ctx context.Context, page Page) ([]db.GraphEdge, error) {
	if err := page.validate(); err != nil {
		return nil, err
	}
	edges, err := s.queries.ListGraphEdges(ctx, page.params())
	if err != nil {
		return nil, fmt.Errorf("エッジ一覧の取得に失敗: %w", err)
	}
	return edges, nil
}

// GetEdge はグラフエッジを返す。
func (s *Store) GetEdge(ctx context.Context, id int64) (db.GraphEdge, error) {
	edge, err := s.queries.GetGraphEdge(ctx, id)
	if err != nil {
		return db.GraphEdge{}, notFoundOr(err, msgEdgeNotFound, "エッジの取得")
	}
	return edge, nil
}

// CreateEdge はグラフエッジを作成する。両端のノードが存在しなければならない。
func (s *Store) CreateEdge(ctx context.Context, in EdgeCreate) (db.GraphEdge, error) {
	var edge db.GraphEdge
	err := s.inTx(ctx, func(q *db.Queries) error {
		if err := checkEndpoints(ctx, q, in.FromNode, in.ToNode); err != nil {
			return err
		}

		id, err := q.CreateGraphEdge(ctx, db.CreateGraphEdgeParams{
			FromNode:  in.FromNode,
			ToNode:    in.ToNode,
			CreatedAt: s.now(),
		})
		if err != nil {
			return fmt.Errorf("エッジの作成に失敗: %w", err)
		}

		edge, err = q.GetGraphEdge(ctx, id)
		return err
	})
	return edge, err
}

// UpdateEdge は指定された端点だけを付け替える。
func (s *Store) UpdateEdge(ctx context.Context, id int64, in EdgeUpdate) (db.GraphEdge, error) {
	var edge db.GraphEdge
	err := s.inTx(ctx, func(q *db.Queries) error {
		current, err := q.GetGraphEdge(ctx, id)
		if err != nil {
			return notFoundOr(err, msgEdgeNotFound, "エッジの取得")
		}
		if in.IsEmpty() {
			edge = current
			return nil
		}

		params := db.UpdateGraphEdgeParams{ID: id, FromNode: current.FromNode, ToNode: current.ToNode}
		if in.FromNode != nil {
			params.FromNode = *in.FromNode
		}
		if in.ToNode != nil {
			params.ToNode = *in.ToNode
		}
		if err := checkEndpoints(ctx, q, params.FromNode, params.ToNode); err != nil {
			return err
		}

		if err := q.UpdateGraphEdge(ctx, params); err != nil {
			return fmt.Errorf("エッジの更新に失敗: %w", err)
		}
		edge, err = q.GetGraphEdge(ctx, id)
		return err
	})
	return edge, err
}

// checkEndpoints は両端のノードが親ファイルまで解決できることを確認する。
// どちらが欠けていても同じNotFoundを返す。
func checkEndpoints(ctx context.Context, q *db.Queries, from, to int64) error {
	for _, id := range []int64{from, to} {
		ok, err := q.GraphNodeResolvable(ctx, id)
		if err != nil {
			return fmt.Errorf("ノードの取得に失敗: %w", err)
		}
		if !ok {
			return apperr.NotFound(msgNodesNotFound)
		}
	}
	return nil
}

// DeleteEdge はグラフエッジを削除する。
func (s *Store) DeleteEdge(ctx context.Context, id int64) error {
	affected, err := s.queries.DeleteGraphEdge(ctx, id)
	return deleted(affected, err, msgEdgeNotFound, "エッジの削除")
}
