package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/pensift/pkg/event"
	"github.com/nao1215/pensift/pkg/middleware"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// notification はfakeNotifierが受け取った1件の通知。
type notification struct {
	userID int64
	event  any
}

// fakeNotifier は通知を記録するだけのNotifier。
type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (f *fakeNotifier) Notify(_ context.Context, userID int64, ev any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, notification{userID: userID, event: ev})
}

func (f *fakeNotifier) Status(context.Context) string { return liveStatusOK }

func (f *fakeNotifier) Close(context.Context) error { return nil }

func (f *fakeNotifier) notifications() []notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notification(nil), f.sent...)
}

// setupTestServer はテスト用のエンティティストアサーバーをインメモリSQLiteで構築する。
func setupTestServer(t *testing.T) (*Server, *fakeNotifier) {
	t.Helper()

	_, sqlDB := setupTestStore(t)
	notifier := &fakeNotifier{}
	s := newServer(sqlDB, notifier, []string{"http://localhost:3000"}, zap.NewNop())
	return s, notifier
}

// doRequest はテスト用のHTTPリクエストを実行し、レスポンスを返すヘルパー関数。
func doRequest(s *Server, method, path, userID string, body any) *httptest.ResponseRecorder {
	var reqBody io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		reqBody = bytes.NewBufferString(b)
	default:
		jsonBytes, _ := json.Marshal(b)
		reqBody = bytes.NewReader(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

// parseJSON はレスポンスボディをmapにパースするヘルパー関数。
func parseJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("レスポンスのJSONパースに失敗: %v, body: %s", err, w.Body.String())
	}
	return result
}

// parseJSONArray はレスポンスボディを配列にパースするヘルパー関数。
func parseJSONArray(t *testing.T, w *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var result []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("レスポンスのJSONパースに失敗: %v, body: %s", err, w.Body.String())
	}
	return result
}

// mustCreate はPOSTで作成し、作成されたエンティティのIDを返す。
func mustCreate(t *testing.T, s *Server, path string, body any) float64 {
	t.Helper()
	w := doRequest(s, http.MethodPost, path, "", body)
	if w.Code != http.StatusOK {
		t.Fatalf("POST %s: ステータスコード = %d, body: %s", path, w.Code, w.Body.String())
	}
	return parseJSON(t, w)["id"].(float64)
}

// TestFolderAPI はフォルダのCRUDを検証する。
func TestFolderAPI(t *testing.T) {
	t.Parallel()

	t.Run("作成・取得・更新・削除ができること", func(t *testing.T) {
		t.Parallel()
		s, _ := setupTestServer(t)

		w := doRequest(s, http.MethodPost, "/folders", "", map[string]any{"name": "Drafts"})
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
		}
		created := parseJSON(t, w)
		if created["name"] != "Drafts" || created["parent_id"] != nil {
			t.Errorf("created = %v", created)
		}
		if _, err := time.Parse(time.RFC3339Nano, created["created_at"].(string)); err != nil {
			t.Errorf("created_at がRFC3339ではない: %v", created["created_at"])
		}
		id := created["id"].(float64)
		path := "/folders/" + jsonNumber(id)

		w = doRequest(s, http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK || parseJSON(t, w)["name"] != "Drafts" {
			t.Errorf("GET: %d %s", w.Code, w.Body.String())
		}

		w = doRequest(s, http.MethodPut, path, "", map[string]any{"name": "Final"})
		if w.Code != http.StatusOK || parseJSON(t, w)["name"] != "Final" {
			t.Errorf("PUT: %d %s", w.Code, w.Body.String())
		}

		w = doRequest(s, http.MethodDelete, path, "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("DELETE: %d %s", w.Code, w.Body.String())
		}
		if msg := parseJSON(t, w)["message"]; msg != "Folder deleted successfully" {
			t.Errorf("message = %v", msg)
		}

		w = doRequest(s, http.MethodGet, path, "", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("削除後のGET: ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
		if detail := parseJSON(t, w)["detail"]; detail != "Folder not found" {
			t.Errorf("detail = %v, want %q", detail, "Folder not found")
		}
	})

	t.Run("nameが無い場合は400を返すこと", func(t *testing.T) {
		t.Parallel()
		s, _ := setupTestServer(t)

		w := doRequest(s, http.MethodPost, "/folders", "", map[string]any{})
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
		if _, ok := parseJSON(t, w)["detail"]; !ok {
			t.Error("detailが含まれていない")
		}
	})

	t.Run("親を子孫にする更新は409を返すこと", func(t *testing.T) {
		t.Parallel()
		s, _ := setupTestServer(t)
		parent := mustCreate(t, s, "/folders", map[string]any{"name": "parent"})
		child := mustCreate(t, s, "/folders", map[string]any{"name": "child", "parent_id": parent})

		w := doRequest(s, http.MethodPut, "/folders/"+jsonNumber(parent), "", map[string]any{"parent_id": child})
		if w.Code != http.StatusConflict {
			t.Errorf("ステータスコード = %d, want %d, body: %s", w.Code, http.StatusConflict, w.Body.String())
		}
	})

	t.Run("整数でないIDは400を返すこと", func(t *testing.T) {
		t.Parallel()
		s, _ := setupTestServer(t)

		w := doRequest(s, http.MethodGet, "/folders/abc", "", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestFileAPI はファイルのCRUDと部分更新を検証する。
func TestFileAPI(t *testing.T) {
	t.Parallel()

	t.Run("contentだけの更新でnameとfolder_idが維持されること", func(t *testing.T) {
		t.Parallel()
		s, _ := setupTestServer(t)
		folder := mustCreate(t, s, "/folders", map[string]any{"name": "Drafts"})
		w := doRequest(s, http.MethodPost, "/files", "", map[string]any{"name": "ch1.md", "folder_id": folder})
		if w.Code != http.StatusOK {
			t.Fatalf("POST: %d %s", w.Code, w.Body.String())
		}
		created := parseJSON(t, w)
		if created["content"] != "" {
			t.Errorf("content の既定値 = %v, want empty", created["content"])
		}

		w = doRequest(s, http.MethodPut, "/files/"+jsonNumber(created["id"].(float64)), "", map[string]any{"content": "Once upon a time"})
		if w.Code != http.StatusOK {
			t.Fatalf("PUT: %d %s", w.Code, w.Body.String())
		}
		updated := parseJSON(t, w)

		if updated["name"] != "ch1.md" || updated["folder_id"] != folder || updated["content"] != "Once upon a time" {
			t.Errorf("updated = %v", updated)
		}
		before, _ := time.Parse(time.RFC3339Nano, created["last_edited_at"].(string))
		after, _ := time.Parse(time.RFC3339Nano, updated["last_edited_at"].(string))
		if !after.After(before) {
			t.Errorf("last_edited_at = %v, want after %v", after, before)
		}
	})

	t.Run("空の更新は状態を変えないこと", func(t *testing.T) {
		t.Parallel()
		s, _ := setupTestServer(t)
		w := doRequest(s, http.MethodPost, "/files", "", map[string]any{"name": "a.md", "content": "body"})
		created := parseJSON(t, w)

		w = doRequest(s, http.MethodPut, "/files/"+jsonNumber(created["id"].(float64)), "", map[string]any{})
		if w.Code != http.StatusOK {
			t.Fatalf("PUT: %d %s", w.Code, w.Body.String())
		}
		got := parseJSON(t, w)
		for _, key := range []string{"name", "content", "folder_id", "last_edited_at", "created_at"} {
			if got[key] != created[key] {
				t.Errorf("%s = %v, want %v", key, got[key], created[key])
			}
		}
	})

	t.Run("存在しないフォルダへの移動は404を返すこと", func(t *testing.T) {
		t.Parallel()
		s, _ := setupTestServer(t)
		id := mustCreate(t, s, "/files", map[string]any{"name": "a.md"})

		w := doRequest(s, http.MethodPut, "/files/"+jsonNumber(id), "", map[string]any{"folder_id": 42})
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

// TestTimelineAndGraphAPI はタイムラインとグラフの参照整合性を検証する。
func TestTimelineAndGraphAPI(t *testing.T) {
	t.Parallel()

	t.Run("存在しないファイルを参照する作成は404を返し何も作らないこと", func(t *testing.T) {
		t.Parallel()
		s, _ := setupTestServer(t)

		w := doRequest(s, http.MethodPost, "/timeline", "", map[string]any{"file_id": 999, "milestone_name": "m"})
		if w.Code != http.StatusNotFound || parseJSON(t, w)["detail"] != "File not found" {
			t.Errorf("timeline: %d %s", w.Code, w.Body.String())
		}
		w = doRequest(s, http.MethodPost, "/graph/nodes", "", map[string]any{"file_id": 999, "node_name": "n"})
		if w.Code != http.StatusNotFound {
			t.Errorf("nodes: %d %s", w.Code, w.Body.String())
		}
		w = doRequest(s, http.MethodPost, "/graph/edges", "", map[string]any{"from_node": 1, "to_node": 2})
		if w.Code != http.StatusNotFound || parseJSON(t, w)["detail"] != "One or both nodes not found" {
			t.Errorf("edges: %d %s", w.Code, w.Body.String())
		}

		for _, path := range []string{"/timeline", "/graph/nodes", "/graph/edges"} {
			w := doRequest(s, http.MethodGet, path, "", nil)
			if got := parseJSONArray(t, w); len(got) != 0 {
				t.Errorf("%s: 件数 = %d, want 0", path, len(got))
			}
		}
	})

	t.Run("ノードとエッジを作成して一覧できること", func(t *testing.T) {
		t.Parallel()
		s, _ := setupTestServer(t)
		file := mustCreate(t, s, "/files", map[string]any{"name": "a.md"})
		a := mustCreate(t, s, "/graph/nodes", map[string]any{"file_id": file, "node_name": "a"})
		b := mustCreate(t, s, "/graph/nodes", map[string]any{"file_id": file, "node_name": "b", "node_metadata": `{"role":"villain"}`})
		mustCreate(t, s, "/graph/edges", map[string]any{"from_node": a, "to_node": b})
		mustCreate(t, s, "/graph/edges", map[string]any{"from_node": a, "to_node": a})

		nodes := parseJSONArray(t, doRequest(s, http.MethodGet, "/graph/nodes", "", nil))
		if len(nodes) != 2 || nodes[0]["node_metadata"] != "{}" || nodes[1]["node_metadata"] != `{"role":"villain"}` {
			t.Errorf("nodes = %v", nodes)
		}
		edges := parseJSONArray(t, doRequest(s, http.MethodGet, "/graph/edges?skip=1&limit=1", "", nil))
		if len(edges) != 1 || edges[0]["to_node"] != a {
			t.Errorf("edges = %v", edges)
		}
	})

	t.Run("タイムラインのtimestampを指定できること", func(t *testing.T) {
		t.Parallel()
		s, _ := setupTestServer(t)
		file := mustCreate(t, s, "/files", map[string]any{"name": "a.md"})

		w := doRequest(s, http.MethodPost, "/timeline", "", map[string]any{
			"file_id":        file,
			"milestone_name": "first draft",
			"timestamp":      "2026-01-02T03:04:05Z",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("POST: %d %s", w.Code, w.Body.String())
		}
		if ts := parseJSON(t, w)["timestamp"]; ts != "2026-01-02T03:04:05Z" {
			t.Errorf("timestamp = %v", ts)
		}
	})

	t.Run("ファイルを削除するとタイムラインも消えること", func(t *testing.T) {
		t.Parallel()
		s, _ := setupTestServer(t)
		file := mustCreate(t, s, "/files", map[string]any{"name": "a.md"})
		entry := mustCreate(t, s, "/timeline", map[string]any{"file_id": file, "milestone_name": "m"})

		if w := doRequest(s, http.MethodDelete, "/files/"+jsonNumber(file), "", nil); w.Code != http.StatusOK {
			t.Fatalf("DELETE: %d %s", w.Code, w.Body.String())
		}
		if w := doRequest(s, http.MethodGet, "/timeline/"+jsonNumber(entry), "", nil); w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

// TestListParams はskip/limitの検証を行う。
func TestListParams(t *testing.T) {
	t.Parallel()
	s, _ := setupTestServer(t)
	for range 3 {
		mustCreate(t, s, "/folders", map[string]any{"name": "f"})
	}

	tests := []struct {
		query    string
		wantCode int
		wantLen  int
	}{
		{"", http.StatusOK, 3},
		{"?limit=0", http.StatusOK, 0},
		{"?skip=5", http.StatusOK, 0},
		{"?skip=1&limit=1", http.StatusOK, 1},
		{"?skip=-1", http.StatusBadRequest, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run("query="+tt.query, func(t *testing.T) {
			t.Parallel()
			w := doRequest(s, http.MethodGet, "/folders"+tt.query, "", nil)
			if w.Code != tt.wantCode {
				t.Fatalf("ステータスコード = %d, want %d, body: %s", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode == http.StatusOK {
				if got := parseJSONArray(t, w); len(got) != tt.wantLen {
					t.Errorf("件数 = %d, want %d", len(got), tt.wantLen)
				}
			}
		})
	}
}

// TestNotifications は作成・更新時の変更通知を検証する。
func TestNotifications(t *testing.T) {
	t.Parallel()

	t.Run("X-User-IDがあればそのユーザー宛てに通知されること", func(t *testing.T) {
		t.Parallel()
		s, notifier := setupTestServer(t)

		w := doRequest(s, http.MethodPost, "/files", "7", map[string]any{"name": "a.md", "content": "hello"})
		if w.Code != http.StatusOK {
			t.Fatalf("POST: %d %s", w.Code, w.Body.String())
		}

		sent := notifier.notifications()
		if len(sent) != 1 {
			t.Fatalf("通知件数 = %d, want 1", len(sent))
		}
		if sent[0].userID != 7 {
			t.Errorf("userID = %d, want 7", sent[0].userID)
		}
		ev, ok := sent[0].event.(event.FileUpdated)
		if !ok {
			t.Fatalf("event = %T, want event.FileUpdated", sent[0].event)
		}
		if ev.Type != event.TypeFileUpdated || ev.Content != "hello" {
			t.Errorf("event = %+v", ev)
		}
	})

	t.Run("グラフの変更ではノードかエッジの一方だけが設定されること", func(t *testing.T) {
		t.Parallel()
		s, notifier := setupTestServer(t)
		file := mustCreate(t, s, "/files", map[string]any{"name": "a.md"})

		w := doRequest(s, http.MethodPost, "/graph/nodes", "3", map[string]any{"file_id": file, "node_name": "n"})
		if w.Code != http.StatusOK {
			t.Fatalf("POST: %d %s", w.Code, w.Body.String())
		}

		sent := notifier.notifications()
		if len(sent) != 1 {
			t.Fatalf("通知件数 = %d, want 1", len(sent))
		}
		ev, ok := sent[0].event.(event.GraphUpdated)
		if !ok || sent[0].userID != 3 {
			t.Fatalf("notification = %+v", sent[0])
		}
		if ev.NodeID == nil || ev.EdgeID != nil {
			t.Errorf("event = %+v", ev)
		}
	})

	t.Run("X-User-IDが無ければ全体へは送らず通知しないこと", func(t *testing.T) {
		t.Parallel()
		s, notifier := setupTestServer(t)

		w := doRequest(s, http.MethodPost, "/files", "", map[string]any{"name": "secret.md", "content": "private"})
		if w.Code != http.StatusOK {
			t.Fatalf("POST: %d %s", w.Code, w.Body.String())
		}
		if sent := notifier.notifications(); len(sent) != 0 {
			t.Errorf("通知件数 = %d, want 0", len(sent))
		}
	})

	t.Run("空の更新では通知しないこと", func(t *testing.T) {
		t.Parallel()
		s, notifier := setupTestServer(t)
		folder := mustCreate(t, s, "/folders", map[string]any{"name": "f"})
		file := mustCreate(t, s, "/files", map[string]any{"name": "a.md"})
		entry := mustCreate(t, s, "/timeline", map[string]any{"file_id": file, "milestone_name": "m"})
		node := mustCreate(t, s, "/graph/nodes", map[string]any{"file_id": file, "node_name": "n"})
		edge := mustCreate(t, s, "/graph/edges", map[string]any{"from_node": node, "to_node": node})

		for _, path := range []string{
			"/folders/" + jsonNumber(folder),
			"/files/" + jsonNumber(file),
			"/timeline/" + jsonNumber(entry),
			"/graph/nodes/" + jsonNumber(node),
			"/graph/edges/" + jsonNumber(edge),
		} {
			w := doRequest(s, http.MethodPut, path, "1", map[string]any{})
			if w.Code != http.StatusOK {
				t.Fatalf("PUT %s: %d %s", path, w.Code, w.Body.String())
			}
		}
		if sent := notifier.notifications(); len(sent) != 0 {
			t.Errorf("通知件数 = %d, want 0", len(sent))
		}

		w := doRequest(s, http.MethodPut, "/files/"+jsonNumber(file), "1", map[string]any{"content": "changed"})
		if w.Code != http.StatusOK {
			t.Fatalf("PUT: %d %s", w.Code, w.Body.String())
		}
		if sent := notifier.notifications(); len(sent) != 1 {
			t.Errorf("通知件数 = %d, want 1", len(sent))
		}
	})

	t.Run("失敗したリクエストや読み取りでは通知されないこと", func(t *testing.T) {
		t.Parallel()
		s, notifier := setupTestServer(t)

		doRequest(s, http.MethodPost, "/timeline", "1", map[string]any{"file_id": 1, "milestone_name": "m"})
		doRequest(s, http.MethodGet, "/files", "1", nil)

		if sent := notifier.notifications(); len(sent) != 0 {
			t.Errorf("通知件数 = %d, want 0", len(sent))
		}
	})

	t.Run("X-User-IDが整数でなければ通知を送らないこと", func(t *testing.T) {
		t.Parallel()
		s, notifier := setupTestServer(t)

		w := doRequest(s, http.MethodPost, "/folders", "alice", map[string]any{"name": "a"})
		if w.Code != http.StatusOK {
			t.Fatalf("POST: %d %s", w.Code, w.Body.String())
		}
		if sent := notifier.notifications(); len(sent) != 0 {
			t.Errorf("通知件数 = %d, want 0", len(sent))
		}
	})
}

// TestLiveNotifier はライブ更新サービスへの中継リクエストを検証する。
func TestLiveNotifier(t *testing.T) {
	t.Parallel()

	t.Run("キューに積んだ通知が順に中継されること", func(t *testing.T) {
		t.Parallel()

		var (
			mu       sync.Mutex
			bodies   []map[string]any
			userIDs  []string
			services []string
		)
		live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				w.Write([]byte(`{"status":"ok"}`))
				return
			}
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			service, _ := middleware.ParseServiceToken("relay-secret", token)
			mu.Lock()
			bodies = append(bodies, body)
			userIDs = append(userIDs, r.Header.Get("X-User-ID"))
			services = append(services, service)
			mu.Unlock()
			w.Write([]byte(`{"delivered":1}`))
		}))
		t.Cleanup(live.Close)

		notifier := NewNotifier(live.URL, "relay-secret", zap.NewNop())
		notifier.Notify(t.Context(), 3, event.FolderUpdated{Type: event.TypeFolderUpdated, FolderID: 1, Name: "a"})
		notifier.Notify(t.Context(), 4, event.FolderUpdated{Type: event.TypeFolderUpdated, FolderID: 2, Name: "b"})
		if err := notifier.Close(t.Context()); err != nil {
			t.Fatalf("Close()でエラーが発生: %v", err)
		}

		mu.Lock()
		defer mu.Unlock()
		if len(bodies) != 2 {
			t.Fatalf("リクエスト件数 = %d, want 2", len(bodies))
		}
		for i, want := range []struct {
			userID float64
			header string
			name   string
		}{{3, "3", "a"}, {4, "4", "b"}} {
			if bodies[i]["user_id"] != want.userID || userIDs[i] != want.header {
				t.Errorf("%d件目: body=%v header=%q", i+1, bodies[i], userIDs[i])
			}
			ev := bodies[i]["event"].(map[string]any)
			if ev["type"] != "folder_updated" || ev["name"] != want.name {
				t.Errorf("%d件目: event = %v", i+1, ev)
			}
			if services[i] != serviceName {
				t.Errorf("%d件目: service = %q, want %q", i+1, services[i], serviceName)
			}
		}

		if status := notifier.Status(t.Context()); status != liveStatusOK {
			t.Errorf("Status() = %q, want %q", status, liveStatusOK)
		}
	})

	t.Run("Close後の通知は送られないこと", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.Write([]byte(`{"delivered":0}`))
		}))
		t.Cleanup(live.Close)

		notifier := NewNotifier(live.URL, "", zap.NewNop())
		if err := notifier.Close(t.Context()); err != nil {
			t.Fatalf("Close()でエラーが発生: %v", err)
		}
		notifier.Notify(t.Context(), 1, event.FolderUpdated{Type: event.TypeFolderUpdated, FolderID: 1})
		if err := notifier.Close(t.Context()); err != nil {
			t.Fatalf("2回目のClose()でエラーが発生: %v", err)
		}
		if n := calls.Load(); n != 0 {
			t.Errorf("リクエスト件数 = %d, want 0", n)
		}
	})

	t.Run("LIVE_URLが空なら無効であること", func(t *testing.T) {
		t.Parallel()

		notifier := NewNotifier("", "", zap.NewNop())
		if status := notifier.Status(t.Context()); status != liveStatusDisabled {
			t.Errorf("Status() = %q, want %q", status, liveStatusDisabled)
		}
		if err := notifier.Close(t.Context()); err != nil {
			t.Errorf("Close() = %v, want nil", err)
		}
	})
}

// TestSlowLiveService は中継先が応答しなくても書き込みAPIがすぐに返ることを検証する。
func TestSlowLiveService(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	received := make(chan struct{}, 1)
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received <- struct{}{}
		<-release
		w.Write([]byte(`{"delivered":1}`))
	}))
	t.Cleanup(live.Close)
	t.Cleanup(func() { close(release) })

	_, sqlDB := setupTestStore(t)
	notifier := NewNotifier(live.URL, "", zap.NewNop())
	s := newServer(sqlDB, notifier, []string{"http://localhost:3000"}, zap.NewNop())

	start := time.Now()
	w := doRequest(s, http.MethodPost, "/folders", "1", map[string]any{"name": "a"})
	elapsed := time.Since(start)

	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコード = %d, body: %s", w.Code, w.Body.String())
	}
	if elapsed > time.Second {
		t.Errorf("POST /folders に %v かかった。中継先を待つべきではない", elapsed)
	}

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("通知が中継先へ送られなかった")
	}
}

// TestHealth はヘルスチェックを検証する。
func TestHealth(t *testing.T) {
	t.Parallel()
	s, _ := setupTestServer(t)

	w := doRequest(s, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
	}
	body := parseJSON(t, w)
	if body["status"] != "ok" || body["service"] != "workspace" || body["live"] != liveStatusOK || body["schema_version"] != 1.0 {
		t.Errorf("body = %v", body)
	}
}

// jsonNumber はJSONから取り出したIDをパス用の文字列にする。
func jsonNumber(v float64) string {
	return strconv.FormatInt(int64(v), 10)
}
