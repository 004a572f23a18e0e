package workspace

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/pensift/pkg/event"
)

// createTimelineRequest はタイムラインエントリ作成リクエストのJSON構造。
type createTimelineRequest struct {
	// FileID は対象ファイルのID。
	FileID *int64 `json:"file_id" binding:"required"`
	// MilestoneName はマイルストーン名。
	MilestoneName string `json:"milestone_name" binding:"required"`
	// Timestamp はマイルストーンの日時（RFC3339形式）。省略時は作成日時。
	Timestamp *time.Time `json:"timestamp"`
}

// updateTimelineRequest はタイムラインエントリ更新リクエストのJSON構造。
type updateTimelineRequest struct {
	MilestoneName *string    `json:"milestone_name"`
	Timestamp     *time.Time `json:"timestamp"`
}

// handleListTimeline はタイムライン一覧を返すハンドラ。
func (s *Server) handleListTimeline() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := s.page(c)
		if !ok {
			return
		}
		entries, err := s.store.ListTimeline(c.Request.Context(), page)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toResponses(entries, toTimelineResponse))
	}
}

// handleCreateTimeline はタイムラインエントリを作成するハンドラ。
// 対象ファイルが存在しない場合は404を返す。
func (s *Server) handleCreateTimeline() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createTimelineRequest
		if !s.bindJSON(c, &req) {
			return
		}

		entry, err := s.store.CreateTimeline(c.Request.Context(), TimelineCreate{
			FileID:        *req.FileID,
			MilestoneName: req.MilestoneName,
			Timestamp:     req.Timestamp,
		})
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, toTimelineResponse(entry))
		s.notifyTimeline(c, entry.ID, entry.MilestoneName)
	}
}

// handleGetTimeline はタイムラインエントリを1件返すハンドラ。
func (s *Server) handleGetTimeline() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.pathID(c)
		if !ok {
			return
		}
		entry, err := s.store.GetTimeline(c.Request.Context(), id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toTimelineResponse(entry))
	}
}

// handleUpdateTimeline はタイムラインエントリを部分更新するハンドラ。
func (s *Server) handleUpdateTimeline() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.pathID(c)
		if !ok {
			return
		}
		var req updateTimelineRequest
		if !s.bindJSON(c, &req) {
			return
		}

		in := TimelineUpdate(req)
		entry, err := s.store.UpdateTimeline(c.Request.Context(), id, in)
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, toTimelineResponse(entry))
		if !in.IsEmpty() {
			s.notifyTimeline(c, entry.ID, entry.MilestoneName)
		}
	}
}

// handleDeleteTimeline はタイムラインエントリを削除するハンドラ。
func (s *Server) handleDeleteTimeline() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.pathID(c)
		if !ok {
			return
		}
		if err := s.store.DeleteTimeline(c.Request.Context(), id); err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, deletedMessage("Timeline entry"))
	}
}

func (s *Server) notifyTimeline(c *gin.Context, timelineID int64, milestoneName string) {
	s.notify(c, event.TimelineUpdated{
		Type:          event.TypeTimelineUpdated,
		TimelineID:    timelineID,
		MilestoneName: milestoneName,
		Timestamp:     s.store.now(),
	})
}
