package workspace

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/pensift/pkg/event"
)

// createFolderRequest はフォルダ作成リクエストのJSON構造。
type createFolderRequest struct {
	// Name はフォルダ名。
	Name string `json:"name" binding:"required"`
	// ParentID は親フォルダのID。省略またはnullでルートに作る。
	ParentID *int64 `json:"parent_id"`
}

// updateFolderRequest はフォルダ更新リクエストのJSON構造。省略したフィールドは変更しない。
type updateFolderRequest struct {
	Name     *string `json:"name"`
	ParentID *int64  `json:"parent_id"`
}

// handleListFolders はフォルダ一覧を返すハンドラ。
func (s *Server) handleListFolders() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := s.page(c)
		if !ok {
			return
		}
		folders, err := s.store.ListFolders(c.Request.Context(), page)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toResponses(folders, toFolderResponse))
	}
}

// handleCreateFolder はフォルダを作成するハンドラ。
func (s *Server) handleCreateFolder() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createFolderRequest
		if !s.bindJSON(c, &req) {
			return
		}

		folder, err := s.store.CreateFolder(c.Request.Context(), FolderCreate(req))
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, toFolderResponse(folder))
		s.notify(c, event.FolderUpdated{
			Type:      event.TypeFolderUpdated,
			FolderID:  folder.ID,
			Name:      folder.Name,
			Timestamp: s.store.now(),
		})
	}
}

// handleGetFolder はフォルダを1件返すハンドラ。
func (s *Server) handleGetFolder() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.pathID(c)
		if !ok {
			return
		}
		folder, err := s.store.GetFolder(c.Request.Context(), id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toFolderResponse(folder))
	}
}

// handleUpdateFolder はフォルダ名または親フォルダを変更するハンドラ。
// 親を自分自身や子孫にする変更は409を返す。
func (s *Server) handleUpdateFolder() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.pathID(c)
		if !ok {
			return
		}
		var req updateFolderRequest
		if !s.bindJSON(c, &req) {
			return
		}

		in := FolderUpdate(req)
		folder, err := s.store.UpdateFolder(c.Request.Context(), id, in)
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, toFolderResponse(folder))
		// 空の更新は何も変えないので通知しない
		if !in.IsEmpty() {
			s.notify(c, event.FolderUpdated{
				Type:      event.TypeFolderUpdated,
				FolderID:  folder.ID,
				Name:      folder.Name,
				Timestamp: s.store.now(),
			})
		}
	}
}

// handleDeleteFolder はフォルダを削除するハンドラ。
func (s *Server) handleDeleteFolder() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.pathID(c)
		if !ok {
			return
		}
		if err := s.store.DeleteFolder(c.Request.Context(), id); err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, deletedMessage("Folder"))
	}
}
