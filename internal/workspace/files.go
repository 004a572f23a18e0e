package workspace

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/pensift/pkg/event"
)

// createFileRequest はファイル作成リクエストのJSON構造。
type createFileRequest struct {
	// Name はファイル名。
	Name string `json:"name" binding:"required"`
	// Content は本文。省略時は空文字列。
	Content string `json:"content"`
	// FolderID は所属フォルダのID。
	FolderID *int64 `json:"folder_id"`
}

// updateFileRequest はファイル更新リクエストのJSON構造。省略したフィールドは変更しない。
type updateFileRequest struct {
	Name     *string `json:"name"`
	Content  *string `json:"content"`
	FolderID *int64  `json:"folder_id"`
}

// handleListFiles はファイル一覧を返すハンドラ。
func (s *Server) handleListFiles() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := s.page(c)
		if !ok {
			return
		}
		files, err := s.store.ListFiles(c.Request.Context(), page)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toResponses(files, toFileResponse))
	}
}

// handleCreateFile はファイルを作成するハンドラ。
func (s *Server) handleCreateFile() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createFileRequest
		if !s.bindJSON(c, &req) {
			return
		}

		file, err := s.store.CreateFile(c.Request.Context(), FileCreate(req))
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, toFileResponse(file))
		s.notifyFile(c, file.ID, file.Content)
	}
}

// handleGetFile はファイルを1件返すハンドラ。
func (s *Server) handleGetFile() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.pathID(c)
		if !ok {
			return
		}
		file, err := s.store.GetFile(c.Request.Context(), id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toFileResponse(file))
	}
}

// handleUpdateFile はファイルを部分更新するハンドラ。
func (s *Server) handleUpdateFile() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.pathID(c)
		if !ok {
			return
		}
		var req updateFileRequest
		if !s.bindJSON(c, &req) {
			return
		}

		in := FileUpdate(req)
		file, err := s.store.UpdateFile(c.Request.Context(), id, in)
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, toFileResponse(file))
		if !in.IsEmpty() {
			s.notifyFile(c, file.ID, file.Content)
		}
	}
}

// handleDeleteFile はファイルを削除するハンドラ。
func (s *Server) handleDeleteFile() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.pathID(c)
		if !ok {
			return
		}
		if err := s.store.DeleteFile(c.Request.Context(), id); err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, deletedMessage("File"))
	}
}

func (s *Server) notifyFile(c *gin.Context, fileID int64, content string) {
	s.notify(c, event.FileUpdated{
		Type:      event.TypeFileUpdated,
		FileID:    fileID,
		Content:   content,
		Timestamp: s.store.now(),
	})
}
