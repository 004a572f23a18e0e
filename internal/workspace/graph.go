package workspace

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/pensift/pkg/event"
)

// createNodeRequest はグラフノード作成リクエストのJSON構造。
type createNodeRequest struct {
	// FileID は対象ファイルのID。
	FileID *int64 `json:"file_id" binding:"required"`
	// NodeName はノード名。
	NodeName string `json:"node_name" binding:"required"`
	// NodeMetadata は任意の文字列。省略時は "{}"。
	NodeMetadata *string `json:"node_metadata"`
}

type updateNodeRequest struct {
	NodeName     *string `json:"node_name"`
	NodeMetadata *string `json:"node_metadata"`
}

// createEdgeRequest はグラフエッジ作成リクエストのJSON構造。
type createEdgeRequest struct {
	FromNode *int64 `json:"from_node" binding:"required"`
	ToNode   *int64 `json:"to_node" binding:"required"`
}

type updateEdgeRequest struct {
	FromNode *int64 `json:"from_node"`
	ToNode   *int64 `json:"to_node"`
}

// handleListNodes はグラフノード一覧を返すハンドラ。
func (s *Server) handleListNodes() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := s.page(c)
		if !ok {
			return
		}
		nodes, err := s.store.ListNodes(c.Request.Context(), page)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toResponses(nodes, toNodeResponse))
	}
}

// handleCreateNode はグラフノードを作成するハンドラ。
func (s *Server) handleCreateNode() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createNodeRequest
		if !s.bindJSON(c, &req) {
			return
		}

		node, err := s.store.CreateNode(c.Request.Context(), NodeCreate{
			FileID:       *req.FileID,
			NodeName:     req.NodeName,
			NodeMetadata: req.NodeMetadata,
		})
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, toNodeResponse(node))
		s.notifyGraph(c, &node.ID, nil)
	}
}

func (s *Server) handleGetNode() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.pathID(c)
		if !ok {
			return
		}
		node, err := s.store.GetNode(c.Request.Context(), id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toNodeResponse(node))
	}
}

func (s *Server) handleUpdateNode() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.pathID(c)
		if !ok {
			return
		}
		var req updateNodeRequest
		if !s.bindJSON(c, &req) {
			return
		}

		in := NodeUpdate(req)
		node, err := s.store.UpdateNode(c.Request.Context(), id, in)
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, toNodeResponse(node))
		if !in.IsEmpty() {
			s.notifyGraph(c, &node.ID, nil)
		}
	}
}

// handleDeleteNode はグラフノードを削除するハンドラ。接続するエッジも削除される。
func (s *Server) handleDeleteNode() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.pathID(c)
		if !ok {
			return
		}
		if err := s.store.DeleteNode(c.Request.Context(), id); err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, deletedMessage("Node"))
	}
}

// handleListEdges はグラフエッジ一覧を返すハンドラ。
func (s *Server) handleListEdges() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, ok := s.page(c)
		if !ok {
			return
		}
		edges, err := s.store.ListEdges(c.Request.Context(), page)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toResponses(edges, toEdgeResponse))
	}
}

// handleCreateEdge はグラフエッジを作成するハンドラ。
// どちらかの端点ノードが存在しない場合は404を返す。
func (s *Server) handleCreateEdge() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createEdgeRequest
		if !s.bindJSON(c, &req) {
			return
		}

		edge, err := s.store.CreateEdge(c.Request.Context(), EdgeCreate{
			FromNode: *req.FromNode,
			ToNode:   *req.ToNode,
		})
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, toEdgeResponse(edge))
		s.notifyGraph(c, nil, &edge.ID)
	}
}

func (s *Server) handleGetEdge() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.pathID(c)
		if !ok {
			return
		}
		edge, err := s.store.GetEdge(c.Request.Context(), id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, toEdgeResponse(edge))
	}
}

func (s *Server) handleUpdateEdge() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.pathID(c)
		if !ok {
			return
		}
		var req updateEdgeRequest
		if !s.bindJSON(c, &req) {
			return
		}

		in := EdgeUpdate(req)
		edge, err := s.store.UpdateEdge(c.Request.Context(), id, in)
		if err != nil {
			s.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, toEdgeResponse(edge))
		if !in.IsEmpty() {
			s.notifyGraph(c, nil, &edge.ID)
		}
	}
}

func (s *Server) handleDeleteEdge() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := s.pathID(c)
		if !ok {
			return
		}
		if err := s.store.DeleteEdge(c.Request.Context(), id); err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, deletedMessage("Edge"))
	}
}

// notifyGraph はグラフの変更を通知する。ノードとエッジのどちらか一方だけを設定する。
func (s *Server) notifyGraph(c *gin.Context, nodeID, edgeID *int64) {
	s.notify(c, event.GraphUpdated{
		Type:      event.TypeGraphUpdated,
		NodeID:    nodeID,
		EdgeID:    edgeID,
		Timestamp: s.store.now(),
	})
}
