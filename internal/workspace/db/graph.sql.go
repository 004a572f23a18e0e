package db

import (
	"context"
	"time"
)

const listGraphNodes = `SELECT n.id, n.file_id, n.node_name, n.node_metadata, n.created_at
FROM graph_nodes n
JOIN files f ON f.id = n.file_id
ORDER BY n.id
LIMIT ? OFFSET ?`

func (q *Queries) ListGraphNodes(ctx context.Context, arg ListParams) ([]GraphNode, error) {
	rows, err := q.db.QueryContext(ctx, listGraphNodes, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GraphNode{}
	for rows.Next() {
		var i GraphNode
		if err := rows.Scan(
			&i.ID,
			&i.FileID,
			&i.NodeName,
			&i.NodeMetadata,
			&i.CreatedAt,
		); err != nil {
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

const getGraphNode = `SELECT id, file_id, node_name, node_metadata, created_at FROM graph_nodes
WHERE id = ?`

func (q *Queries) GetGraphNode(ctx context.Context, id int64) (GraphNode, error) {
	row := q.db.QueryRowContext(ctx, getGraphNode, id)
	var i GraphNode
	err := row.Scan(
		&i.ID,
		&i.FileID,
		&i.NodeName,
		&i.NodeMetadata,
		&i.CreatedAt,
	)
	return i, err
}

// エッジの端点として使えるのは親ファイルが解決できるノードだけ
const graphNodeResolvable = `SELECT EXISTS (
    SELECT 1 FROM graph_nodes n
    JOIN files f ON f.id = n.file_id
    WHERE n.id = ?
)`

func (q *Queries) GraphNodeResolvable(ctx context.Context, id int64) (bool, error) {
	row := q.db.QueryRowContext(ctx, graphNodeResolvable, id)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const createGraphNode = `INSERT INTO graph_nodes (file_id, node_name, node_metadata, created_at)
VALUES (?, ?, ?, ?)`

type CreateGraphNodeParams struct {
	FileID       int64
	NodeName     string
	NodeMetadata string
	CreatedAt    time.Time
}

func (q *Queries) CreateGraphNode(ctx context.Context, arg CreateGraphNodeParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createGraphNode,
		arg.FileID,
		arg.NodeName,
		arg.NodeMetadata,
		arg.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const updateGraphNode = `UPDATE graph_nodes
SET node_name = ?, node_metadata = ?
WHERE id = ?`

type UpdateGraphNodeParams struct {
	NodeName     string
	NodeMetadata string
	ID           int64
}

func (q *Queries) UpdateGraphNode(ctx context.Context, arg UpdateGraphNodeParams) error {
	_, err := q.db.ExecContext(ctx, updateGraphNode, arg.NodeName, arg.NodeMetadata, arg.ID)
	return err
}

const deleteGraphNode = `DELETE FROM graph_nodes
WHERE id = ?`

func (q *Queries) DeleteGraphNode(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteGraphNode, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// 始点ノードから親ファイルまで解決できる行だけを返す
const listGraphEdges = `SELECT e.id, e.from_node, e.to_node, e.created_at
FROM graph_edges e
JOIN graph_nodes n ON n.id = e.from_node
JOIN files f ON f.id = n.file_id
ORDER BY e.id
LIMIT ? OFFSET ?`

func (q *Queries) ListGraphEdges(ctx context.Context, arg ListParams) ([]GraphEdge, error) {
	rows, err := q.db.QueryContext(ctx, listGraphEdges, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GraphEdge{}
	for rows.Next() {
		var i GraphEdge
		if err := rows.Scan(&i.ID, &i.FromNode, &i.ToNode, &i.CreatedAt); err != nil {
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

const getGraphEdge = `SELECT id, from_node, to_node, created_at FROM graph_edges
WHERE id = ?`

func (q *Queries) GetGraphEdge(ctx context.Context, id int64) (GraphEdge, error) {
	row := q.db.QueryRowContext(ctx, getGraphEdge, id)
	var i GraphEdge
	err := row.Scan(&i.ID, &i.FromNode, &i.ToNode, &i.CreatedAt)
	return i, err
}

const createGraphEdge = `INSERT INTO graph_edges (from_node, to_node, created_at)
VALUES (?, ?, ?)`

type CreateGraphEdgeParams struct {
	FromNode  int64
	ToNode    int64
	CreatedAt time.Time
}

func (q *Queries) CreateGraphEdge(ctx context.Context, arg CreateGraphEdgeParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createGraphEdge, arg.FromNode, arg.ToNode, arg.CreatedAt)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const updateGraphEdge = `UPDATE graph_edges
SET from_node = ?, to_node = ?
WHERE id = ?`

type UpdateGraphEdgeParams struct {
	FromNode int64
	ToNode   int64
	ID       int64
}

func (q *Queries) UpdateGraphEdge(ctx context.Context, arg UpdateGraphEdgeParams) error {
	_, err := q.db.ExecContext(ctx, updateGraphEdge, arg.FromNode, arg.ToNode, arg.ID)
	return err
}

const deleteGraphEdge = `DELETE FROM graph_edges
WHERE id = ?`

func (q *Queries) DeleteGraphEdge(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteGraphEdge, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
