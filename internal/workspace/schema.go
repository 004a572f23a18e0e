package workspace

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/nao1215/pensift/pkg/migration"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// sqlitePragmas は接続ごとに適用するPRAGMA。外部キー制約は削除時の振る舞いに必要。
const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// OpenDB はSQLiteデータベースを開く。pathに ":memory:" を渡すとインメモリDBになる。
func OpenDB(path string) (*sql.DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?"+sqlitePragmas)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// SQLiteの書き込みは1本に直列化される。インメモリDBは接続ごとに別物になる
	sqlDB.SetMaxOpenConns(1)
	return sqlDB, nil
}

// initSchema は埋め込んだマイグレーションを適用する。
func initSchema(ctx context.Context, sqlDB *sql.DB, logger *zap.Logger) error {
	if err := migration.Run(ctx, sqlDB, migrationsFS, "migrations", logger); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
