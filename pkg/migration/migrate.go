// Package migration はSQLiteデータベースのスキーマを版管理する。
// fs.FS上の 000001_description.up.sql 形式のファイルを版の順に1件ずつトランザクションで適用し、
// 適用した版と名前を schema_migrations テーブルに記録する。
package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// upSuffix は適用対象のファイルの拡張子。down.sql などは無視する。
const upSuffix = ".up.sql"

// Migration は1つのスキーマ変更。
type Migration struct {
	// Version はファイル名先頭の版番号。1以上で重複しない。
	Version int
	// Name はファイル名の版番号より後ろの部分。
	Name string

	path string
}

// ErrInvalidName はup.sqlファイルの名前が 版番号_名前.up.sql の形式でないことを表す。
var ErrInvalidName = errors.New("マイグレーションファイル名が不正です")

// Load はdir配下のup.sqlファイルを読み取り、版の昇順で返す。
// 形式に合わない名前や重複した版はエラーにする。
func Load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("%s の読み込みに失敗: %w", dir, err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), upSuffix) {
			continue
		}
		m, err := parseName(entry.Name())
		if err != nil {
			return nil, err
		}
		m.path = path.Join(dir, entry.Name())
		migrations = append(migrations, m)
	}

	slices.SortFunc(migrations, func(a, b Migration) int { return a.Version - b.Version })
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return nil, fmt.Errorf("版 %06d が重複しています: %s, %s",
				migrations[i].Version, migrations[i-1].Name, migrations[i].Name)
		}
	}
	return migrations, nil
}

func parseName(filename string) (Migration, error) {
	prefix, name, ok := strings.Cut(strings.TrimSuffix(filename, upSuffix), "_")
	if !ok || name == "" {
		return Migration{}, fmt.Errorf("%w: %s", ErrInvalidName, filename)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return Migration{}, fmt.Errorf("%w: %s", ErrInvalidName, filename)
	}
	return Migration{Version: version, Name: name}, nil
}

// Run はdir配下のマイグレーションのうち未適用のものを版の順に適用する。
// 1件でも失敗した場合はそこで止まり、その版は記録されない。
func Run(ctx context.Context, db *sql.DB, fsys fs.FS, dir string, logger *zap.Logger) error {
	logger = logger.With(zap.String("component", "migration"))

	migrations, err := Load(fsys, dir)
	if err != nil {
		return err
	}
	if err := ensureTable(ctx, db); err != nil {
		return fmt.Errorf("schema_migrations の作成に失敗: %w", err)
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return fmt.Errorf("適用済みの版の取得に失敗: %w", err)
	}

	known := make(map[int]bool, len(migrations))
	count := 0
	for _, m := range migrations {
		known[m.Version] = true
		if applied[m.Version] {
			continue
		}

		start := time.Now()
		if err := apply(ctx, db, fsys, m); err != nil {
			logger.Error("migration failed", zap.Int("version", m.Version), zap.String("name", m.Name), zap.Error(err))
			return fmt.Errorf("マイグレーション %06d_%s の適用に失敗: %w", m.Version, m.Name, err)
		}
		logger.Info("migration applied",
			zap.Int("version", m.Version),
			zap.String("name", m.Name),
			zap.Duration("elapsed", time.Since(start)),
		)
		count++
	}

	// DBの方が新しいバイナリで作られている
	for v := range applied {
		if !known[v] {
			logger.Warn("database has a migration this binary does not know", zap.Int("version", v))
		}
	}

	version, err := CurrentVersion(ctx, db)
	if err != nil {
		return err
	}
	logger.Info("schema up to date", zap.Int("version", version), zap.Int("applied", count))
	return nil
}

// CurrentVersion は適用済みの最大の版を返す。未適用なら0を返す。
func CurrentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version sql.NullInt64
	if err := db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("スキーマの版の取得に失敗: %w", err)
	}
	return int(version.Int64), nil
}

func ensureTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
		)
	`)
	return err
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// apply はSQLの実行と版の記録を同じトランザクションで行う。
func apply(ctx context.Context, db *sql.DB, fsys fs.FS, m Migration) error {
	content, err := fs.ReadFile(fsys, m.path)
	if err != nil {
		return fmt.Errorf("ファイル読み込みに失敗: %w", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return fmt.Errorf("%s が空です", m.path)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("SQL実行に失敗: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("版の記録に失敗: %w", err)
	}
	return tx.Commit()
}
