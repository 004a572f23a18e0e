package migration

import (
	"database/sql"
	"errors"
	"os"
	"testing"
	"testing/fstest"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	_ "modernc.org/sqlite"
)

// openTestDB はテスト用のインメモリSQLiteを開く。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	// インメモリDBは接続ごとに別物になる
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// TestLoad はファイル名の解釈と並び順を検証する。
func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("up.sqlだけを版の昇順で返すこと", func(t *testing.T) {
		t.Parallel()
		fsys := fstest.MapFS{
			"m/000010_add_index.up.sql":      {Data: []byte(`SELECT 1;`)},
			"m/000002_add_column.up.sql":     {Data: []byte(`SELECT 1;`)},
			"m/000002_add_column.down.sql":   {Data: []byte(`SELECT 1;`)},
			"m/000001_create_folders.up.sql": {Data: []byte(`SELECT 1;`)},
			"m/README.md":                    {Data: []byte(`ignored`)},
		}

		got, err := Load(fsys, "m")
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		want := []Migration{{Version: 1, Name: "create_folders"}, {Version: 2, Name: "add_column"}, {Version: 10, Name: "add_index"}}
		if len(got) != len(want) {
			t.Fatalf("件数 = %d, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i].Version != want[i].Version || got[i].Name != want[i].Name {
				t.Errorf("[%d] = %d_%s, want %d_%s", i, got[i].Version, got[i].Name, want[i].Version, want[i].Name)
			}
		}
	})

	tests := []struct {
		name    string
		file    string
		wantErr error
	}{
		{"版番号が数値でない", "first_create.up.sql", ErrInvalidName},
		{"名前が無い", "000001.up.sql", ErrInvalidName},
		{"版番号が0", "000000_init.up.sql", ErrInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name+"場合はエラーになること", func(t *testing.T) {
			t.Parallel()
			fsys := fstest.MapFS{"m/" + tt.file: {Data: []byte(`SELECT 1;`)}}

			if _, err := Load(fsys, "m"); !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("版が重複している場合はエラーになること", func(t *testing.T) {
		t.Parallel()
		fsys := fstest.MapFS{
			"m/000001_create_files.up.sql":   {Data: []byte(`SELECT 1;`)},
			"m/000001_create_folders.up.sql": {Data: []byte(`SELECT 1;`)},
		}

		if _, err := Load(fsys, "m"); err == nil {
			t.Error("重複した版でエラーが返されなかった")
		}
	})
}

// TestRun はエンティティストアのスキーマを使って適用処理を検証する。
func TestRun(t *testing.T) {
	t.Parallel()

	schema := os.DirFS("../../internal/workspace")

	t.Run("エンティティストアのテーブルが作られ版と名前がログに出ること", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)
		core, logs := observer.New(zapcore.InfoLevel)

		if err := Run(t.Context(), db, schema, "migrations", zap.New(core)); err != nil {
			t.Fatalf("Run()でエラーが発生: %v", err)
		}

		for _, table := range []string{"folders", "files", "timeline", "graph_nodes", "graph_edges"} {
			var name string
			err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
			if err != nil {
				t.Errorf("テーブル %s が作成されていない: %v", table, err)
			}
		}

		applied := logs.FilterMessage("migration applied").All()
		if len(applied) != 1 {
			t.Fatalf("migration applied のログ件数 = %d, want 1", len(applied))
		}
		fields := applied[0].ContextMap()
		if fields["version"] != int64(1) || fields["name"] != "create_tables" || fields["component"] != "migration" {
			t.Errorf("ログのフィールド = %v", fields)
		}

		var recorded string
		if err := db.QueryRow(`SELECT name FROM schema_migrations WHERE version = 1`).Scan(&recorded); err != nil {
			t.Fatalf("schema_migrationsの参照に失敗: %v", err)
		}
		if recorded != "create_tables" {
			t.Errorf("記録された名前 = %q, want %q", recorded, "create_tables")
		}
	})

	t.Run("2回目は何も適用せず版が変わらないこと", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)
		if err := Run(t.Context(), db, schema, "migrations", zap.NewNop()); err != nil {
			t.Fatalf("Run()でエラーが発生: %v", err)
		}

		core, logs := observer.New(zapcore.InfoLevel)
		if err := Run(t.Context(), db, schema, "migrations", zap.New(core)); err != nil {
			t.Fatalf("2回目のRun()でエラーが発生: %v", err)
		}
		if n := logs.FilterMessage("migration applied").Len(); n != 0 {
			t.Errorf("migration applied のログ件数 = %d, want 0", n)
		}

		version, err := CurrentVersion(t.Context(), db)
		if err != nil {
			t.Fatalf("CurrentVersion()でエラーが発生: %v", err)
		}
		if version != 1 {
			t.Errorf("CurrentVersion() = %d, want 1", version)
		}
	})

	t.Run("失敗した版は記録されず後続も適用されないこと", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)
		fsys := fstest.MapFS{
			"m/000001_create_folders.up.sql": {Data: []byte(`CREATE TABLE folders (id INTEGER PRIMARY KEY);`)},
			"m/000002_broken.up.sql":         {Data: []byte(`CREATE TABLE (`)},
			"m/000003_create_files.up.sql":   {Data: []byte(`CREATE TABLE files (id INTEGER PRIMARY KEY);`)},
		}
		core, logs := observer.New(zapcore.ErrorLevel)

		if err := Run(t.Context(), db, fsys, "m", zap.New(core)); err == nil {
			t.Fatal("不正なSQLでエラーが返されなかった")
		}

		version, err := CurrentVersion(t.Context(), db)
		if err != nil {
			t.Fatalf("CurrentVersion()でエラーが発生: %v", err)
		}
		if version != 1 {
			t.Errorf("CurrentVersion() = %d, want 1", version)
		}
		var files int
		if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = 'files'`).Scan(&files); err != nil {
			t.Fatalf("sqlite_masterの参照に失敗: %v", err)
		}
		if files != 0 {
			t.Error("失敗した版より後のマイグレーションが適用された")
		}
		if failed := logs.FilterMessage("migration failed").All(); len(failed) != 1 || failed[0].ContextMap()["name"] != "broken" {
			t.Errorf("migration failed のログ = %v", failed)
		}
	})

	t.Run("空のファイルはエラーになること", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)
		fsys := fstest.MapFS{"m/000001_empty.up.sql": {Data: []byte("  \n")}}

		if err := Run(t.Context(), db, fsys, "m", zap.NewNop()); err == nil {
			t.Fatal("空のファイルでエラーが返されなかった")
		}
	})
}
