// Package workspace はエンティティストアサービスの内部実装を提供する。
//
// フォルダ・ファイル・タイムライン・グラフ（ノードとエッジ）の5種類のエンティティを
// SQLiteに永続化し、REST APIで公開する。参照先の存在確認とフォルダの循環検出は
// 書き込み前にアプリケーション層で行い、削除時の後始末はスキーマの外部キー制約に任せる。
//
// 削除時の振る舞い:
//   - フォルダを削除すると、子フォルダのparent_idと所属ファイルのfolder_idがNULLになる
//   - ファイルを削除すると、そのタイムラインとグラフノードも削除される
//   - グラフノードを削除すると、そのノードを端点とするエッジも削除される
//
// 作成・更新に成功すると、設定されていればライブ更新サービスへ変更を通知する。
package workspace
