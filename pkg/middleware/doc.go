// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// パニックリカバリ、zapによるアクセスログ、CORS設定、
// ライブ接続のuser_idトークン検証など、両サービスで共通して使用するミドルウェアを含む。
package middleware
