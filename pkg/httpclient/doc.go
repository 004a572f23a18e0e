// Package httpclient はサービス間のJSON over HTTP通信を行うクライアントを提供する。
//
// エンティティストアからライブ更新サービスへの変更通知と、
// ライブ更新サービスの死活確認に使う。
package httpclient
