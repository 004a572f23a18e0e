// Package live はライブ更新サービスの内部実装を提供する。
//
// user_idごとに接続中のWebSocketクライアントを登録し、クライアントから届いた
// 更新メッセージを同じuser_idの全接続へ中継する。レジストリはBrokerとして
// 明示的に生成され、各接続ハンドラに注入される。状態はすべてメモリ上にあり、
// 通知履歴は保持しない。
package live
