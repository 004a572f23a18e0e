// Package apperr はサービス共通のエラー分類を提供する。
//
// ストア層の参照整合性違反や、ライブ接続上の不正メッセージなどを
// 種別付きのエラーとして表現し、HTTPステータスへの変換を一箇所にまとめる。
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind はエラーの種別を表す。
type Kind string

const (
	// KindNotFound は参照先のエンティティまたは親が存在しないことを表す。
	KindNotFound Kind = "not_found"
	// KindValidation はペイロードが必須項目や型の制約を満たさないことを表す。
	KindValidation Kind = "validation"
	// KindCycle はフォルダの親子関係に循環が生じることを表す。
	KindCycle Kind = "cycle"
	// KindTransport は切断済みの接続への送信失敗を表す。
	KindTransport Kind = "transport"
	// KindMalformedMessage はライブ接続で受信したメッセージが解析できないことを表す。
	KindMalformedMessage Kind = "malformed_message"
)

// Error は種別と利用者向けメッセージを持つエラー。
type Error struct {
	// Kind はエラーの種別。
	Kind Kind
	// Message は利用者に返すメッセージ。
	Message string
	// Err は原因となったエラー。
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap は原因となったエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound はNotFound種別のエラーを生成する。
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Validation はValidation種別のエラーを生成する。
func Validation(message string, err error) *Error {
	return &Error{Kind: KindValidation, Message: message, Err: err}
}

// Cycle はCycle種別のエラーを生成する。
func Cycle(message string) *Error {
	return &Error{Kind: KindCycle, Message: message}
}

// Transport はTransport種別のエラーを生成する。
func Transport(message string, err error) *Error {
	return &Error{Kind: KindTransport, Message: message, Err: err}
}

// Malformed はMalformedMessage種別のエラーを生成する。
func Malformed(message string, err error) *Error {
	return &Error{Kind: KindMalformedMessage, Message: message, Err: err}
}

// KindOf はエラーチェーンから種別を取り出す。種別付きでなければ空文字を返す。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind はエラーチェーンに指定種別のエラーが含まれるかを返す。
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message は利用者向けメッセージを返す。種別付きでなければfallbackを返す。
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return fallback
}

// HTTPStatus はエラー種別に対応するHTTPステータスコードを返す。
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindMalformedMessage:
		return http.StatusBadRequest
	case KindCycle:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
