package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotObject は受信データがJSONオブジェクトでないことを表す。
var ErrNotObject = errors.New("メッセージがJSONオブジェクトではありません")

// envelope は種類の判定にだけ使う最小構造。
type envelope struct {
	Type Type `json:"type"`
}

// Peek は受信データがJSONオブジェクトであることを確認し、typeフィールドを返す。
// typeが無い・文字列でない場合は空のTypeを返す（未知の種類として扱われる）。
func Peek(raw []byte) (Type, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return "", ErrNotObject
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		// typeが文字列以外の場合。オブジェクトとしては正しいので未知の種類とみなす
		return "", nil
	}
	return env.Type, nil
}

// Decode は受信データを指定された型にデシリアライズする。
func Decode[T any](raw []byte) (*T, error) {
	var data T
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("メッセージのデシリアライズに失敗: %w", err)
	}
	return &data, nil
}

// Encode はイベントを送信用のJSONにシリアライズする。
func Encode(ev any) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("イベントのシリアライズに失敗: %w", err)
	}
	return data, nil
}
