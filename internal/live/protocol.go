package live

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nao1215/pensift/pkg/apperr"
	"github.com/nao1215/pensift/pkg/event"
	"go.uber.org/zap"
)

// HandleMessage はconnから受信した1フレームを処理する。
//
// 既知の種類は同じuser_idの全接続（送信者を含む）へ対応するイベントを中継する。
// 未知の種類は送信者にのみechoを返す。解析できないフレームや必須項目が欠けた
// フレームは送信者にのみerrorを返し、接続は維持する。
func (b *Broker) HandleMessage(conn Conn, userID int64, raw []byte) {
	typ, err := event.Peek(raw)
	if err != nil {
		b.logger.Warn("malformed message",
			zap.Int64("userID", userID),
			zap.String("connectionID", conn.ID()),
			zap.Error(err),
		)
		b.replyError(conn, apperr.Malformed("Malformed message: expected a JSON object", err))
		return
	}

	outbound, err := b.translate(typ, raw)
	if err != nil {
		b.logger.Info("invalid message",
			zap.Int64("userID", userID),
			zap.String("type", string(typ)),
			zap.Error(err),
		)
		b.replyError(conn, err)
		return
	}

	if outbound == nil {
		b.reply(conn, event.Echo{
			Type:     event.TypeEcho,
			Message:  event.UnknownMessageType,
			Original: json.RawMessage(bytes.TrimSpace(raw)),
		})
		return
	}

	payload, err := event.Encode(outbound)
	if err != nil {
		b.logger.Error("failed to encode event", zap.String("type", string(typ)), zap.Error(err))
		return
	}
	b.RelayToUser(userID, payload)
}

// translate はinboundメッセージを対応するoutboundイベントに変換する。
// 未知の種類の場合はnilを返す。
func (b *Broker) translate(typ event.Type, raw []byte) (any, error) {
	now := time.Now().UTC()

	switch typ {
	case event.TypeFileUpdate:
		msg, err := decodeValid[event.FileUpdate](b, raw)
		if err != nil {
			return nil, err
		}
		return event.FileUpdated{Type: event.TypeFileUpdated, FileID: *msg.FileID, Content: *msg.Content, Timestamp: now}, nil
	case event.TypeFileSave:
		msg, err := decodeValid[event.FileSave](b, raw)
		if err != nil {
			return nil, err
		}
		return event.FileSaved{Type: event.TypeFileSaved, FileID: *msg.FileID, Timestamp: now}, nil
	case event.TypeFolderUpdate:
		msg, err := decodeValid[event.FolderUpdate](b, raw)
		if err != nil {
			return nil, err
		}
		return event.FolderUpdated{Type: event.TypeFolderUpdated, FolderID: *msg.FolderID, Name: *msg.Name, Timestamp: now}, nil
	case event.TypeTimelineUpdate:
		msg, err := decodeValid[event.TimelineUpdate](b, raw)
		if err != nil {
			return nil, err
		}
		return event.TimelineUpdated{Type: event.TypeTimelineUpdated, TimelineID: *msg.TimelineID, MilestoneName: *msg.MilestoneName, Timestamp: now}, nil
	case event.TypeGraphUpdate:
		msg, err := decodeValid[event.GraphUpdate](b, raw)
		if err != nil {
			return nil, err
		}
		return event.GraphUpdated{Type: event.TypeGraphUpdated, NodeID: msg.NodeID, EdgeID: msg.EdgeID, Timestamp: now}, nil
	default:
		return nil, nil
	}
}

// decodeValid はメッセージをデシリアライズし、必須項目を検証する。
func decodeValid[T any](b *Broker, raw []byte) (*T, error) {
	msg, err := event.Decode[T](raw)
	if err != nil {
		return nil, apperr.Validation("Invalid field type", err)
	}
	if err := b.validate.Struct(msg); err != nil {
		return nil, apperr.Validation(fmt.Sprintf("Missing required field: %s", missingFields(err)), err)
	}
	return msg, nil
}

// replyError は種別付きエラーをerrorイベントとして送信者に返す。
func (b *Broker) replyError(conn Conn, err error) {
	kind := apperr.KindOf(err)
	if kind == "" {
		kind = apperr.KindValidation
	}
	b.reply(conn, event.Error{
		Type:      event.TypeError,
		Error:     string(kind),
		Message:   apperr.Message(err, "Invalid message"),
		Timestamp: time.Now().UTC(),
	})
}

// reply は送信者にだけイベントを返す。送信失敗はログに記録して握りつぶす。
func (b *Broker) reply(conn Conn, ev any) {
	payload, err := event.Encode(ev)
	if err != nil {
		b.logger.Error("failed to encode reply", zap.Error(err))
		return
	}
	if err := conn.Send(payload); err != nil {
		b.metrics.MessagesFailed.Inc()
		b.logger.Warn("failed to send reply", zap.String("connectionID", conn.ID()), zap.Error(err))
		return
	}
	b.metrics.MessagesSent.Inc()
}

// missingFields は検証エラーから欠けているJSONフィールド名を取り出す。
func missingFields(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		names = append(names, fe.Field())
	}
	return strings.Join(names, ", ")
}
