package wire

import "encoding/json"

// Type はライブチャネルのフレーム種別を表す。
type Type string

const (
	// TypeConnected は接続が認証・登録されたことを表す。
	TypeConnected Type = "connected"
	// TypeNotification はユーザーへの通知を表す。
	TypeNotification Type = "notification"
)

// ReadyMessage は接続確立フレームに載せる既定のメッセージ。
const ReadyMessage = "WebSocket ready"

// Payload はライブチャネルで送受信されるフレームの共通インターフェース。
// 実装は Connected、Notification、Unknown に限られる。
type Payload interface {
	// FrameType はフレームの "type" フィールドの値を返す。
	FrameType() Type
}

// Connected は接続がレジストリに登録された直後にサーバーが送るフレーム。
type Connected struct {
	// Message は人間向けの説明文。
	Message string `json:"message"`
}

// FrameType は TypeConnected を返す。
func (Connected) FrameType() Type { return TypeConnected }

// Notification はユーザーへ配信する通知フレーム。
type Notification struct {
	// ID は永続化された通知レコードの識別子。重複表示の抑止に使う。
	ID string `json:"id,omitempty"`
	// Kind は通知の業務上の種類（例: new_sighting, adoption_update）。
	Kind string `json:"kind,omitempty"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Message は通知本文。
	Message string `json:"message"`
	// RelatedID は関連エンティティ（ペット、目撃情報など）の識別子。
	RelatedID *int64 `json:"related_id,omitempty"`
}

// FrameType は TypeNotification を返す。
func (Notification) FrameType() Type { return TypeNotification }

// Unknown は認識できない種類のフレーム。
type Unknown struct {
	// Type は受信したフレームの "type" の値。空の場合もある。
	Type Type
	// Raw は受信したフレームそのもの。
	Raw json.RawMessage
}

// FrameType は受信した "type" の値をそのまま返す。
func (u Unknown) FrameType() Type { return u.Type }

// RelatedID は整数値からRelatedIDフィールド用のポインタを作るヘルパー。
func RelatedID(id int64) *int64 {
	return &id
}
