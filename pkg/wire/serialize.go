package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnencodable は Unknown のように送信できないペイロードを渡したことを表す。
var ErrUnencodable = errors.New("送信できないペイロードです")

// envelope はフレームの種別判定にだけ使う。
type envelope struct {
	Type Type `json:"type"`
}

// Encode はペイロードを "type" フィールド付きのJSONにシリアライズする。
func Encode(p Payload) ([]byte, error) {
	var v any
	switch p := p.(type) {
	case Connected:
		v = struct {
			Type Type `json:"type"`
			Connected
		}{TypeConnected, p}
	case Notification:
		v = struct {
			Type Type `json:"type"`
			Notification
		}{TypeNotification, p}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnencodable, p)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ペイロードのシリアライズに失敗: %w", err)
	}
	return data, nil
}

// Decode は受信したフレームをペイロードにデシリアライズする。
// JSONとして不正な場合はエラーを返す。種類が未知の場合は Unknown を返す。
func Decode(data []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("フレームのデシリアライズに失敗: %w", err)
	}

	switch env.Type {
	case TypeConnected:
		return decodeAs[Connected](data)
	case TypeNotification:
		return decodeAs[Notification](data)
	default:
		return Unknown{Type: env.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

// decodeAs はフレームを指定された型にデシリアライズする。
func decodeAs[T Payload](data []byte) (Payload, error) {
	var p T
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%Tのデシリアライズに失敗: %w", p, err)
	}
	return p, nil
}
