// Package wire はライブ通知チャネル（WebSocket）で流れるペイロードを定義する。
//
// サーバーからクライアントへ送られるフレームは "type" フィールドで種類を識別する
// 閉じた集合（connected / notification）であり、未知の種類は Unknown として
// 呼び出し側に返される。クライアントは Unknown を破棄する。
package wire
