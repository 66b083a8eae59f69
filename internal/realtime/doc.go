// Package realtime はライブチャネル（WebSocket）で通知を配信する仕組みを提供する。
//
// 認証済みユーザーごとに接続の集合を保持する Registry、接続時のJWT検証を行う
// Authenticator、ping/pongで応答しない接続を取り除く Monitor、ユーザーの全接続へ
// 通知を送る Dispatcher、それらをGinのエンドポイントとしてまとめる Handler からなる。
// 配信は1回以下のベストエフォートで、取りこぼしは永続化された通知とポーリングで補う。
package realtime
