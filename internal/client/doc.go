// Package client は通知サービスのクライアント側の仕組みを提供する。
//
// Manager はライブチャネルへの接続を1本維持し、切断されると指数バックオフで再接続する。
// 状態遷移はすべて1つのイベントループで直列に処理する。Poller はライブチャネルの
// 取りこぼしを補うため、一定間隔で未読通知をREST APIから取得する。
// どちらも受け取った通知を Alerter に渡す。
package client
