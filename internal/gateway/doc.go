// Package gateway はedgeapiのHTTPハンドラー群を提供する。
//
// 問い合わせフォームの送信（認証不要）と、アクセストークンで保護された
// 画像・動画生成を受け付ける。各ハンドラーは
// 認可、JSONの解析、検証、サニタイズ、外部呼び出しの委譲、レスポンスの正規化を
// この順に1回ずつ行う。外部呼び出しはリトライしない。
package gateway
