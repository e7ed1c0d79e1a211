// Package httpclient は外部APIへのHTTP通信を行うクライアントを提供する。
//
// メディア生成ゲートウェイへのPOSTや、アクセス検証用の公開鍵セット（JWKS）の取得など、
// 外部呼び出しのパターンを統一する。レスポンスは解釈せず、ステータスコードと
// ボディをそのまま呼び出し元へ返す。
package httpclient
