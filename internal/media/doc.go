// Package media はAIゲートウェイ経由でfal.aiの生成APIを呼び出すクライアントを提供する。
//
// 1回の生成につき、ゲートウェイURLの解決を1回、生成APIへのPOSTを1回だけ行う。
// 生成APIのレスポンスはステータス・ヘッダー・ボディをそのまま返し、解釈は呼び出し側に任せる。
package media
