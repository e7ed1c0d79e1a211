// Package mail はお問い合わせ通知メールを組み立てて送信するクライアントを提供する。
//
// メッセージはFrom/To/Subject/MIME-Version/Content-Typeの順に並べたヘッダーと
// 空行、本文をCRLFで連結したテキストとして組み立て、Transportに1通ずつ渡す。
// Transportには開発用のログ出力、SMTP、Resend APIの3種類がある。
package mail
