package mail

import "strings"

// crlf はメールのヘッダー行を区切る改行。
const crlf = "\r\n"

// Message は送信するメールの内容。
// Subjectなどヘッダーに入る値にCR/LFを含めてはならない。利用者の入力は事前に無害化すること。
type Message struct {
	// From は送信元アドレス。
	From string
	// To は宛先アドレス。
	To string
	// Subject は件名。
	Subject string
	// Body はプレーンテキストの本文。
	Body string
}

// MIME はメッセージをMIME形式のテキストに組み立てる。
func (m Message) MIME() string {
	return strings.Join([]string{
		"From: " + m.From,
		"To: " + m.To,
		"Subject: " + m.Subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		m.Body,
	}, crlf)
}
