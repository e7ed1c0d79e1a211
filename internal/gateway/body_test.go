package gateway

import "testing"

// TestHoneypotFilled はハニーポットの判定を検証する。
func TestHoneypotFilled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want bool
	}{
		{name: "ハニーポットが無い", body: `{"name":"a"}`, want: false},
		{name: "null", body: `{"honeypot":null}`, want: false},
		{name: "空文字列", body: `{"honeypot":""}`, want: false},
		{name: "false", body: `{"honeypot":false}`, want: false},
		{name: "0", body: `{"honeypot":0}`, want: false},
		{name: "0.0", body: `{"honeypot":0.0}`, want: false},
		{name: "文字列", body: `{"honeypot":"spam"}`, want: true},
		{name: "空白だけの文字列", body: `{"honeypot":" "}`, want: true},
		{name: "文字列の0", body: `{"honeypot":"0"}`, want: true},
		{name: "数値", body: `{"honeypot":-1}`, want: true},
		{name: "true", body: `{"honeypot":true}`, want: true},
		{name: "空のオブジェクト", body: `{"honeypot":{}}`, want: true},
		{name: "空の配列", body: `{"honeypot":[]}`, want: true},
		{name: "オブジェクトでないボディ", body: `["honeypot"]`, want: false},
		{name: "nullのボディ", body: `null`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := honeypotFilled([]byte(tt.body)); got != tt.want {
				t.Errorf("honeypotFilled(%s) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}
