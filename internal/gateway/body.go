package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// errNotSingleJSON はボディ全体が1つのJSON値になっていないことを表す。
var errNotSingleJSON = errors.New("リクエストボディが単一のJSON値ではありません")

// readJSONBody はボディを読み込み、全体が1つのJSON値であることを確かめて返す。
// 後ろに余分なデータが続くボディもJSONではないものとして扱う。
func readJSONBody(c *gin.Context) ([]byte, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return nil, fmt.Errorf("リクエストボディの読み込みに失敗: %w", err)
	}
	if !json.Valid(raw) {
		return nil, errNotSingleJSON
	}
	return raw, nil
}

// bindJSONBody はreadJSONBodyで確かめたボディをreqに読み込む。
func bindJSONBody(c *gin.Context, req any) error {
	raw, err := readJSONBody(c)
	if err != nil {
		return err
	}
	return binding.JSON.BindBody(raw, req)
}

// honeypotField はボディからハニーポットだけを取り出すための型。
// 型を問わず受け取り、他の項目の型が誤っていても判定できるようにする。
type honeypotField struct {
	Honeypot json.RawMessage `json:"honeypot"`
}

// honeypotFilled はハニーポットに値が入っているかを返す。
// null、false、0、空文字列は未入力とみなし、それ以外はすべて入力ありとする。
func honeypotFilled(raw []byte) bool {
	var field honeypotField
	if err := json.Unmarshal(raw, &field); err != nil {
		return false
	}

	v := bytes.TrimSpace(field.Honeypot)
	switch string(v) {
	case "", "null", "false", `""`:
		return false
	}
	if f, err := strconv.ParseFloat(string(v), 64); err == nil {
		return f != 0
	}
	return true
}
