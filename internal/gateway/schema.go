package gateway

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// contactRequest は問い合わせフォームのリクエストボディ。
// 長さの上限は文字数で数える。ハニーポットはhoneypotFieldで別に判定する。
type contactRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,max=254,contact_email"`
	Message string `json:"message" validate:"required,max=5000"`
}

// imageRequest は画像生成のリクエストボディ。
type imageRequest struct {
	Prompt    string `json:"prompt" validate:"required"`
	ImageSize string `json:"imageSize"`
}

// videoRequest は動画生成のリクエストボディ。
type videoRequest struct {
	Prompt      string `json:"prompt" validate:"required"`
	AspectRatio string `json:"aspectRatio"`
	Resolution  string `json:"resolution"`
	Duration    string `json:"duration"`
}

// contactEmailPattern はメールアドレスの最小限の形式。
// 空白と@を含まないローカル部、@、ドメイン部、ドット、残り。
// 空白にはUnicodeの空白文字とBOMも含める。
var contactEmailPattern = regexp.MustCompile(`^[^\s\v\p{Z}\x{FEFF}@]+@[^\s\v\p{Z}\x{FEFF}@]+\.[^\s\v\p{Z}\x{FEFF}@]+$`)

// validate はリクエストボディの検証器。
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("contact_email", func(fl validator.FieldLevel) bool {
		return contactEmailPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}
