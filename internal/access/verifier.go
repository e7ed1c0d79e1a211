package access

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// HeaderName はアクセストークンを運ぶHTTPヘッダー名。大文字小文字は区別しない。
const HeaderName = "Cf-Access-Jwt-Assertion"

// providerDomain はアクセス検証を提供するIDプロバイダーのドメイン。
const providerDomain = "cloudflareaccess.com"

// certsPath は公開鍵セットを配信するパス。
const certsPath = "/cdn-cgi/access/certs"

var tracer = otel.Tracer("github.com/nao1215/edgeapi/internal/access")

var (
	// ErrMissingToken はトークンのヘッダーが存在しないことを表す。
	ErrMissingToken = errors.New("アクセストークンがありません")
	// ErrKeySetUnavailable は公開鍵セットを取得できなかったことを表す。
	ErrKeySetUnavailable = errors.New("公開鍵セットを取得できません")
	// ErrInvalidToken はトークンの形式・署名・クレームのいずれかが不正であることを表す。
	ErrInvalidToken = errors.New("アクセストークンが無効です")
)

// signingMethods は受け付ける署名アルゴリズム。共通鍵方式（HS*）は受け付けない。
var signingMethods = []string{
	"RS256", "RS384", "RS512",
	"PS256", "PS384", "PS512",
	"ES256", "ES384", "ES512",
	"EdDSA",
}

// TrustConfig はトークン検証の信頼ドメイン設定。
type TrustConfig struct {
	// TeamDomain は公開鍵セットのURLを導出するためのチームドメイン。
	TeamDomain string
	// PolicyAudience はトークンのaudクレームに含まれるべき値。
	PolicyAudience string
}

// CertsURL は公開鍵セットのURLを返す。
func (t TrustConfig) CertsURL() string {
	return fmt.Sprintf("https://%s.%s%s", t.TeamDomain, providerDomain, certsPath)
}

// Issuer はトークンのissクレームに期待する値を返す。
func (t TrustConfig) Issuer() string {
	return fmt.Sprintf("https://%s.%s", t.TeamDomain, providerDomain)
}

// Identity は検証済みトークンから得たアクセス主体。
// Verifierだけが生成し、1リクエストの間だけ使用する。
type Identity struct {
	// Email は利用者のメールアドレス。
	Email string
	// Subject は利用者の一意識別子（subクレーム）。
	Subject string
	// Issuer はトークンの発行者（issクレーム）。
	Issuer string
	// Audience はトークンの対象（audクレーム）。
	Audience []string
	// Extra は上記以外のクレーム。
	Extra map[string]any
}

// Decision はアクセス検証の結果。Authorized か Unauthorized のどちらか。
// 呼び出し元はtype switchで両方を扱う。
type Decision interface {
	decision()
}

// Authorized は検証に成功したことを表す。
type Authorized struct {
	Identity Identity
}

// Unauthorized は検証に失敗したことを表す。
// Reason はログ出力用であり、レスポンスに含めてはならない。
type Unauthorized struct {
	Reason error
}

func (Authorized) decision()   {}
func (Unauthorized) decision() {}

// Verifier はアクセストークンを検証する。
type Verifier struct {
	// trust は信頼ドメイン設定。
	trust TrustConfig
	// keys は公開鍵の解決に使うリゾルバー。
	keys KeySetResolver
	// parser は署名方式・オーディエンス・発行者を検査するJWTパーサー。
	parser *jwt.Parser
}

// NewVerifier は新しいVerifierを生成する。
func NewVerifier(trust TrustConfig, keys KeySetResolver) *Verifier {
	return &Verifier{
		trust: trust,
		keys:  keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods(signingMethods),
			jwt.WithAudience(trust.PolicyAudience),
			jwt.WithIssuer(trust.Issuer()),
			jwt.WithIssuedAt(),
		),
	}
}

// Verify はリクエストのアクセストークンを検証する。
// ヘッダーが無い場合も、鍵の取得に失敗した場合も、すべて Unauthorized になる。
func (v *Verifier) Verify(r *http.Request) Decision {
	ctx, span := tracer.Start(r.Context(), "access.Verify")
	defer span.End()

	tokenString := r.Header.Get(HeaderName)
	if tokenString == "" {
		span.SetAttributes(attribute.Bool("access.authorized", false))
		return Unauthorized{Reason: ErrMissingToken}
	}

	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		return v.keys.LookupKey(ctx, kid)
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("access.authorized", false))
		if errors.Is(err, ErrKeySetUnavailable) {
			return Unauthorized{Reason: err}
		}
		return Unauthorized{Reason: fmt.Errorf("%w: %w", ErrInvalidToken, err)}
	}

	span.SetAttributes(attribute.Bool("access.authorized", true))
	return Authorized{Identity: identityFromClaims(claims)}
}

// identityFromClaims は検証済みクレームからIdentityを組み立てる。
func identityFromClaims(claims jwt.MapClaims) Identity {
	subject, _ := claims.GetSubject()
	issuer, _ := claims.GetIssuer()
	audience, _ := claims.GetAudience()
	email, _ := claims["email"].(string)

	extra := make(map[string]any, len(claims))
	for k, val := range claims {
		switch k {
		case "email", "sub", "iss", "aud":
			continue
		}
		extra[k] = val
	}

	return Identity{
		Email:    email,
		Subject:  subject,
		Issuer:   issuer,
		Audience: []string(audience),
		Extra:    extra,
	}
}
