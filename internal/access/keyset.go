package access

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/nao1215/edgeapi/pkg/httpclient"
)

// defaultRefreshCooldown は未知のkidで公開鍵セットを再取得する最短間隔。
const defaultRefreshCooldown = 30 * time.Second

// errKeyNotFound はkidに一致する公開鍵が鍵セットに無いことを表す。
var errKeyNotFound = errors.New("kidに一致する公開鍵がありません")

// KeySetResolver はトークンのkidから検証用の公開鍵を解決する。
// テストでは固定の鍵セットを返す実装に差し替える。
type KeySetResolver interface {
	// LookupKey はkidに一致する公開鍵を返す。kidが空の場合、鍵が1つだけならそれを返す。
	LookupKey(ctx context.Context, kid string) (any, error)
}

// StaticKeySet は固定の鍵セットから公開鍵を解決するKeySetResolver。
type StaticKeySet struct {
	// set は公開鍵セット。
	set jose.JSONWebKeySet
}

// NewStaticKeySet はJWKS形式のJSONから固定の鍵セットを生成する。
func NewStaticKeySet(jwks []byte) (*StaticKeySet, error) {
	set, err := parseKeySet(jwks)
	if err != nil {
		return nil, err
	}
	return &StaticKeySet{set: set}, nil
}

// LookupKey はkidに一致する公開鍵を返す。
func (s *StaticKeySet) LookupKey(_ context.Context, kid string) (any, error) {
	return findKey(s.set, kid)
}

// RemoteKeySet はURLから取得した公開鍵セットをプロセス内にキャッシュするKeySetResolver。
//
// 初回の検証時に遅延取得し、以後はプロセスが終了するまでキャッシュを使う。
// キャッシュはatomic.Pointerで差し替えるためロックは取らない。
// 同時に初回取得が走った場合は重複して取得するが、結果は同じになる。
// 未知のkidを受け取った場合だけ、クールダウン間隔を空けて再取得する（鍵のローテーション対応）。
type RemoteKeySet struct {
	// url は公開鍵セットの取得先URL。
	url string
	// client は取得に使うHTTPクライアント。
	client *httpclient.Client
	// cooldown は再取得の最短間隔。
	cooldown time.Duration
	// now は現在時刻を返す関数。テストで差し替える。
	now func() time.Time
	// cache は最後に取得した鍵セット。
	cache atomic.Pointer[cachedKeySet]
}

// cachedKeySet はキャッシュされた鍵セットと取得時刻。
type cachedKeySet struct {
	set       jose.JSONWebKeySet
	fetchedAt time.Time
}

// NewRemoteKeySet は新しいRemoteKeySetを生成する。clientがnilの場合は既定のクライアントを使う。
func NewRemoteKeySet(url string, client *httpclient.Client) *RemoteKeySet {
	if client == nil {
		client = httpclient.New()
	}
	return &RemoteKeySet{
		url:      url,
		client:   client,
		cooldown: defaultRefreshCooldown,
		now:      time.Now,
	}
}

// LookupKey はkidに一致する公開鍵を返す。
// 鍵セットの取得に失敗した場合はErrKeySetUnavailableをラップしたエラーを返す。
func (r *RemoteKeySet) LookupKey(ctx context.Context, kid string) (any, error) {
	cached := r.cache.Load()
	if cached == nil {
		fetched, err := r.fetch(ctx)
		if err != nil {
			return nil, err
		}
		cached = fetched
	}

	key, err := findKey(cached.set, kid)
	if err == nil || !errors.Is(err, errKeyNotFound) {
		return key, err
	}

	// 鍵のローテーション直後の可能性があるため、クールダウンを過ぎていれば再取得する
	if r.now().Sub(cached.fetchedAt) < r.cooldown {
		return nil, err
	}
	fetched, fetchErr := r.fetch(ctx)
	if fetchErr != nil {
		return nil, fetchErr
	}
	return findKey(fetched.set, kid)
}

// fetch は公開鍵セットを取得してキャッシュを差し替える。
func (r *RemoteKeySet) fetch(ctx context.Context) (*cachedKeySet, error) {
	ctx, span := tracer.Start(ctx, "access.FetchKeySet")
	defer span.End()

	resp, err := r.client.Get(ctx, r.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeySetUnavailable, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: status=%d", ErrKeySetUnavailable, resp.StatusCode)
	}

	set, err := parseKeySet(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeySetUnavailable, err)
	}

	cached := &cachedKeySet{set: set, fetchedAt: r.now()}
	r.cache.Store(cached)
	return cached, nil
}

// parseKeySet はJWKS形式のJSONを鍵セットにデシリアライズする。
func parseKeySet(data []byte) (jose.JSONWebKeySet, error) {
	var set jose.JSONWebKeySet
	if err := json.Unmarshal(data, &set); err != nil {
		return jose.JSONWebKeySet{}, fmt.Errorf("公開鍵セットのデシリアライズに失敗: %w", err)
	}
	if len(set.Keys) == 0 {
		return jose.JSONWebKeySet{}, errors.New("公開鍵セットに鍵が含まれていません")
	}
	return set, nil
}

// findKey は鍵セットから署名検証用の公開鍵を探す。
func findKey(set jose.JSONWebKeySet, kid string) (any, error) {
	var candidates []jose.JSONWebKey
	switch {
	case kid != "":
		candidates = set.Key(kid)
	case len(set.Keys) == 1:
		candidates = set.Keys
	}

	for _, k := range candidates {
		if k.Use == "enc" {
			continue
		}
		switch pub := k.Public().Key.(type) {
		case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
			return pub, nil
		}
	}
	return nil, fmt.Errorf("%w: kid=%q", errKeyNotFound, kid)
}
