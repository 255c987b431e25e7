// Package security は投稿コンテンツ取得まわりのセキュリティ機能を提供する。
//
// ユーザーが投稿したソースURLはサーバー側でフェッチされるため、
// SSRF対策としてプライベートネットワークへのアクセスを遮断する必要がある。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// SourceGuardService は投稿ソースURLのSSRF防止機能のインターフェース。
// 投稿受付時の事前検証と、抽出パイプラインでの実フェッチの両方で使用する。
type SourceGuardService interface {
	// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
	// safeurlによりプライベートIP、ループバック、リンクローカル、
	// クラウドメタデータIPへのリクエストがDialerレベルでブロックされる。
	// DNS再バインディング攻撃にも対応する。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateSourceURL は投稿されたURLの安全性を静的に検証する。
	// DNS解決は行わない。実フェッチ時の動的検証はNewSafeClientが担う。
	ValidateSourceURL(rawURL string) error
}

// blockedNetworks はブロック対象のネットワーク範囲。
// パッケージ初期化時に1回だけパースする。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		"10.0.0.0/8",     // プライベート (RFC 1918)
		"172.16.0.0/12",  // プライベート (RFC 1918)
		"192.168.0.0/16", // プライベート (RFC 1918)
		"127.0.0.0/8",    // ループバック
		"169.254.0.0/16", // リンクローカル。クラウドメタデータIPを含む
		"0.0.0.0/8",      // カレントネットワーク
		"::1/128",        // IPv6ループバック
		"fe80::/10",      // IPv6リンクローカル
		"fc00::/7",       // IPv6ユニークローカル
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// sourceGuard はSourceGuardServiceの実装。
type sourceGuard struct{}

// NewSourceGuard はSourceGuardServiceの新しいインスタンスを生成する。
func NewSourceGuard() *sourceGuard {
	return &sourceGuard{}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
func (g *sourceGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	wrapped := safeurl.Client(config)
	return wrapped.Client
}

// ValidateSourceURL は投稿されたURLの安全性を静的に検証する。
func (g *sourceGuard) ValidateSourceURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("disallowed scheme: %s", scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		for _, network := range blockedNetworks {
			if network.Contains(ip) {
				return fmt.Errorf("blocked IP address: %s", ip.String())
			}
		}
		return nil
	}

	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	return nil
}
