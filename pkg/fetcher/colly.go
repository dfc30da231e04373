// Package fetcher は extract.Fetcher の colly 実装を提供します。
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/shouni/go-news-etl/pkg/retry"
)

const (
	// DefaultTimeout は、リクエスト単位のデフォルトのタイムアウトです。
	DefaultTimeout = 10 * time.Second
	// DefaultUserAgent は、サイトからのブロックを避けるためのUser-Agentです。
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// StatusError は非2xxのHTTPステータスを表すエラーです。
type StatusError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTPステータスコードエラー: %d (URL: %s): %v", e.StatusCode, e.URL, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Config は CollyFetcher の設定です。
type Config struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries uint64 // 0 の場合、失敗は即座に確定
	Retry      *retry.Config
}

// CollyFetcher は colly を使って静的HTMLを取得します。
// 非2xxのステータスはエラーとして返します。
type CollyFetcher struct {
	config Config
	retry  retry.Config
}

// NewColly は新しい CollyFetcher を生成します。空の設定値はデフォルト値で補完します。
func NewColly(cfg Config) *CollyFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	rc := retry.NewConfig(cfg.MaxRetries)
	if cfg.Retry != nil {
		rc = *cfg.Retry
	}
	return &CollyFetcher{config: cfg, retry: rc}
}

// FetchBytes は URL からコンテンツをフェッチし、生のバイト配列として返します。
// 5xx / 429 とネットワークエラーのみ、設定された回数までリトライします。
func (f *CollyFetcher) FetchBytes(ctx context.Context, targetURL string) ([]byte, error) {
	var body []byte

	op := func() error {
		b, err := f.fetchOnce(ctx, targetURL)
		if err != nil {
			return err
		}
		body = b
		return nil
	}

	if err := retry.Do(ctx, f.retry, fmt.Sprintf("URL(%s)のフェッチ", targetURL), op, shouldRetry); err != nil {
		return nil, err
	}
	return body, nil
}

func (f *CollyFetcher) fetchOnce(ctx context.Context, targetURL string) ([]byte, error) {
	// リクエストごとに新しいコレクターを作成
	c := colly.NewCollector(
		colly.UserAgent(f.config.UserAgent),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(f.config.Timeout)

	var (
		body     []byte
		fetchErr error
	)

	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = &StatusError{URL: targetURL, StatusCode: r.StatusCode, Err: err}
			return
		}
		fetchErr = fmt.Errorf("HTTPリクエストに失敗しました (ネットワーク/接続エラー): %w", err)
	})

	if err := c.Visit(targetURL); err != nil {
		if fetchErr != nil {
			return nil, fetchErr
		}
		return nil, fmt.Errorf("URL(%s)のフェッチに失敗しました: %w", targetURL, err)
	}
	if fetchErr != nil {
		return nil, fetchErr
	}

	return body, nil
}

// shouldRetry はサーバーエラー、レート制限、ネットワークエラーをリトライ対象と判定します。
func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError || se.StatusCode == http.StatusTooManyRequests
	}
	return true
}
