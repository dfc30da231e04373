package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/shouni/go-news-etl/pkg/types"
)

// ----------------------------------------------------------------------
// 定数定義 (解析関連のみ)
// ----------------------------------------------------------------------
const (
	DefaultArticleSelector     = "article"
	DefaultTitleSelector       = "h2"
	DefaultDescriptionSelector = "p"
)

// Selectors は記事構造を特定するための CSS セレクターです。
type Selectors struct {
	Article     string // 繰り返し現れる記事ノード
	Title       string // 記事ノード内の最初の見出し
	Description string // 記事ノード内の最初の段落
}

// DefaultSelectors は article / h2 / p の組み合わせを返します。
func DefaultSelectors() Selectors {
	return Selectors{
		Article:     DefaultArticleSelector,
		Title:       DefaultTitleSelector,
		Description: DefaultDescriptionSelector,
	}
}

// withDefaults は空のセレクターをデフォルト値で補完します。
func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	if s.Article == "" {
		s.Article = d.Article
	}
	if s.Title == "" {
		s.Title = d.Title
	}
	if s.Description == "" {
		s.Description = d.Description
	}
	return s
}

// Extractor は、Fetcher を使って記事ペアの抽出プロセスを管理します。
type Extractor struct {
	fetcher   Fetcher
	selectors Selectors
}

// Option は Extractor の設定を行うための関数型です。
type Option func(*Extractor)

// WithSelectors は記事/見出し/段落のセレクターを差し替えます。空の項目はデフォルト値のままです。
func WithSelectors(s Selectors) Option {
	return func(e *Extractor) {
		e.selectors = s.withDefaults()
	}
}

// NewExtractor は、新しいExtractorのインスタンスを生成します。
func NewExtractor(fetcher Fetcher, opts ...Option) (*Extractor, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("extract.NewExtractor: Fetcher cannot be nil")
	}
	e := &Extractor{
		fetcher:   fetcher,
		selectors: DefaultSelectors(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Fetcher は注入されたフェッチャーを返します。
func (e *Extractor) Fetcher() Fetcher {
	return e.fetcher
}

// ----------------------------------------------------------------------
// メイン関数
// ----------------------------------------------------------------------

// FetchAndExtract は指定されたURLからHTMLを取得し、記事ペアを抽出します。
// 取得エラー (ネットワーク、非2xx、タイムアウト) はそのまま呼び出し元へ返します。
func (e *Extractor) FetchAndExtract(ctx context.Context, url string) ([]types.RawArticle, error) {
	// 1. Fetcherから生のバイト配列を取得 (通信の責務)
	htmlBytes, err := e.fetcher.FetchBytes(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("ページの取得に失敗しました (URL: %s): %w", url, err)
	}

	// 2. 解析の責務
	return e.Extract(htmlBytes)
}

// Extract はHTMLから article 要素を文書順に走査し、(タイトル, 説明文) のペアを返します。
// KeepArticle を満たさない要素はエラーもログもなく除外されます。
func (e *Extractor) Extract(markup []byte) ([]types.RawArticle, error) {
	reader, err := utf8Reader(markup)
	if err != nil {
		return nil, fmt.Errorf("文字コードの判定に失敗しました: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("HTML解析に失敗しました: %w", err)
	}

	articles := make([]types.RawArticle, 0)
	doc.Find(e.selectors.Article).Each(func(_ int, s *goquery.Selection) {
		article := types.RawArticle{
			Title:       firstText(s, e.selectors.Title),
			Description: firstText(s, e.selectors.Description),
		}
		if KeepArticle(article) {
			articles = append(articles, article)
		}
	})

	return articles, nil
}

// KeepArticle は抽出フィルターの述語です。
// タイトルと説明文の両方が空でない場合にのみ true を返します。
func KeepArticle(a types.RawArticle) bool {
	return a.Title != "" && a.Description != ""
}

// firstText は selector に一致する最初の子孫ノードのテキストを前後の空白を除いて返します。
func firstText(s *goquery.Selection, selector string) string {
	return strings.TrimSpace(s.Find(selector).First().Text())
}

// utf8Reader は UTF-8 として妥当な入力はそのまま、それ以外は meta 宣言などから文字コードを判定して変換します。
func utf8Reader(markup []byte) (io.Reader, error) {
	if utf8.Valid(markup) {
		return bytes.NewReader(markup), nil
	}
	return charset.NewReader(bytes.NewReader(markup), "")
}
