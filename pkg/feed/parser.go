package feed

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/shouni/go-news-etl/pkg/extract"
	"github.com/shouni/go-news-etl/pkg/types"
)

// Parser は RSS/Atom フィードを取得し、記事ペアに変換します。
type Parser struct {
	client extract.Fetcher // インターフェースに依存
}

// NewParser は新しい Parser インスタンスを初期化し、依存関係を注入します。
func NewParser(client extract.Fetcher) (*Parser, error) {
	if client == nil {
		return nil, fmt.Errorf("feed.NewParser: Fetcher cannot be nil")
	}
	return &Parser{client: client}, nil
}

// FetchAndParse は指定されたURLからフィードを取得し、パースします。
func (p *Parser) FetchAndParse(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	body, err := p.client.FetchBytes(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得失敗 (URL: %s): %w", feedURL, err)
	}

	fp := gofeed.NewParser()
	feed, parseErr := fp.Parse(bytes.NewReader(body))
	if parseErr != nil {
		return nil, fmt.Errorf("RSSフィードのパース失敗 (URL: %s): %w", feedURL, parseErr)
	}
	return feed, nil
}

// FetchArticles はフィードの各アイテムを (タイトル, 説明文) のペアに変換します。
// 説明文が空の場合は本文 (content) を使い、HTMLタグはテキストに展開します。
// extract.KeepArticle を満たさないアイテムは除外されます。
func (p *Parser) FetchArticles(ctx context.Context, feedURL string) ([]types.RawArticle, error) {
	feed, err := p.FetchAndParse(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	return ItemsToArticles(feed), nil
}

// ItemsToArticles は gofeed.Feed のアイテムを文書順に記事ペアへ変換します。
func ItemsToArticles(feed *gofeed.Feed) []types.RawArticle {
	articles := make([]types.RawArticle, 0)
	if feed == nil {
		return articles
	}

	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		desc := item.Description
		if strings.TrimSpace(desc) == "" {
			desc = item.Content
		}
		article := types.RawArticle{
			Title:       htmlToText(item.Title),
			Description: htmlToText(desc),
		}
		if extract.KeepArticle(article) {
			articles = append(articles, article)
		}
	}
	return articles
}

// htmlToText はフィード内に埋め込まれたHTMLをテキストに展開し、前後の空白を除きます。
func htmlToText(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}
