package pipeline

import (
	"context"
	"fmt"

	"github.com/shouni/go-news-etl/pkg/csvout"
	"github.com/shouni/go-news-etl/pkg/etl"
	"github.com/shouni/go-news-etl/pkg/extract"
)

// ScrapeToCSV は、URLから記事ペアを抽出し、クリーニングした (タイトル, 説明文) を outPath に書き出す
// スケジューラーを介さない単発の処理パイプラインです。書き出した行数を返します。
func ScrapeToCSV(ctx context.Context, extractor *extract.Extractor, rawURL, outPath string) (int, error) {
	if extractor == nil {
		return 0, fmt.Errorf("pipeline.ScrapeToCSV: Extractor cannot be nil")
	}

	// 1. 抽出の実行
	articles, err := extractor.FetchAndExtract(ctx, rawURL)
	if err != nil {
		return 0, fmt.Errorf("記事抽出エラー: %w", err)
	}

	// 2. クリーニング (2列のレコード)
	records := etl.CleanPairs(articles)

	// 3. 書き出し
	if err := csvout.Write(outPath, records); err != nil {
		return 0, fmt.Errorf("CSV書き出しエラー: %w", err)
	}

	return len(records), nil
}
