package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/shouni/go-news-etl/internal/pipeline"
	"github.com/shouni/go-news-etl/pkg/extract"
	"github.com/shouni/go-news-etl/pkg/types"
)

var (
	scrapeURL    string
	scrapeOutput string
)

// defaultScrapeOutput は URL から "<name>_articles.csv" を導出します。導出できない場合は "articles.csv" です。
func defaultScrapeOutput(rawURL string) string {
	name, err := types.SourceName(rawURL)
	if err != nil {
		return "articles.csv"
	}
	return name + "_articles.csv"
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "1つのURLから (タイトル, 説明文) を抽出し、クリーニングしてCSVに書き出します",
	Long:  `スケジューラーを介さずに1つのURLを処理します。各行はクリーニング済みのタイトルと説明文の2列です。`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if scrapeURL == "" {
			return fmt.Errorf("--url で処理対象のURLを指定してください")
		}

		processedURL, err := ensureScheme(scrapeURL)
		if err != nil {
			return fmt.Errorf("URLスキームの処理エラー: %w", err)
		}

		outPath := scrapeOutput
		if outPath == "" {
			outPath = defaultScrapeOutput(processedURL)
		}

		fetcher := GetGlobalFetcher()
		if fetcher == nil {
			return fmt.Errorf("HTTPクライアントが初期化されていません。rootコマンドのPreRunを確認してください")
		}
		extractor, err := extract.NewExtractor(fetcher, extract.WithSelectors(GetConfig().ExtractSelectors()))
		if err != nil {
			return fmt.Errorf("Extractorの初期化エラー: %w", err)
		}

		timeout := overallTimeout(GetConfig(), 1)
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		log.Printf("処理対象URL: %s (全体タイムアウト: %s)\n", processedURL, timeout)

		rows, err := pipeline.ScrapeToCSV(ctx, extractor, processedURL, outPath)
		if err != nil {
			return err
		}

		fmt.Printf("✅ %s に %d 件の記事を書き出しました\n", outPath, rows)
		return nil
	},
}

func init() {
	scrapeCmd.Flags().StringVarP(&scrapeURL, "url", "u", "", "抽出対象のURL")
	scrapeCmd.Flags().StringVarP(&scrapeOutput, "output", "o", "", "出力CSVのパス (デフォルト: <name>_articles.csv)")
}
