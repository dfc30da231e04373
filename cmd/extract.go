package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"time"

	textUtils "github.com/shouni/go-utils/text"
	"github.com/spf13/cobra"

	"github.com/shouni/go-news-etl/pkg/extract"
	"github.com/shouni/go-news-etl/pkg/feed"
	"github.com/shouni/go-news-etl/pkg/types"
)

var (
	rawURL    string
	asFeed    bool
	maxPrints int
)

// runExtraction は、クリーニング前の記事ペアを取得するメインロジックです。
func runExtraction(parent context.Context, processedURL string, fetcher extract.Fetcher, overallTimeout time.Duration) ([]types.RawArticle, error) {
	ctx, cancel := context.WithTimeout(parent, overallTimeout)
	defer cancel()

	if asFeed {
		parser, err := feed.NewParser(fetcher)
		if err != nil {
			return nil, fmt.Errorf("Parserの初期化エラー: %w", err)
		}
		return parser.FetchArticles(ctx, processedURL)
	}

	extractor, err := extract.NewExtractor(fetcher, extract.WithSelectors(GetConfig().ExtractSelectors()))
	if err != nil {
		return nil, fmt.Errorf("Extractorの初期化エラー: %w", err)
	}
	articles, err := extractor.FetchAndExtract(ctx, processedURL)
	if err != nil {
		return nil, fmt.Errorf("記事抽出エラー (URL: %s): %w", processedURL, err)
	}
	return articles, nil
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "指定されたURLまたは標準入力のURLから、クリーニング前の記事ペアを表示します",
	Long:  `セレクターやフィードの確認用に、抽出した (タイトル, 説明文) をクリーニングせずに表示します。`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 処理対象URLの決定 (フラグ優先)
		urlToProcess := rawURL
		if urlToProcess == "" {
			log.Println("URLが指定されていないため、標準入力からURLを読み込みます...")
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Print("処理するURLを入力してください: ")

			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("標準入力の読み取りエラー: %w", err)
				}
				return fmt.Errorf("URLが入力されていません")
			}
			urlToProcess = scanner.Text()
		}

		// 2. URLのスキーム補完とバリデーション
		processedURL, err := ensureScheme(urlToProcess)
		if err != nil {
			return fmt.Errorf("URLスキームの処理エラー: %w", err)
		}

		timeout := overallTimeout(GetConfig(), 1)
		log.Printf("処理対象URL: %s (全体タイムアウト: %s)\n", processedURL, timeout)

		fetcher := GetGlobalFetcher()
		if fetcher == nil {
			return fmt.Errorf("HTTPクライアントが初期化されていません。rootコマンドのPreRunを確認してください")
		}

		// 3. メインロジックの実行
		articles, err := runExtraction(cmd.Context(), processedURL, fetcher, timeout)
		if err != nil {
			return err
		}

		// 4. 結果の出力
		fmt.Printf("--- 抽出された記事 (%d 件) ---\n", len(articles))
		for i, a := range articles {
			if maxPrints > 0 && i >= maxPrints {
				fmt.Printf("... 他 %d 件\n", len(articles)-maxPrints)
				break
			}
			fmt.Printf("[%d] %s\n", i+1, textUtils.NormalizeText(a.Title))
			fmt.Printf("     %s\n", textUtils.NormalizeText(a.Description))
		}
		fmt.Println("-----------------------")

		return nil
	},
}

func init() {
	extractCmd.Flags().StringVarP(&rawURL, "url", "u", "", "抽出対象のURL")
	extractCmd.Flags().BoolVar(&asFeed, "feed", false, "URLを RSS/Atom フィードとして解析する")
	extractCmd.Flags().IntVarP(&maxPrints, "limit", "n", 20, "表示する最大件数 (0 の場合はすべて)")
}
