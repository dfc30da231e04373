package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shouni/go-news-etl/pkg/dag"
	"github.com/shouni/go-news-etl/pkg/etl"
	"github.com/shouni/go-news-etl/pkg/storage"
)

var (
	runOutputDir   string
	runConcurrency int
)

// runETL は、設定されたすべてのソースについて extract -> transform -> load を実行します。
// 1件でもチェーンが失敗した場合はエラーを返します。
func runETL(cmd *cobra.Command) error {
	cfg := GetConfig()
	if cfg == nil {
		return fmt.Errorf("設定が初期化されていません。rootコマンドのPreRunを確認してください")
	}
	fetcher := GetGlobalFetcher()
	if fetcher == nil {
		return fmt.Errorf("HTTPクライアントが初期化されていません。rootコマンドのPreRunを確認してください")
	}

	if runOutputDir != "" {
		cfg.OutputDir = runOutputDir
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency = runConcurrency
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("出力ディレクトリの作成に失敗しました (%s): %w", cfg.OutputDir, err)
	}

	sources, err := cfg.ToSources()
	if err != nil {
		return err
	}

	timeout := overallTimeout(cfg, len(sources))
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	opts := []etl.Option{etl.WithLogger(slog.Default())}
	if cfg.S3.Bucket != "" {
		publisher, err := storage.NewS3Publisher(ctx, cfg.S3.Bucket, cfg.S3.Prefix, cfg.S3.Region)
		if err != nil {
			return err
		}
		opts = append(opts, etl.WithPublisher(publisher))
	}

	pipeline, err := etl.New(cfg, fetcher, opts...)
	if err != nil {
		return fmt.Errorf("パイプラインの初期化エラー: %w", err)
	}
	scheduler, err := dag.New(pipeline, sources,
		dag.WithMaxConcurrency(cfg.Concurrency),
		dag.WithLogger(slog.Default()),
	)
	if err != nil {
		return err
	}

	log.Printf("ETL開始 (ソース数: %d, 最大同時実行数: %d, 全体タイムアウト: %s)\n",
		len(sources), cfg.Concurrency, timeout)

	results := scheduler.Run(ctx)

	fmt.Println("--- ETL結果 ---")

	successCount := 0
	errorCount := 0

	for i, res := range results {
		if res.Error != nil {
			errorCount++
			fmt.Printf("❌ [%d] %s (%s)\n", i+1, res.Source.Name, res.Source.URL)
			fmt.Printf("     失敗したタスク: %s\n", res.FailedTask)
			fmt.Printf("     エラー: %v\n", res.Error)
			continue
		}
		successCount++
		fmt.Printf("✅ [%d] %s (%s)\n", i+1, res.Source.Name, res.Source.URL)
		fmt.Printf("     出力: %s (%d 行)\n", res.Output.Path, res.Output.Rows)
		if res.Output.Published != "" {
			fmt.Printf("     公開先: %s\n", res.Output.Published)
		}
	}

	fmt.Println("-------------------------------")
	fmt.Printf("完了: 成功 %d 件, 失敗 %d 件\n", successCount, errorCount)

	if errorCount > 0 {
		return fmt.Errorf("%d 件のソースでETLが失敗しました", errorCount)
	}
	return nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "設定されたすべてのソースについて extract -> transform -> load を実行します",
	Long: `設定ファイル (--config) または組み込みのソース一覧の各ソースについて、
extract_<name> -> transform_<name> -> load_<name> の順にタスクを実行し、
<name>_extracted_data.csv を出力ディレクトリに書き出します。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runETL(cmd)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runOutputDir, "output-dir", "o", "", "CSVの出力ディレクトリ (設定ファイルの output_dir を上書き)")
	runCmd.Flags().IntVarP(&runConcurrency, "concurrency", "c", dag.DefaultMaxConcurrency,
		fmt.Sprintf("同時に実行するソース数 (デフォルト: %d)", dag.DefaultMaxConcurrency))
}
