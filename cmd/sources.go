package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shouni/go-news-etl/pkg/dag"
	"github.com/shouni/go-news-etl/pkg/etl"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "設定されたソースと、ソースごとのタスクチェーンを一覧表示します",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		sources, err := cfg.ToSources()
		if err != nil {
			return err
		}

		pipeline, err := etl.New(cfg, GetGlobalFetcher())
		if err != nil {
			return fmt.Errorf("パイプラインの初期化エラー: %w", err)
		}
		scheduler, err := dag.New(pipeline, sources)
		if err != nil {
			return err
		}

		fmt.Printf("スキーマ: %s", cfg.Schema)
		if cfg.Field != "" {
			fmt.Printf(" (field: %s)", cfg.Field)
		}
		fmt.Printf(", 出力先: %s\n", cfg.OutputDir)

		for i, c := range scheduler.Chains() {
			fmt.Printf("[%d] %s %s (%s)\n", i+1, c.Source.Name, c.Source.URL, c.Source.Kind)
			fmt.Printf("     %s -> %s\n", strings.Join(c.Tasks, " -> "), etl.OutputFilename(c.Source))
		}
		return nil
	},
}
