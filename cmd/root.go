package cmd

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	clibase "github.com/shouni/go-cli-base"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/spf13/cobra"

	"github.com/shouni/go-news-etl/pkg/config"
	"github.com/shouni/go-news-etl/pkg/extract"
	"github.com/shouni/go-news-etl/pkg/fetcher"
)

// --- グローバル定数 ---

const (
	appName = "news-etl"

	// 全体処理のタイムアウトの下限 (scrape, extract で利用)
	DefaultOverallTimeout = 20 * time.Second
)

// --- グローバル変数とフラグ構造体 ---

// AppFlags はこのアプリケーション固有の永続フラグを保持
type AppFlags struct {
	ConfigPath string // --config 設定ファイルのパス
	TimeoutSec int    // --timeout タイムアウト
	MaxRetries int    // --max-retries リトライ回数
	Fetcher    string // --fetcher httpkit | colly
}

var Flags AppFlags // アプリケーション固有フラグにアクセスするためのグローバル変数

var (
	globalConfig  *config.Config
	globalFetcher extract.Fetcher
)

// --- 初期化とロジック (clibaseへのコールバックとして利用) ---

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().StringVar(
		&Flags.ConfigPath,
		"config",
		"",
		"設定ファイル (YAML) のパス。省略時は組み込みのソース一覧を使用",
	)
	rootCmd.PersistentFlags().IntVar(
		&Flags.TimeoutSec,
		"timeout",
		config.DefaultTimeoutSec,
		"HTTPリクエストのタイムアウト時間（秒）",
	)
	rootCmd.PersistentFlags().IntVar(
		&Flags.MaxRetries,
		"max-retries",
		0,
		"HTTPリクエストのリトライ最大回数 (0 の場合は失敗が確定)",
	)
	rootCmd.PersistentFlags().StringVar(
		&Flags.Fetcher,
		"fetcher",
		config.DefaultFetcher,
		"HTTP取得のバックエンド (httpkit | colly)",
	)
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
// NOTE: clibaseの PersistentPreRunE チェーンにより、clibase.Flags.Verbose はこの関数実行前に設定済み
func initAppPreRunE(cmd *cobra.Command, args []string) error {
	// .env は AWS 認証情報などのためのもので、存在しなくてもエラーにしない
	if err := godotenv.Load(); err != nil && clibase.Flags.Verbose {
		log.Printf(".env ファイルは読み込まれませんでした: %v", err)
	}

	level := slog.LevelInfo
	if clibase.Flags.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(Flags.ConfigPath)
	if err != nil {
		return err
	}

	// フラグが明示された場合のみ設定ファイルの値を上書き
	if cmd.Flags().Changed("timeout") {
		cfg.TimeoutSec = Flags.TimeoutSec
	}
	if cmd.Flags().Changed("max-retries") {
		cfg.MaxRetries = Flags.MaxRetries
	}
	if cmd.Flags().Changed("fetcher") {
		cfg.Fetcher = Flags.Fetcher
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second

	if clibase.Flags.Verbose {
		log.Printf("HTTPクライアントを設定しました (Fetcher: %s, Timeout: %s, MaxRetries: %d)。", cfg.Fetcher, timeout, cfg.MaxRetries)
	}

	// 共有フェッチャーの初期化
	f, err := newFetcher(cfg, timeout)
	if err != nil {
		return err
	}

	globalConfig = cfg
	globalFetcher = f
	return nil
}

// newFetcher は設定されたバックエンドのフェッチャーを生成します。
func newFetcher(cfg *config.Config, timeout time.Duration) (extract.Fetcher, error) {
	switch cfg.Fetcher {
	case config.FetcherHTTPKit:
		return httpkit.New(
			timeout,
			httpkit.WithMaxRetries(uint64(cfg.MaxRetries)),
		), nil
	case config.FetcherColly:
		return fetcher.NewColly(fetcher.Config{
			UserAgent:  cfg.UserAgent,
			Timeout:    timeout,
			MaxRetries: uint64(cfg.MaxRetries),
		}), nil
	default:
		return nil, fmt.Errorf("不明なフェッチャーです: %q", cfg.Fetcher)
	}
}

// GetGlobalFetcher は、初期化されたフェッチャーを返す関数 (DIの代わり)
func GetGlobalFetcher() extract.Fetcher {
	return globalFetcher
}

// GetConfig は、読み込み済みの設定を返します。
func GetConfig() *config.Config {
	return globalConfig
}

// overallTimeout はクライアントタイムアウトの2倍を n 件分の全体タイムアウトとします。
func overallTimeout(cfg *config.Config, n int) time.Duration {
	if n < 1 {
		n = 1
	}
	timeout := time.Duration(cfg.TimeoutSec) * 2 * time.Second * time.Duration(n)
	if timeout < DefaultOverallTimeout {
		timeout = DefaultOverallTimeout
	}
	return timeout
}

// --- エントリポイント ---

// Execute は、clibaseのExecuteを使用してアプリケーションを実行するメイン関数です。
func Execute() {
	clibase.Execute(
		appName,
		addAppPersistentFlags,
		initAppPreRunE,
		runCmd,
		scrapeCmd,
		extractCmd,
		sourcesCmd,
	)
	// clibase.Execute() の中で os.Exit(1) が処理されるため、ここでは不要
}
