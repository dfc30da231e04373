// Package config はパイプラインの設定 (ソース一覧、スキーマ、出力先など) を管理します。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/shouni/go-news-etl/pkg/extract"
	"github.com/shouni/go-news-etl/pkg/types"
)

// 設定の検証エラー
var (
	ErrNoSources     = errors.New("sources には少なくとも1件のソースが必要です")
	ErrMissingField  = errors.New("schema が single の場合は field が必要です")
	ErrDuplicateName = errors.New("ソース名が重複しています")
	ErrInvalidConfig = errors.New("設定値が不正です")
)

// 設定のデフォルト値
const (
	DefaultOutputDir   = "."
	DefaultConcurrency = 1
	DefaultFetcher     = FetcherHTTPKit
	DefaultTimeoutSec  = 10
)

// フェッチャーのバックエンド
const (
	FetcherHTTPKit = "httpkit"
	FetcherColly   = "colly"
)

// DefaultSources は組み込みのソース一覧です。
var DefaultSources = []string{"https://www.dawn.com/", "https://www.bbc.com/"}

// Config はパイプライン全体の設定です。
type Config struct {
	Sources     []SourceConfig `yaml:"sources" validate:"dive"`
	OutputDir   string         `yaml:"output_dir"`
	Schema      string         `yaml:"schema" validate:"required,oneof=pair single"`
	Field       string         `yaml:"field" validate:"omitempty,oneof=title description"`
	Concurrency int            `yaml:"concurrency" validate:"gte=0"`
	Fetcher     string         `yaml:"fetcher" validate:"omitempty,oneof=httpkit colly"`
	TimeoutSec  int            `yaml:"timeout_sec" validate:"gte=0"`
	MaxRetries  int            `yaml:"max_retries" validate:"gte=0"`
	UserAgent   string         `yaml:"user_agent"`
	Selectors   SelectorConfig `yaml:"selectors"`
	S3          S3Config       `yaml:"s3"`
}

// SourceConfig は1件のソース設定です。name を省略すると URL から導出されます。
type SourceConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url" validate:"required,url"`
	Kind string `yaml:"kind" validate:"omitempty,oneof=html feed"`
}

// SelectorConfig は記事構造のセレクターです。空の項目は article / h2 / p になります。
type SelectorConfig struct {
	Article     string `yaml:"article"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// S3Config は出力CSVの公開先です。bucket が空の場合は公開しません。
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region" validate:"required_with=Bucket"`
}

// Default は組み込みのソース一覧 (dawn, bbc) と single/title スキーマの設定を返します。
func Default() *Config {
	cfg := &Config{
		Schema: string(types.SchemaSingle),
		Field:  string(types.FieldTitle),
	}
	for _, u := range DefaultSources {
		cfg.Sources = append(cfg.Sources, SourceConfig{URL: u})
	}
	cfg.applyDefaults()
	return cfg
}

// Load は YAML ファイルから設定を読み込み、デフォルト値を補完して検証します。
// path が空の場合は Default() を返します。
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込みに失敗しました (%s): %w", path, err)
	}
	return Parse(data)
}

// Parse は YAML のバイト列から設定を生成します。
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("設定ファイルのパースに失敗しました: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Fetcher == "" {
		c.Fetcher = DefaultFetcher
	}
	if c.TimeoutSec == 0 {
		c.TimeoutSec = DefaultTimeoutSec
	}
	for i := range c.Sources {
		if c.Sources[i].Kind == "" {
			c.Sources[i].Kind = string(types.KindHTML)
		}
	}
}

// Validate は設定値を検証します。
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return ErrNoSources
	}

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, formatFieldError(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if types.Schema(c.Schema) == types.SchemaSingle && c.Field == "" {
		return ErrMissingField
	}

	sources, err := c.ToSources()
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(sources))
	for _, s := range sources {
		if seen[s.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateName, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// ToSources はソース設定を types.Source に変換します。
func (c *Config) ToSources() ([]types.Source, error) {
	sources := make([]types.Source, 0, len(c.Sources))
	for _, sc := range c.Sources {
		src, err := types.NewSource(sc.Name, sc.URL, types.Kind(sc.Kind))
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// ExtractSelectors はセレクター設定を extract.Selectors に変換します。
func (c *Config) ExtractSelectors() extract.Selectors {
	return extract.Selectors{
		Article:     c.Selectors.Article,
		Title:       c.Selectors.Title,
		Description: c.Selectors.Description,
	}
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s は必須です", fe.Namespace())
	case "required_with":
		return fmt.Sprintf("%s は %s と合わせて必須です", fe.Namespace(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s は [%s] のいずれかである必要があります (値: %v)", fe.Namespace(), fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("%s は有効なURLである必要があります (値: %v)", fe.Namespace(), fe.Value())
	default:
		return fmt.Sprintf("%s が %s の検証に失敗しました", fe.Namespace(), fe.Tag())
	}
}
