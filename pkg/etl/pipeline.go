// Package etl は1ソース分の extract / transform / load の各ステージを提供します。
// スケジューラー (pkg/dag) はこれらを extract -> transform -> load の順に呼び出します。
package etl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/shouni/go-news-etl/pkg/cleaner"
	"github.com/shouni/go-news-etl/pkg/config"
	"github.com/shouni/go-news-etl/pkg/csvout"
	"github.com/shouni/go-news-etl/pkg/extract"
	"github.com/shouni/go-news-etl/pkg/feed"
	"github.com/shouni/go-news-etl/pkg/storage"
	"github.com/shouni/go-news-etl/pkg/types"
)

// ErrUnknownSchema は Transform に未知のスキーマが指定された場合のエラーです。
var ErrUnknownSchema = errors.New("不明なスキーマです")

// タスク種別
const (
	StageExtract   = "extract"
	StageTransform = "transform"
	StageLoad      = "load"
)

// OutputSuffix は load ステージが書き出すファイル名の接尾辞です。
const OutputSuffix = "_extracted_data.csv"

// TaskID は "<stage>_<ソース名>" 形式のタスクIDを返します。
func TaskID(stage string, src types.Source) string {
	return stage + "_" + src.Name
}

// OutputFilename はソースごとの出力ファイル名 ("dawn_extracted_data.csv" など) を返します。
func OutputFilename(src types.Source) string {
	return src.Name + OutputSuffix
}

// Pipeline は設定値から構築される ETL の3ステージです。
type Pipeline struct {
	extractor *extract.Extractor
	feeds     *feed.Parser
	publisher storage.Publisher
	outputDir string
	schema    types.Schema
	field     types.Field
	logger    *slog.Logger
}

// Option は Pipeline の設定を行うための関数型です。
type Option func(*Pipeline)

// WithPublisher は load 後に出力ファイルを公開する Publisher を設定します。
func WithPublisher(p storage.Publisher) Option {
	return func(pl *Pipeline) {
		pl.publisher = p
	}
}

// WithLogger は構造化ログの出力先を設定します。
func WithLogger(l *slog.Logger) Option {
	return func(pl *Pipeline) {
		if l != nil {
			pl.logger = l
		}
	}
}

// New は設定値とフェッチャーから Pipeline を生成します。
func New(cfg *config.Config, fetcher extract.Fetcher, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("etl.New: Config cannot be nil")
	}

	extractor, err := extract.NewExtractor(fetcher, extract.WithSelectors(cfg.ExtractSelectors()))
	if err != nil {
		return nil, err
	}
	feeds, err := feed.NewParser(fetcher)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		extractor: extractor,
		feeds:     feeds,
		outputDir: cfg.OutputDir,
		schema:    types.Schema(cfg.Schema),
		field:     types.Field(cfg.Field),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Extract はソースのURLから記事ペアを抽出します。
func (p *Pipeline) Extract(ctx context.Context, src types.Source) (types.ExtractResult, error) {
	taskID := TaskID(StageExtract, src)
	p.logger.DebugContext(ctx, "extract開始", "task", taskID, "url", src.URL, "kind", src.Kind)

	var (
		articles []types.RawArticle
		err      error
	)
	switch src.Kind {
	case types.KindFeed:
		articles, err = p.feeds.FetchArticles(ctx, src.URL)
	case types.KindHTML, "":
		articles, err = p.extractor.FetchAndExtract(ctx, src.URL)
	default:
		err = fmt.Errorf("不明なソース種別です: %q", src.Kind)
	}
	if err != nil {
		return types.ExtractResult{}, fmt.Errorf("%s: %w", taskID, err)
	}

	p.logger.InfoContext(ctx, "extract完了", "task", taskID, "articles", len(articles))
	return types.ExtractResult{
		TaskID:   taskID,
		Source:   src,
		Articles: articles,
	}, nil
}

// Transform は上流の抽出結果をクリーニングし、スキーマに従ったレコードに変換します。
// req.Schema / req.Field が空の場合は設定値を使います。
func (p *Pipeline) Transform(req types.TransformRequest) (types.TransformResult, error) {
	taskID := TaskID(StageTransform, req.Source)

	schema := req.Schema
	if schema == "" {
		schema = p.schema
	}
	field := req.Field
	if field == "" {
		field = p.field
	}

	records := make([]types.Record, 0, len(req.Upstream.Articles))
	switch schema {
	case types.SchemaPair:
		records = CleanPairs(req.Upstream.Articles)
	case types.SchemaSingle:
		for _, a := range req.Upstream.Articles {
			record, err := cleaner.CleanField(a, field)
			if err != nil {
				return types.TransformResult{}, fmt.Errorf("%s: %w", taskID, err)
			}
			records = append(records, record)
		}
	default:
		return types.TransformResult{}, fmt.Errorf("%s: %w: %q", taskID, ErrUnknownSchema, schema)
	}

	p.logger.Debug("transform完了", "task", taskID, "schema", schema, "records", len(records))
	return types.TransformResult{
		TaskID:  taskID,
		Source:  req.Source,
		Records: records,
	}, nil
}

// Load はレコードを出力ディレクトリ配下の req.Filename に書き出します。
// Publisher が設定されている場合は書き出し後に公開します。
func (p *Pipeline) Load(ctx context.Context, req types.LoadRequest) (types.LoadResult, error) {
	taskID := TaskID(StageLoad, req.Source)

	filename := req.Filename
	if filename == "" {
		filename = OutputFilename(req.Source)
	}
	path := filepath.Join(p.outputDir, filename)

	if err := csvout.Write(path, req.Records); err != nil {
		return types.LoadResult{}, fmt.Errorf("%s: %w", taskID, err)
	}

	result := types.LoadResult{
		TaskID: taskID,
		Path:   path,
		Rows:   len(req.Records),
	}

	if p.publisher != nil {
		location, err := p.publisher.Publish(ctx, path)
		if err != nil {
			return types.LoadResult{}, fmt.Errorf("%s: %w", taskID, err)
		}
		result.Published = location
	}

	p.logger.InfoContext(ctx, "load完了", "task", taskID, "path", path, "rows", result.Rows, "published", result.Published)
	return result, nil
}

// CleanPairs は記事ペアをそれぞれクリーニングし、2列のレコードに変換します。
func CleanPairs(articles []types.RawArticle) []types.Record {
	records := make([]types.Record, 0, len(articles))
	for _, a := range articles {
		records = append(records, cleaner.CleanPair(a))
	}
	return records
}
