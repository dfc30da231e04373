// Package dag はソースごとに extract -> transform -> load のタスクチェーンを構築し、実行します。
package dag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shouni/go-news-etl/pkg/etl"
	"github.com/shouni/go-news-etl/pkg/types"
)

// DefaultMaxConcurrency はチェーンの最大同時実行数のデフォルト値です。1 の場合は完全に逐次実行されます。
const DefaultMaxConcurrency = 1

// ETL はチェーンの各タスクが呼び出すステージです。etl.Pipeline が実装します。
type ETL interface {
	Extract(ctx context.Context, src types.Source) (types.ExtractResult, error)
	Transform(req types.TransformRequest) (types.TransformResult, error)
	Load(ctx context.Context, req types.LoadRequest) (types.LoadResult, error)
}

// Chain は1ソース分のタスクIDの並びです。Tasks は実行順に並びます。
type Chain struct {
	Source types.Source
	Tasks  []string
}

// Scheduler はソースごとのチェーンを保持し、実行します。
type Scheduler struct {
	etl            ETL
	chains         []Chain
	maxConcurrency int
	logger         *slog.Logger
}

// Option は Scheduler の設定を行うための関数型です。
type Option func(*Scheduler)

// WithMaxConcurrency は同時に実行するチェーン数の上限を設定します。0以下はデフォルト値になります。
func WithMaxConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxConcurrency = n
		}
	}
}

// WithLogger は構造化ログの出力先を設定します。
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New は sources の各要素について extract_<name> -> transform_<name> -> load_<name> のチェーンを構築します。
func New(e ETL, sources []types.Source, opts ...Option) (*Scheduler, error) {
	if e == nil {
		return nil, fmt.Errorf("dag.New: ETL cannot be nil")
	}

	s := &Scheduler{
		etl:            e,
		maxConcurrency: DefaultMaxConcurrency,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		if seen[src.Name] {
			return nil, fmt.Errorf("ソース名が重複しています: %s", src.Name)
		}
		seen[src.Name] = true

		s.chains = append(s.chains, Chain{
			Source: src,
			Tasks: []string{
				etl.TaskID(etl.StageExtract, src),
				etl.TaskID(etl.StageTransform, src),
				etl.TaskID(etl.StageLoad, src),
			},
		})
	}
	return s, nil
}

// Chains は構築済みのチェーンをソースの順に返します。
func (s *Scheduler) Chains() []Chain {
	chains := make([]Chain, len(s.chains))
	copy(chains, s.chains)
	return chains
}

// Run はすべてのチェーンを実行し、ソースの順に結果を返します。
// あるチェーンの失敗は他のチェーンに影響しません。
func (s *Scheduler) Run(ctx context.Context) []types.ChainResult {
	var wg sync.WaitGroup
	results := make([]types.ChainResult, len(s.chains))

	// バッファ付きチャネルをセマフォとして使用し、同時実行数を制限する
	semaphore := make(chan struct{}, s.maxConcurrency)

	for i, chain := range s.chains {
		wg.Add(1)

		// maxConcurrency件実行中の場合はここでブロックして待機
		semaphore <- struct{}{}

		go func(i int, c Chain) {
			defer wg.Done()
			defer func() { <-semaphore }()

			results[i] = s.runChain(ctx, c)
		}(i, chain)
	}

	wg.Wait()
	return results
}

// runChain は1ソース分のタスクを順に実行し、最初に失敗したタスクで停止します。
func (s *Scheduler) runChain(ctx context.Context, c Chain) types.ChainResult {
	src := c.Source
	fail := func(stage string, err error) types.ChainResult {
		taskID := etl.TaskID(stage, src)
		s.logger.ErrorContext(ctx, "タスクが失敗しました", "task", taskID, "error", err)
		return types.ChainResult{Source: src, FailedTask: taskID, Error: err}
	}

	if err := ctx.Err(); err != nil {
		return fail(etl.StageExtract, err)
	}
	extracted, err := s.etl.Extract(ctx, src)
	if err != nil {
		return fail(etl.StageExtract, err)
	}

	if err := ctx.Err(); err != nil {
		return fail(etl.StageTransform, err)
	}
	transformed, err := s.etl.Transform(types.TransformRequest{
		Source:   src,
		Upstream: extracted,
	})
	if err != nil {
		return fail(etl.StageTransform, err)
	}

	if err := ctx.Err(); err != nil {
		return fail(etl.StageLoad, err)
	}
	loaded, err := s.etl.Load(ctx, types.LoadRequest{
		Source:   src,
		Records:  transformed.Records,
		Filename: etl.OutputFilename(src),
	})
	if err != nil {
		return fail(etl.StageLoad, err)
	}

	return types.ChainResult{Source: src, Output: loaded}
}
