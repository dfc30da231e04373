package dag_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-news-etl/pkg/dag"
	"github.com/shouni/go-news-etl/pkg/types"
)

// fakeETL は呼び出されたタスクを記録し、指定されたステージで失敗します。
type fakeETL struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error // キー: タスクID

	delay    time.Duration
	inFlight int
	maxSeen  int
}

func (f *fakeETL) record(taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, taskID)
	return f.fail[taskID]
}

func (f *fakeETL) Extract(ctx context.Context, src types.Source) (types.ExtractResult, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if err := f.record("extract_" + src.Name); err != nil {
		return types.ExtractResult{}, err
	}
	return types.ExtractResult{
		TaskID:   "extract_" + src.Name,
		Source:   src,
		Articles: []types.RawArticle{{Title: src.Name + " title", Description: "desc"}},
	}, nil
}

func (f *fakeETL) Transform(req types.TransformRequest) (types.TransformResult, error) {
	if err := f.record("transform_" + req.Source.Name); err != nil {
		return types.TransformResult{}, err
	}
	records := make([]types.Record, 0, len(req.Upstream.Articles))
	for _, a := range req.Upstream.Articles {
		records = append(records, types.Record{a.Title})
	}
	return types.TransformResult{TaskID: "transform_" + req.Source.Name, Source: req.Source, Records: records}, nil
}

func (f *fakeETL) Load(ctx context.Context, req types.LoadRequest) (types.LoadResult, error) {
	if err := f.record("load_" + req.Source.Name); err != nil {
		return types.LoadResult{}, err
	}
	return types.LoadResult{TaskID: "load_" + req.Source.Name, Path: req.Filename, Rows: len(req.Records)}, nil
}

func sources(t *testing.T, urls ...string) []types.Source {
	t.Helper()
	var out []types.Source
	for _, u := range urls {
		src, err := types.NewSource("", u, "")
		require.NoError(t, err)
		out = append(out, src)
	}
	return out
}

func TestNew(t *testing.T) {
	t.Run("nil_etl", func(t *testing.T) {
		s, err := dag.New(nil, nil)
		assert.Error(t, err)
		assert.Nil(t, s)
	})

	t.Run("duplicate_name", func(t *testing.T) {
		s, err := dag.New(&fakeETL{}, sources(t, "https://www.dawn.com/", "https://epaper.dawn.com/"))
		assert.Error(t, err)
		assert.Nil(t, s)
	})
}

func TestChains(t *testing.T) {
	s, err := dag.New(&fakeETL{}, sources(t, "https://www.dawn.com/", "https://www.bbc.com/"))
	require.NoError(t, err)

	chains := s.Chains()
	require.Len(t, chains, 2)
	assert.Equal(t, "dawn", chains[0].Source.Name)
	assert.Equal(t, []string{"extract_dawn", "transform_dawn", "load_dawn"}, chains[0].Tasks)
	assert.Equal(t, []string{"extract_bbc", "transform_bbc", "load_bbc"}, chains[1].Tasks)
}

func TestRun_Sequential(t *testing.T) {
	f := &fakeETL{}
	s, err := dag.New(f, sources(t, "https://www.dawn.com/", "https://www.bbc.com/"))
	require.NoError(t, err)

	results := s.Run(context.Background())
	require.Len(t, results, 2)

	// 同時実行数1では、ソースの順にチェーン全体が完了してから次へ進む
	assert.Equal(t, []string{
		"extract_dawn", "transform_dawn", "load_dawn",
		"extract_bbc", "transform_bbc", "load_bbc",
	}, f.calls)

	for _, res := range results {
		assert.NoError(t, res.Error)
		assert.Empty(t, res.FailedTask)
		assert.Equal(t, 1, res.Output.Rows)
	}
	assert.Equal(t, "dawn_extracted_data.csv", results[0].Output.Path)
	assert.Equal(t, "bbc_extracted_data.csv", results[1].Output.Path)
}

func TestRun_FailureIsolation(t *testing.T) {
	testCases := []struct {
		name       string
		failTask   string
		wantCalls  []string
		wantFailed string
	}{
		{
			name:     "extract失敗",
			failTask: "extract_dawn",
			wantCalls: []string{
				"extract_dawn",
				"extract_bbc", "transform_bbc", "load_bbc",
			},
			wantFailed: "extract_dawn",
		},
		{
			name:     "transform失敗",
			failTask: "transform_dawn",
			wantCalls: []string{
				"extract_dawn", "transform_dawn",
				"extract_bbc", "transform_bbc", "load_bbc",
			},
			wantFailed: "transform_dawn",
		},
		{
			name:     "load失敗",
			failTask: "load_dawn",
			wantCalls: []string{
				"extract_dawn", "transform_dawn", "load_dawn",
				"extract_bbc", "transform_bbc", "load_bbc",
			},
			wantFailed: "load_dawn",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			taskErr := errors.New("boom")
			f := &fakeETL{fail: map[string]error{tc.failTask: taskErr}}
			s, err := dag.New(f, sources(t, "https://www.dawn.com/", "https://www.bbc.com/"))
			require.NoError(t, err)

			results := s.Run(context.Background())
			require.Len(t, results, 2)

			assert.Equal(t, tc.wantCalls, f.calls)
			assert.ErrorIs(t, results[0].Error, taskErr)
			assert.Equal(t, tc.wantFailed, results[0].FailedTask)
			assert.NoError(t, results[1].Error)
		})
	}
}

func TestRun_CancelledContext(t *testing.T) {
	f := &fakeETL{}
	s, err := dag.New(f, sources(t, "https://www.dawn.com/"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := s.Run(ctx)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Error, context.Canceled)
	assert.Equal(t, "extract_dawn", results[0].FailedTask)
	assert.Empty(t, f.calls)
}

func TestRun_MaxConcurrency(t *testing.T) {
	f := &fakeETL{delay: 20 * time.Millisecond}
	s, err := dag.New(f, sources(t,
		"https://www.a.com/", "https://www.b.com/", "https://www.c.com/",
		"https://www.d.com/", "https://www.e.com/",
	), dag.WithMaxConcurrency(2))
	require.NoError(t, err)

	results := s.Run(context.Background())
	require.Len(t, results, 5)

	assert.LessOrEqual(t, f.maxSeen, 2)
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		assert.Equal(t, name, results[i].Source.Name, "結果はソースの順に並ぶ")
		assert.NoError(t, results[i].Error)
	}
}
