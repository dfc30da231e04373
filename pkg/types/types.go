package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSourceURL は、URLからソース名を導出できない場合のエラーです。
var ErrInvalidSourceURL = errors.New("URLからソース名を導出できません")

// Kind はソースの取得形式を表します。
type Kind string

const (
	KindHTML Kind = "html" // HTMLページの article 要素から抽出
	KindFeed Kind = "feed" // RSS/Atom フィードのアイテムから抽出
)

// Source はスクレイピング対象のサイトを表します。設定時に確定し、以後変更されません。
type Source struct {
	Name string // タスクIDと出力ファイル名に使う識別子 (例: "dawn")
	URL  string
	Kind Kind
}

// NewSource は Source を生成します。name が空の場合は URL から導出します。
func NewSource(name, rawURL string, kind Kind) (Source, error) {
	if name == "" {
		derived, err := SourceName(rawURL)
		if err != nil {
			return Source{}, err
		}
		name = derived
	}
	if kind == "" {
		kind = KindHTML
	}
	return Source{Name: name, URL: rawURL, Kind: kind}, nil
}

// SourceName は URL をドットで分割した2番目の要素をソース名として返します。
// "https://www.dawn.com/" は "dawn" になります。
func SourceName(rawURL string) (string, error) {
	parts := strings.Split(rawURL, ".")
	if len(parts) < 2 || parts[1] == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidSourceURL, rawURL)
	}
	return parts[1], nil
}

// RawArticle は1つの article 要素から抽出された (タイトル, 説明文) のペアです。
type RawArticle struct {
	Title       string
	Description string
}

// Record はクリーニング済みのフィールド列です。列数はスキーマによって異なります。
type Record []string

// Schema は Transform が生成するレコードの形を表します。
type Schema string

const (
	SchemaPair   Schema = "pair"   // (タイトル, 説明文) の2列
	SchemaSingle Schema = "single" // Field で選んだ1列
)

// Field は SchemaSingle で出力するフィールドです。
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
)

// ----------------------------------------------------------------------
// ステージ間で受け渡す結果/リクエスト
// ----------------------------------------------------------------------

// ExtractResult は extract タスクの出力です。
type ExtractResult struct {
	TaskID   string
	Source   Source
	Articles []RawArticle
}

// TransformRequest は transform タスクの入力です。
// Schema / Field が空の場合はパイプラインの設定値が使われます。
type TransformRequest struct {
	Source   Source
	Upstream ExtractResult
	Schema   Schema
	Field    Field
}

// TransformResult は transform タスクの出力です。
type TransformResult struct {
	TaskID  string
	Source  Source
	Records []Record
}

// LoadRequest は load タスクの入力です。
type LoadRequest struct {
	Source   Source
	Records  []Record
	Filename string
}

// LoadResult は load タスクの出力です。
type LoadResult struct {
	TaskID    string
	Path      string // 書き込んだCSVファイルのパス
	Rows      int    // ヘッダーを除いた行数
	Published string // 公開先 (S3 URI など)。公開しない場合は空
}

// ChainResult は1ソース分の extract -> transform -> load の結果、
// またはその処理中に発生したエラーを保持します。
type ChainResult struct {
	Source     Source
	FailedTask string // 失敗したタスクID。成功時は空
	Output     LoadResult
	Error      error
}
