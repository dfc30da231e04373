// Package cleaner は抽出したテキストを正規化します。
package cleaner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shouni/go-news-etl/pkg/types"
)

// whitespaceClass は Unicode の空白文字クラスです (\s に加えて \v, 区切り文字, NEL, 情報分離文字)。
const whitespaceClass = `\s\v\p{Z}\x{85}\x{1C}-\x{1F}`

var (
	// 単語文字 (文字、数字、アンダースコア) と空白以外の文字
	nonWordPattern = regexp.MustCompile(`[^\p{L}\p{N}_` + whitespaceClass + `]`)
	// 連続する空白
	whitespacePattern = regexp.MustCompile(`[` + whitespaceClass + `]+`)
)

// Clean はテキストから句読点・記号を除去し、連続する空白を1つの半角スペースにまとめ、前後の空白を除きます。
// 記号の除去を先に行うため、除去によって隣り合った空白もまとめられ、Clean(Clean(x)) == Clean(x) が成り立ちます。
func Clean(text string) string {
	text = nonWordPattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// CleanPair は記事のタイトルと説明文をそれぞれクリーニングし、2列のレコードを返します。
func CleanPair(a types.RawArticle) types.Record {
	return types.Record{Clean(a.Title), Clean(a.Description)}
}

// CleanField は field で指定したフィールドのみをクリーニングし、1列のレコードを返します。
func CleanField(a types.RawArticle, field types.Field) (types.Record, error) {
	switch field {
	case types.FieldTitle:
		return types.Record{Clean(a.Title)}, nil
	case types.FieldDescription:
		return types.Record{Clean(a.Description)}, nil
	default:
		return nil, fmt.Errorf("不明なフィールドです: %q", field)
	}
}
