// Package csvout はクリーニング済みレコードをカンマ区切りのテキストファイルに書き出します。
package csvout

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/shouni/go-news-etl/pkg/types"
)

// Header は出力ファイルの固定ヘッダー (1列) です。
const Header = "Cleaned URL"

// Write は path のファイルを作成 (既存の場合は切り詰め) し、ヘッダーに続けて1レコード1行で書き込みます。
// レコードの列数はヘッダーの列数と一致しなくても、そのまま書き込みます。
func Write(path string, records []types.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("出力ファイルの作成に失敗しました (%s): %w", path, err)
	}

	if err := WriteTo(f, records); err != nil {
		_ = f.Close()
		return fmt.Errorf("出力ファイルへの書き込みに失敗しました (%s): %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("出力ファイルのクローズに失敗しました (%s): %w", path, err)
	}
	return nil
}

// WriteTo はヘッダーとレコードを w に書き込みます。行末は CRLF です。
func WriteTo(w io.Writer, records []types.Record) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write([]string{Header}); err != nil {
		return err
	}
	for _, record := range records {
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
