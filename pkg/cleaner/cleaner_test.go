package cleaner

import (
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-news-etl/pkg/types"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"基本ケース", " Hello,  World! ", "Hello World"},
		{"空文字列", "", ""},
		{"空白のみ", " \t\n ", ""},
		{"記号のみ", "!?.,;:'\"()-", ""},
		{"改行とタブ", "Breaking\n\tnews\r\ntoday", "Breaking news today"},
		{"記号除去で隣接した空白", "a , b", "a b"},
		{"アンダースコアと数字は残す", "snake_case 2024!", "snake_case 2024"},
		{"Unicode文字は残す", "Café — naïve, 東京!", "Café naïve 東京"},
		{"ノーブレークスペース", "Prime\u00a0\u00a0Minister", "Prime Minister"},
		{"ハイフンとアポストロフィ", "state-of-the-art isn't", "stateoftheart isnt"},
		{"URL", "https://www.dawn.com/news/1", "httpswwwdawncomnews1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Clean(tt.input))
		})
	}
}

func TestClean_Properties(t *testing.T) {
	inputs := []string{
		" Hello,  World! ",
		"a , b ; c",
		"  multiple   spaces\t\tand\n\nlines  ",
		"¡Hola! ¿Qué tal?",
		"Pakistan's PM: \"We will act\" — officials",
		" em\u2003space\u3000ideographic",
		"emoji 🎉 party",
		"",
	}

	for _, in := range inputs {
		out := Clean(in)

		// 冪等性
		assert.Equal(t, out, Clean(out), "Clean が冪等ではありません: %q", in)

		// 連続する空白を含まない
		prevSpace := false
		for _, r := range out {
			isSpace := unicode.IsSpace(r)
			assert.False(t, isSpace && prevSpace, "連続する空白が残っています: %q", out)
			prevSpace = isSpace
		}

		// 単語文字と空白以外を含まない
		for _, r := range out {
			ok := unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' || r == ' '
			assert.True(t, ok, "許可されない文字 %q が残っています: %q", r, out)
		}

		// 前後に空白がない
		if out != "" {
			assert.NotEqual(t, ' ', rune(out[0]))
			assert.NotEqual(t, ' ', rune(out[len(out)-1]))
		}
	}
}

func TestCleanPair(t *testing.T) {
	record := CleanPair(types.RawArticle{Title: " Title, here ", Description: "Some  desc."})
	assert.Equal(t, types.Record{"Title here", "Some desc"}, record)
}

func TestCleanField(t *testing.T) {
	article := types.RawArticle{Title: "Title!", Description: "Desc?"}

	record, err := CleanField(article, types.FieldTitle)
	require.NoError(t, err)
	assert.Equal(t, types.Record{"Title"}, record)

	record, err = CleanField(article, types.FieldDescription)
	require.NoError(t, err)
	assert.Equal(t, types.Record{"Desc"}, record)

	record, err = CleanField(article, types.Field("url"))
	assert.Error(t, err)
	assert.Nil(t, record)
}
