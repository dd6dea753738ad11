package dmca

import (
	"testing"

	"backend/internal/content"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocatorGrammar(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    *Locator
		wantErr bool
	}{
		{
			name: "作品路径",
			raw:  "/stories/my-first-story",
			want: &Locator{Kind: content.TypeStory, Slug: "my-first-story"},
		},
		{
			name: "完整 URL 作品",
			raw:  "https://whisperink.example.com/stories/my-slug",
			want: &Locator{Kind: content.TypeStory, Slug: "my-slug"},
		},
		{
			name: "章节路径",
			raw:  "/stories/serial-novel/chapters/12",
			want: &Locator{Kind: content.TypeChapter, Slug: "serial-novel", ChapterNumber: 12},
		},
		{
			name: "短动态路径",
			raw:  "/whispers/3f8f6f6e-29a1-4a52-8a5c-5a1b2c3d4e5f",
			want: &Locator{Kind: content.TypeWhisper, WhisperID: "3f8f6f6e-29a1-4a52-8a5c-5a1b2c3d4e5f"},
		},
		{
			name: "带查询串",
			raw:  "https://whisperink.example.com/stories/my-slug?ref=search",
			want: &Locator{Kind: content.TypeStory, Slug: "my-slug"},
		},
		{name: "空链接", raw: "", wantErr: true},
		{name: "根路径", raw: "/", wantErr: true},
		{name: "未知前缀", raw: "/podcasts/abc", wantErr: true},
		{name: "作品多余段", raw: "/stories/a/b", wantErr: true},
		{name: "非数字章节号", raw: "/stories/a/chapters/twelve", wantErr: true},
		{name: "零号章节", raw: "/stories/a/chapters/0", wantErr: true},
		{name: "负号章节", raw: "/stories/a/chapters/-1", wantErr: true},
		{name: "章节缺段", raw: "/stories/a/chapters", wantErr: true},
		{name: "用户主页", raw: "/users/someone", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseLocator(tc.raw)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrUnresolvableLocator)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
