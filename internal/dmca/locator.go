package dmca

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"backend/internal/content"
)

// ErrUnresolvableLocator 侵权链接无法定位到内容
var ErrUnresolvableLocator = errors.New("侵权链接无法定位内容")

// Locator 从侵权链接解析出的内容定位
// 链接形态固定为三种:
//
//	/stories/{slug}              -> 作品
//	/stories/{slug}/chapters/{n} -> 章节
//	/whispers/{id}               -> 短动态
type Locator struct {
	Kind          string // STORY / CHAPTER / WHISPER
	Slug          string
	ChapterNumber int
	WhisperID     string
}

// ParseLocator 解析侵权链接
// 接受完整 URL 或纯路径，host 不参与判定。任何不符合固定形态的
// 链接一律返回 ErrUnresolvableLocator，绝不猜测。
func ParseLocator(raw string) (*Locator, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: 链接为空", ErrUnresolvableLocator)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresolvableLocator, err)
	}

	segments := splitPath(parsed.Path)
	switch {
	case len(segments) == 2 && segments[0] == "stories":
		if segments[1] == "" {
			return nil, fmt.Errorf("%w: 作品 slug 为空", ErrUnresolvableLocator)
		}
		return &Locator{Kind: content.TypeStory, Slug: segments[1]}, nil

	case len(segments) == 4 && segments[0] == "stories" && segments[2] == "chapters":
		number, err := strconv.Atoi(segments[3])
		if err != nil || number < 1 {
			return nil, fmt.Errorf("%w: 非法章节序号 %q", ErrUnresolvableLocator, segments[3])
		}
		return &Locator{Kind: content.TypeChapter, Slug: segments[1], ChapterNumber: number}, nil

	case len(segments) == 2 && segments[0] == "whispers":
		if segments[1] == "" {
			return nil, fmt.Errorf("%w: 短动态 ID 为空", ErrUnresolvableLocator)
		}
		return &Locator{Kind: content.TypeWhisper, WhisperID: segments[1]}, nil

	default:
		return nil, fmt.Errorf("%w: 未知链接形态 %s", ErrUnresolvableLocator, parsed.Path)
	}
}

// Resolve 把定位落到具体内容
func (l *Locator) Resolve(ctx context.Context, store content.Store) (*content.Ref, error) {
	var ref *content.Ref
	var err error

	switch l.Kind {
	case content.TypeStory:
		ref, err = store.ResolveStory(ctx, l.Slug)
	case content.TypeChapter:
		ref, err = store.ResolveChapter(ctx, l.Slug, l.ChapterNumber)
	case content.TypeWhisper:
		ref, err = store.ResolveWhisper(ctx, l.WhisperID)
	default:
		return nil, fmt.Errorf("%w: 未知定位类型 %s", ErrUnresolvableLocator, l.Kind)
	}

	if err != nil {
		if errors.Is(err, content.ErrContentNotFound) {
			return nil, fmt.Errorf("%w: 内容不存在", ErrUnresolvableLocator)
		}
		return nil, err
	}
	return ref, nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
