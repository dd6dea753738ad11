package classify

import (
	"context"
	"regexp"
	"strings"

	"backend/internal/detector"
)

// ============================================================================
// 分类适配器
// ============================================================================

// Adapter 分类适配器
// 在信任外部分类器输出之前先套用白名单、黑名单和本地正则。
// 白名单优先于黑名单: 被平台显式豁免的词条不会再被拉黑。
type Adapter struct {
	classifier Classifier
}

// NewAdapter 创建分类适配器
func NewAdapter(classifier Classifier) *Adapter {
	return &Adapter{classifier: classifier}
}

// Classify 按检测器配置对内容分类
// 返回 ErrClassifierUnavailable 时调用方必须落空置信度标记转人工，
// 不得放行也不得拦截。
func (a *Adapter) Classify(ctx context.Context, cfg *detector.DetectorConfig, payload string) (*Result, error) {
	// 白名单短路: 强制判负
	if matchAny(payload, cfg.WhitelistEntries()) {
		return &Result{IsMatch: false, Confidence: 0}, nil
	}

	// 黑名单短路: 强制判正，置信度 1.0
	if matchAny(payload, cfg.BlacklistEntries()) {
		return &Result{IsMatch: true, Confidence: 1.0}, nil
	}

	// 配置了本地正则的类别（PII 等）不出网，本地匹配即终局
	if cfg.Pattern != "" {
		re, err := regexp.Compile(cfg.Pattern)
		if err == nil {
			if re.MatchString(payload) {
				return &Result{IsMatch: true, Confidence: 1.0}, nil
			}
			return &Result{IsMatch: false, Confidence: 0}, nil
		}
		// 入库时已校验过正则，这里编译失败说明配置被绕过写坏，降级走外部分类器
	}

	return a.classifier.Classify(ctx, cfg.Category, payload)
}

// matchAny 大小写不敏感的子串匹配
func matchAny(payload string, entries []string) bool {
	if len(entries) == 0 {
		return false
	}
	lowered := strings.ToLower(payload)
	for _, entry := range entries {
		if entry == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(entry)) {
			return true
		}
	}
	return false
}
