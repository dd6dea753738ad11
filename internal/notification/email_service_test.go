package notification

import (
	"os"
	"strings"
	"testing"

	"backend/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	_ = logger.Init("error", "console", "stderr")
	os.Exit(m.Run())
}

func TestParseTemplatesAllValid(t *testing.T) {
	templates, err := parseTemplates()
	require.NoError(t, err)

	// 每个模板都有主题
	for name := range templates {
		assert.NotEmpty(t, templateSubjects[name], "模板 %s 缺少主题", name)
	}
	assert.Contains(t, templates, TemplateDMCATakedownNotice)
	assert.Contains(t, templates, TemplateDMCARejected)
	assert.Contains(t, templates, TemplateAccountWarning)
	assert.Contains(t, templates, TemplateAccountSuspended)
}

func TestTakedownNoticeContainsCounterNoticeInstructions(t *testing.T) {
	templates, err := parseTemplates()
	require.NoError(t, err)

	body, err := renderTemplate(templates[TemplateDMCATakedownNotice], map[string]any{
		"Username":           "original_author",
		"ContentType":        "STORY",
		"CopyrightHolder":    "Rights Holder LLC",
		"WorkDescription":    "原著小说",
		"Reason":             "确认侵权",
		"CounterNoticeEmail": "dmca@whisperink.example.com",
	})
	require.NoError(t, err)

	// 反通知指引是法律流程的一部分，必须出现
	assert.Contains(t, body, "counter-notice")
	assert.Contains(t, body, "dmca@whisperink.example.com")
	assert.Contains(t, body, "original_author")
}

func TestSuspendedTemplateIndefiniteWording(t *testing.T) {
	templates, err := parseTemplates()
	require.NoError(t, err)

	indefinite, err := renderTemplate(templates[TemplateAccountSuspended], map[string]any{
		"Username": "someone",
		"Reason":   "严重违规",
	})
	require.NoError(t, err)
	assert.Contains(t, indefinite, "无限期")

	bounded, err := renderTemplate(templates[TemplateAccountSuspended], map[string]any{
		"Username":  "someone",
		"Reason":    "违规",
		"ExpiresAt": "2026-09-01 00:00:00 UTC",
	})
	require.NoError(t, err)
	assert.Contains(t, bounded, "2026-09-01")
	assert.False(t, strings.Contains(bounded, "无限期"))
}

func TestRejectedTemplateRendersOptionalReason(t *testing.T) {
	templates, err := parseTemplates()
	require.NoError(t, err)

	withReason, err := renderTemplate(templates[TemplateDMCARejected], map[string]any{
		"CopyrightHolder": "Rights Holder LLC",
		"WorkDescription": "原著小说",
		"Reason":          "证据不足",
	})
	require.NoError(t, err)
	assert.Contains(t, withReason, "证据不足")

	withoutReason, err := renderTemplate(templates[TemplateDMCARejected], map[string]any{
		"CopyrightHolder": "Rights Holder LLC",
		"WorkDescription": "原著小说",
	})
	require.NoError(t, err)
	assert.NotContains(t, withoutReason, "审查意见")
}
