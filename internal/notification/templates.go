package notification

import (
	"bytes"
	"fmt"
	"html/template"
)

// 模板标识
const (
	TemplateDMCATakedownNotice = "dmca_takedown_notice"
	TemplateDMCARejected       = "dmca_rejected"
	TemplateAccountWarning     = "account_warning"
	TemplateAccountSuspended   = "account_suspended"
)

// 各模板的邮件主题
var templateSubjects = map[string]string{
	TemplateDMCATakedownNotice: "您的内容因版权投诉被下架",
	TemplateDMCARejected:       "您的 DMCA 投诉未获支持",
	TemplateAccountWarning:     "账号警告通知",
	TemplateAccountSuspended:   "账号封禁通知",
}

// 内置邮件模板
// 下架通知必须附带反通知指引，这是法律流程的一部分，不是客套话。
var templateBodies = map[string]string{
	TemplateDMCATakedownNotice: `
<p>{{.Username}} 您好，</p>
<p>您发布的内容（类型: {{.ContentType}}）因收到版权方投诉已被下架。</p>
<p>投诉方: {{.CopyrightHolder}}</p>
<p>被主张权利的作品: {{.WorkDescription}}</p>
{{if .Reason}}<p>审查意见: {{.Reason}}</p>{{end}}
<p>如您认为此次下架属于误判，您有权提交反通知（counter-notice）。请向
{{.CounterNoticeEmail}} 发送邮件，写明被下架内容、您对内容拥有合法权利的声明、
您的联系方式与签名。我们收到有效反通知后将依法定流程处理。</p>
`,
	TemplateDMCARejected: `
<p>{{.CopyrightHolder}} 您好，</p>
<p>您就作品「{{.WorkDescription}}」提交的 DMCA 下架投诉经审查未获支持。</p>
{{if .Reason}}<p>审查意见: {{.Reason}}</p>{{end}}
<p>如有新的证据，您可以重新提交投诉。</p>
`,
	TemplateAccountWarning: `
<p>{{.Username}} 您好，</p>
<p>您的账号因违反社区规范收到一次警告。</p>
{{if .Reason}}<p>原因: {{.Reason}}</p>{{end}}
<p>请注意遵守平台规则，多次违规将导致账号封禁。</p>
`,
	TemplateAccountSuspended: `
<p>{{.Username}} 您好，</p>
<p>您的账号已被封禁。</p>
{{if .Reason}}<p>原因: {{.Reason}}</p>{{end}}
{{if .ExpiresAt}}<p>解封时间: {{.ExpiresAt}}</p>{{else}}<p>本次封禁为无限期。</p>{{end}}
`,
}

// parseTemplates 编译全部内置模板
func parseTemplates() (map[string]*template.Template, error) {
	parsed := make(map[string]*template.Template, len(templateBodies))
	for name, body := range templateBodies {
		tpl, err := template.New(name).Parse(body)
		if err != nil {
			return nil, fmt.Errorf("编译邮件模板 %s 失败: %w", name, err)
		}
		parsed[name] = tpl
	}
	return parsed, nil
}

// renderTemplate 渲染模板
func renderTemplate(tpl *template.Template, vars map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("渲染邮件模板失败: %w", err)
	}
	return buf.String(), nil
}
