package notification

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"backend/internal/config"
	"backend/internal/logger"
	"backend/internal/metrics"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrUnknownTemplate 未注册的邮件模板
var ErrUnknownTemplate = errors.New("未知邮件模板")

// Sender 通知发送接口
// 处置引擎与 DMCA 服务都通过这个接口发信，模板名决定主题与正文。
type Sender interface {
	Send(ctx context.Context, templateName, recipient string, vars map[string]any) error
}

// EmailLog 邮件发送日志
type EmailLog struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	TemplateName string     `json:"templateName" gorm:"size:100;index"`
	Recipient    string     `json:"recipient" gorm:"size:255;not null"`
	Subject      string     `json:"subject" gorm:"size:500"`
	Status       string     `json:"status" gorm:"size:20;index"` // sent, failed
	ErrorMessage string     `json:"errorMessage" gorm:"type:text"`
	SentAt       *time.Time `json:"sentAt"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"index;autoCreateTime"`
}

// TableName 指定表名
func (EmailLog) TableName() string {
	return "email_logs"
}

// ============================================================================
// SMTP 邮件服务
// ============================================================================

// EmailService 基于 SMTP 的邮件发送服务
type EmailService struct {
	db        *gorm.DB
	cfg       *config.SMTPConfig
	templates map[string]*template.Template
}

// NewEmailService 创建邮件服务
func NewEmailService(db *gorm.DB, cfg *config.SMTPConfig) (*EmailService, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &EmailService{db: db, cfg: cfg, templates: templates}, nil
}

// Send 渲染模板并同步发送邮件
// 每次发送不论成败都落一条 email_logs，供对账与排查。
func (s *EmailService) Send(ctx context.Context, templateName, recipient string, vars map[string]any) error {
	tpl, ok := s.templates[templateName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTemplate, templateName)
	}
	subject := templateSubjects[templateName]

	body, err := renderTemplate(tpl, vars)
	if err != nil {
		return err
	}

	sendErr := s.deliver(recipient, subject, body)
	s.logSend(ctx, templateName, recipient, subject, sendErr)

	if sendErr != nil {
		metrics.EmailsSentTotal.WithLabelValues(templateName, "failed").Inc()
		logger.WithContext(ctx).Error("邮件发送失败",
			zap.String("template", templateName),
			zap.String("recipient", recipient),
			zap.Error(sendErr),
		)
		return fmt.Errorf("发送邮件失败: %w", sendErr)
	}

	metrics.EmailsSentTotal.WithLabelValues(templateName, "sent").Inc()
	return nil
}

// deliver 构建 MIME 消息并经 SMTP 发出
func (s *EmailService) deliver(recipient, subject, body string) error {
	var msg bytes.Buffer
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", s.cfg.FromName, s.cfg.FromAddress))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", recipient))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if s.cfg.UseTLS {
		return s.deliverWithTLS(addr, recipient, msg.Bytes())
	}

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	return smtp.SendMail(addr, auth, s.cfg.FromAddress, []string{recipient}, msg.Bytes())
}

// deliverWithTLS 使用 TLS 发送邮件
func (s *EmailService) deliverWithTLS(addr, recipient string, msg []byte) error {
	tlsConfig := &tls.Config{
		ServerName: s.cfg.Host,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("TLS连接失败: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("创建SMTP客户端失败: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP认证失败: %w", err)
	}

	if err := client.Mail(s.cfg.FromAddress); err != nil {
		return fmt.Errorf("设置发件人失败: %w", err)
	}
	if err := client.Rcpt(recipient); err != nil {
		return fmt.Errorf("设置收件人失败: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("获取数据写入器失败: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("写入邮件内容失败: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("关闭数据写入器失败: %w", err)
	}

	return client.Quit()
}

// logSend 记录发送日志，写入失败只打日志
func (s *EmailService) logSend(ctx context.Context, templateName, recipient, subject string, sendErr error) {
	if s.db == nil {
		return
	}
	log := &EmailLog{
		TemplateName: templateName,
		Recipient:    recipient,
		Subject:      subject,
	}
	if sendErr != nil {
		log.Status = "failed"
		log.ErrorMessage = sendErr.Error()
	} else {
		log.Status = "sent"
		now := time.Now().UTC()
		log.SentAt = &now
	}
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		logger.WithContext(ctx).Error("写入邮件日志失败", zap.Error(err))
	}
}
