package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whisperink_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whisperink_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets, // 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10
		},
		[]string{"method", "path"},
	)
)

// 内容扫描指标
var (
	// ScanOutcomesTotal 扫描结果总数，按类别与路由去向区分
	ScanOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whisperink_scan_outcomes_total",
			Help: "内容扫描结果总数",
		},
		[]string{"category", "routed"}, // routed: REVIEW, AUTO_DISMISSED, CLEAN, UNAVAILABLE
	)

	// ClassifierCallDuration 外部分类器调用耗时（秒）
	ClassifierCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whisperink_classifier_call_duration_seconds",
			Help:    "外部分类器调用耗时分布",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
		[]string{"category"},
	)

	// ClassifierErrorsTotal 外部分类器失败总数
	ClassifierErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whisperink_classifier_errors_total",
			Help: "外部分类器失败总数",
		},
		[]string{"category"},
	)
)

// 审核与处置指标
var (
	// ModerationDecisionsTotal 审核裁决总数
	ModerationDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whisperink_moderation_decisions_total",
			Help: "审核裁决总数",
		},
		[]string{"action_type"},
	)

	// ReviewQueuePending 人工队列待处理数量
	ReviewQueuePending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "whisperink_review_queue_pending",
			Help: "人工队列待处理数量",
		},
	)

	// EnforcementEffectsTotal 处置副作用执行总数
	EnforcementEffectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whisperink_enforcement_effects_total",
			Help: "处置副作用执行总数",
		},
		[]string{"effect", "status"}, // status: applied, failed
	)

	// ActiveSuspensions 当前生效的封禁数量
	ActiveSuspensions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "whisperink_active_suspensions",
			Help: "当前生效的封禁数量",
		},
	)
)

// DMCA 指标
var (
	// DMCASubmissionsTotal DMCA 投诉提交总数
	DMCASubmissionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whisperink_dmca_submissions_total",
			Help: "DMCA 投诉提交总数",
		},
	)

	// DMCADecisionsTotal DMCA 裁决总数
	DMCADecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whisperink_dmca_decisions_total",
			Help: "DMCA 裁决总数",
		},
		[]string{"status"}, // APPROVED, REJECTED
	)
)

// 通知指标
var (
	// EmailsSentTotal 邮件发送总数
	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whisperink_emails_sent_total",
			Help: "邮件发送总数",
		},
		[]string{"template", "status"}, // status: sent, failed
	)
)

// 数据库指标
var (
	// DBConnections 数据库连接数
	DBConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "whisperink_db_connections",
			Help: "数据库连接数",
		},
		[]string{"state"}, // state: open, in_use, idle
	)
)

// 系统指标
var (
	// BuildInfo 构建信息
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "whisperink_build_info",
			Help: "WhisperInk 构建信息",
		},
		[]string{"version", "go_version", "commit"},
	)
)

// RecordBuildInfo 记录构建信息
func RecordBuildInfo(version, goVersion, commit string) {
	BuildInfo.WithLabelValues(version, goVersion, commit).Set(1)
}
