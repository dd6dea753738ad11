package common

import "time"

// ============================================================================
// 通用请求类型
// ============================================================================

// PaginationRequest 分页请求参数
type PaginationRequest struct {
	Page     int `json:"page" form:"page" binding:"omitempty,min=1"`           // 页码，从1开始
	PageSize int `json:"page_size" form:"page_size" binding:"omitempty,min=1"` // 每页数量
}

// DefaultPagination 返回默认分页参数
func DefaultPagination() PaginationRequest {
	return PaginationRequest{
		Page:     1,
		PageSize: 20,
	}
}

// GetOffset 计算数据库查询的偏移量
func (p PaginationRequest) GetOffset() int {
	if p.Page < 1 {
		p.Page = 1
	}
	return (p.Page - 1) * p.GetPageSize()
}

// GetPageSize 获取每页数量，提供默认值
func (p PaginationRequest) GetPageSize() int {
	if p.PageSize < 1 {
		return 20
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// DateRange 日期范围
type DateRange struct {
	Start time.Time `json:"start"` // 开始时间
	End   time.Time `json:"end"`   // 结束时间
}

// IDRequest 通过ID查询的请求
type IDRequest struct {
	ID string `json:"id" uri:"id" binding:"required"` // 资源ID
}

// ============================================================================
// 业务状态码定义
// ============================================================================

const (
	// 成功状态码
	CodeSuccess = 0

	// 通用错误码 (1000-1999)
	CodeInvalidRequest     = 1000 // 请求参数错误
	CodeUnauthorized       = 1001 // 未授权
	CodeForbidden          = 1002 // 禁止访问
	CodeNotFound           = 1003 // 资源不存在
	CodeConflict           = 1004 // 资源冲突
	CodeInternalError      = 1005 // 内部错误
	CodeServiceUnavailable = 1006 // 服务不可用

	// 审核相关错误码 (2000-2099)
	CodeFlagNotFound          = 2000 // 标记不存在
	CodeReportNotFound        = 2001 // 举报不存在
	CodeInsufficientAuthority = 2010 // 审核权限不足
	CodeNoActiveRole          = 2011 // 无有效审核角色

	// 检测器相关错误码 (3000-3099)
	CodeDetectorNotFound      = 3000 // 检测器配置不存在
	CodeInvalidPattern        = 3001 // 检测规则表达式无效
	CodeClassifierUnavailable = 3002 // 外部分类器不可用

	// 处置相关错误码 (4000-4099)
	CodeSuspensionNotFound = 4000 // 封禁记录不存在
	CodeEffectNotApplied   = 4001 // 处置副作用未生效
	CodeConflictRetry      = 4002 // 并发写冲突，请重试

	// DMCA 相关错误码 (5000-5099)
	CodeTakedownNotFound    = 5000 // 投诉不存在
	CodeInvalidTransition   = 5001 // 非法状态流转
	CodeUnresolvableLocator = 5002 // 侵权链接无法定位内容
)

// ErrorMessages 错误码对应的默认消息
var ErrorMessages = map[int]string{
	CodeSuccess:            "操作成功",
	CodeInvalidRequest:     "请求参数错误",
	CodeUnauthorized:       "未授权，请先登录",
	CodeForbidden:          "无权限访问",
	CodeNotFound:           "资源不存在",
	CodeConflict:           "资源冲突",
	CodeInternalError:      "系统内部错误",
	CodeServiceUnavailable: "服务暂不可用",

	CodeFlagNotFound:          "标记不存在",
	CodeReportNotFound:        "举报不存在",
	CodeInsufficientAuthority: "审核权限不足",
	CodeNoActiveRole:          "无有效审核角色",

	CodeDetectorNotFound:      "检测器配置不存在",
	CodeInvalidPattern:        "检测规则表达式无效",
	CodeClassifierUnavailable: "外部分类器不可用",

	CodeSuspensionNotFound: "封禁记录不存在",
	CodeEffectNotApplied:   "处置副作用未生效",
	CodeConflictRetry:      "并发写冲突，请重试",

	CodeTakedownNotFound:    "投诉不存在",
	CodeInvalidTransition:   "非法状态流转",
	CodeUnresolvableLocator: "侵权链接无法定位内容",
}

// GetErrorMessage 获取错误码对应的消息
func GetErrorMessage(code int) string {
	if msg, ok := ErrorMessages[code]; ok {
		return msg
	}
	return "未知错误"
}

// ============================================================================
// 通用业务错误类型
// ============================================================================

// BusinessError 业务错误
type BusinessError struct {
	Code    int    // 错误码
	Message string // 错误信息
}

// Error 实现error接口
func (e *BusinessError) Error() string {
	return e.Message
}

// NewBusinessError 创建业务错误
func NewBusinessError(code int, message string) *BusinessError {
	if message == "" {
		message = GetErrorMessage(code)
	}
	return &BusinessError{
		Code:    code,
		Message: message,
	}
}
