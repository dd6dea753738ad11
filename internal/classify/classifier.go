package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"backend/internal/config"
	"backend/internal/logger"

	"go.uber.org/zap"
)

// ErrClassifierUnavailable 外部分类器超时或出错
// 调用方必须按"无法自动判定"处理: 内容既不放行也不拦截，落一条空置信度标记转人工。
var ErrClassifierUnavailable = errors.New("外部分类器不可用")

// Result 分类结果
type Result struct {
	IsMatch    bool     `json:"is_match"`
	Confidence float64  `json:"confidence"`
	Labels     []string `json:"labels,omitempty"` // NSFW 分类器返回的细分标签
}

// Classifier 外部分类器接口
// 无副作用，实现必须自带有界超时。
type Classifier interface {
	Classify(ctx context.Context, category string, payload string) (*Result, error)
}

// ============================================================================
// HTTP 分类器
// ============================================================================

// HTTPClassifier 基于 HTTP 的外部分类器客户端
// 每个类别一个端点，统一有界超时，超时或非 200 一律按 ErrClassifierUnavailable 处理。
type HTTPClassifier struct {
	endpoints map[string]string
	client    *http.Client
}

// NewHTTPClassifier 创建 HTTP 分类器
func NewHTTPClassifier(cfg *config.ClassifierConfig) *HTTPClassifier {
	return &HTTPClassifier{
		endpoints: cfg.Endpoints,
		client: &http.Client{
			Timeout: cfg.Timeout(),
		},
	}
}

type classifyRequest struct {
	Category string `json:"category"`
	Payload  string `json:"payload"`
}

// Classify 调用外部分类器
func (c *HTTPClassifier) Classify(ctx context.Context, category string, payload string) (*Result, error) {
	endpoint, ok := c.endpoints[category]
	if !ok {
		return nil, fmt.Errorf("%w: 类别 %s 未配置端点", ErrClassifierUnavailable, category)
	}

	body, err := json.Marshal(classifyRequest{Category: category, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("序列化分类请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("构造分类请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		logger.Warn("外部分类器调用失败",
			zap.String("category", category),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("外部分类器返回异常状态码",
			zap.String("category", category),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: 状态码 %d", ErrClassifierUnavailable, resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: 响应解析失败: %v", ErrClassifierUnavailable, err)
	}

	return &result, nil
}
