package flags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"backend/internal/classify"
	"backend/internal/content"
	"backend/internal/detector"
	"backend/internal/logger"
	"backend/internal/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrFlagNotFound    = errors.New("标记不存在")
	ErrAlreadyReviewed = errors.New("标记已被裁决")
)

// ============================================================================
// 自动标记流水线
// ============================================================================

// Pipeline 自动标记流水线
// 逐类别调用分类适配器，按灵敏度阈值决定自动驳回还是转人工。
// 各类别彼此独立，单个检测器失败不阻塞发布流程。
type Pipeline struct {
	db       *gorm.DB
	registry *detector.Registry
	adapter  *classify.Adapter
	tracer   trace.Tracer
}

// NewPipeline 创建自动标记流水线
func NewPipeline(db *gorm.DB, registry *detector.Registry, adapter *classify.Adapter) *Pipeline {
	return &Pipeline{
		db:       db,
		registry: registry,
		adapter:  adapter,
		tracer:   otel.Tracer("backend/internal/flags"),
	}
}

// ScanContent 对一条内容执行全类别扫描
// 返回值只在配置读取整体失败时报错，单个类别的失败记录在对应的
// CategoryOutcome 里并已按"空置信度转人工"降级。
func (p *Pipeline) ScanContent(ctx context.Context, req *ScanRequest) (*ScanResult, error) {
	ctx, span := p.tracer.Start(ctx, "Pipeline.ScanContent")
	defer span.End()
	span.SetAttributes(
		attribute.String("content.type", req.ContentType),
		attribute.String("content.id", req.ContentID),
	)

	configs, err := p.registry.ListEnabled(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "读取检测器配置失败")
		return nil, err
	}

	result := &ScanResult{
		ContentType: req.ContentType,
		ContentID:   req.ContentID,
	}

	for i := range configs {
		cfg := &configs[i]
		if !appliesTo(req.ContentType, cfg.Category) {
			continue
		}
		outcome := p.scanCategory(ctx, cfg, req)
		result.Outcomes = append(result.Outcomes, outcome)
		metrics.ScanOutcomesTotal.WithLabelValues(cfg.Category, outcome.Routed).Inc()
	}

	return result, nil
}

// scanCategory 单类别扫描
func (p *Pipeline) scanCategory(ctx context.Context, cfg *detector.DetectorConfig, req *ScanRequest) CategoryOutcome {
	ctx, span := p.tracer.Start(ctx, "Pipeline.ScanCategory")
	defer span.End()
	span.SetAttributes(attribute.String("detector.category", cfg.Category))

	outcome := CategoryOutcome{Category: cfg.Category}

	classification, err := p.adapter.Classify(ctx, cfg, req.Payload)
	if err != nil {
		// 分类器不可用: 内容既不放行也不拦截，落空置信度标记强制人工复核
		span.RecordError(err)
		span.SetStatus(codes.Error, "分类器不可用")
		metrics.ClassifierErrorsTotal.WithLabelValues(cfg.Category).Inc()

		flag, upsertErr := p.upsertUnreviewedFlag(ctx, req, cfg.Category, nil)
		if upsertErr != nil {
			outcome.Routed = RoutedUnavailable
			outcome.Err = upsertErr.Error()
			return outcome
		}
		outcome.FlagID = flag.ID
		outcome.Routed = RoutedUnavailable
		outcome.Err = err.Error()
		logger.WithContext(ctx).Warn("分类器不可用，标记转人工",
			zap.String("category", cfg.Category),
			zap.String("content_id", req.ContentID),
			zap.Error(err),
		)
		return outcome
	}

	outcome.IsMatch = classification.IsMatch
	confidence := classification.Confidence
	outcome.Confidence = &confidence

	if !classification.IsMatch {
		outcome.Routed = RoutedClean
		return outcome
	}

	if p.registry.ShouldReview(cfg, confidence) {
		flag, err := p.upsertUnreviewedFlag(ctx, req, cfg.Category, &confidence)
		if err != nil {
			outcome.Routed = RoutedReview
			outcome.Err = err.Error()
			return outcome
		}
		outcome.FlagID = flag.ID
		outcome.Routed = RoutedReview
	} else {
		// 低置信度命中: 留档但立即自动驳回，不生成人工动作
		flag, err := p.createDismissedFlag(ctx, req, cfg.Category, &confidence)
		if err != nil {
			outcome.Routed = RoutedAutoDismissed
			outcome.Err = err.Error()
			return outcome
		}
		outcome.FlagID = flag.ID
		outcome.Routed = RoutedAutoDismissed
	}

	// NSFW 命中额外落专用标记，供生效状态推导
	if cfg.Category == detector.CategoryNSFW {
		if err := p.recordAutomaticNSFW(ctx, req, &confidence, classification.Labels); err != nil {
			logger.WithContext(ctx).Error("写入 NSFW 标记失败",
				zap.String("content_id", req.ContentID),
				zap.Error(err),
			)
		}
	}

	return outcome
}

// 并发重扫撞唯一索引后的重试次数
const flagUpsertRetries = 3

// upsertUnreviewedFlag 幂等写入未裁决标记
// 以 (content_type, content_id, flag_type, reviewed=false) 为键，
// 已存在时原地更新置信度，绝不产生第二条未裁决记录。并发重扫在
// 部分唯一索引上撞车时重查一轮，改走原地更新。
func (p *Pipeline) upsertUnreviewedFlag(ctx context.Context, req *ScanRequest, flagType string, confidence *float64) (*AutomatedFlag, error) {
	var flag AutomatedFlag
	var err error
	for attempt := 0; attempt < flagUpsertRetries; attempt++ {
		err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			findErr := tx.
				Where("content_type = ? AND content_id = ? AND flag_type = ? AND reviewed = ?",
					req.ContentType, req.ContentID, flagType, false).
				First(&flag).Error
			if findErr != nil && !errors.Is(findErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("查询标记失败: %w", findErr)
			}

			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				flag = AutomatedFlag{
					ID:          uuid.New().String(),
					ContentType: req.ContentType,
					ContentID:   req.ContentID,
					FlagType:    flagType,
					Confidence:  confidence,
					Reviewed:    false,
				}
				if err := tx.Create(&flag).Error; err != nil {
					// 并发写入者抢先落了同键的未裁决记录
					if errors.Is(err, gorm.ErrDuplicatedKey) {
						return gorm.ErrDuplicatedKey
					}
					return fmt.Errorf("创建标记失败: %w", err)
				}
				return nil
			}

			flag.Confidence = confidence
			if err := tx.Model(&AutomatedFlag{}).
				Where("id = ?", flag.ID).
				Update("confidence", confidence).Error; err != nil {
				return fmt.Errorf("更新标记置信度失败: %w", err)
			}
			return nil
		})
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return &flag, nil
}

// createDismissedFlag 写入已自动驳回的标记，仅留档用
func (p *Pipeline) createDismissedFlag(ctx context.Context, req *ScanRequest, flagType string, confidence *float64) (*AutomatedFlag, error) {
	flag := AutomatedFlag{
		ID:          uuid.New().String(),
		ContentType: req.ContentType,
		ContentID:   req.ContentID,
		FlagType:    flagType,
		Confidence:  confidence,
		Reviewed:    true,
	}
	if err := p.db.WithContext(ctx).Create(&flag).Error; err != nil {
		return nil, fmt.Errorf("创建留档标记失败: %w", err)
	}
	return &flag, nil
}

// recordAutomaticNSFW 写入自动检测的 NSFW 标记
// 同一内容的旧自动标记置为已替代，人工与作者自标不受影响。
func (p *Pipeline) recordAutomaticNSFW(ctx context.Context, req *ScanRequest, confidence *float64, labels []string) error {
	var labelJSON datatypes.JSON
	if len(labels) > 0 {
		raw, err := json.Marshal(labels)
		if err == nil {
			labelJSON = datatypes.JSON(raw)
		}
	}

	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&NSFWFlag{}).
			Where("content_type = ? AND content_id = ? AND detection_method = ? AND superseded = ?",
				req.ContentType, req.ContentID, DetectionAutomatic, false).
			Update("superseded", true).Error; err != nil {
			return fmt.Errorf("替代旧 NSFW 标记失败: %w", err)
		}

		flag := NSFWFlag{
			ID:              uuid.New().String(),
			ContentType:     req.ContentType,
			ContentID:       req.ContentID,
			IsNSFW:          true,
			DetectionMethod: DetectionAutomatic,
			Labels:          labelJSON,
			Confidence:      confidence,
		}
		if err := tx.Create(&flag).Error; err != nil {
			return fmt.Errorf("创建 NSFW 标记失败: %w", err)
		}
		return nil
	})
}

// appliesTo 判定检测类别是否适用于内容形态
// 图片只跑 NSFW，文本类内容跑全部类别。
func appliesTo(contentType, category string) bool {
	if contentType == content.TypeImage {
		return category == detector.CategoryNSFW
	}
	return true
}
