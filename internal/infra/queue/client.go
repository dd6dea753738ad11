package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"backend/internal/config"
	"backend/internal/worker/tasks"

	"github.com/hibiken/asynq"
)

// Client 任务队列客户端接口
type Client interface {
	EnqueueScanContent(ctx context.Context, payload tasks.ScanContentPayload) error
	EnqueueApplyEffect(ctx context.Context, recordID string) error
	Close() error
}

type asynqClient struct {
	client *asynq.Client
}

// NewClient 创建任务队列客户端
func NewClient(cfg config.RedisConfig) Client {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &asynqClient{client: client}
}

// EnqueueScanContent 异步扫描内容
// 发布路径不等扫描结果，扫描慢或分类器抖动都不阻塞发布。
func (c *asynqClient) EnqueueScanContent(ctx context.Context, payload tasks.ScanContentPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(tasks.TypeScanContent, data)

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
		asynq.Queue("moderation"),
	)
	if err != nil {
		return fmt.Errorf("enqueue task failed: %w", err)
	}
	return nil
}

// EnqueueApplyEffect 重试处置落地
// 决定已经持久化，这里只负责把副作用补上，所以重试次数给得多。
func (c *asynqClient) EnqueueApplyEffect(ctx context.Context, recordID string) error {
	data, err := json.Marshal(tasks.ApplyEffectPayload{RecordID: recordID})
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(tasks.TypeApplyEffect, data)

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(5),
		asynq.Timeout(time.Minute),
		asynq.Queue("enforcement"),
	)
	if err != nil {
		return fmt.Errorf("enqueue task failed: %w", err)
	}
	return nil
}

func (c *asynqClient) Close() error {
	return c.client.Close()
}
