package tasks

// Task Types
const (
	TypeScanContent  = "moderation:scan_content"
	TypeApplyEffect  = "enforcement:apply_effect"
	TypeSweepExpired = "enforcement:sweep_expired"
)

// ScanContentPayload 内容扫描任务载荷
type ScanContentPayload struct {
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id"`
	Payload     string `json:"payload"`
}

// ApplyEffectPayload 处置落地重试任务载荷
type ApplyEffectPayload struct {
	RecordID string `json:"record_id"`
}
