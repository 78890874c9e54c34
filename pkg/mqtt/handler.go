package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gogomarket/rental-backend/internal/common/logger"
)

// 读数主题：{prefix}{asset_tag}/reading 上报，{prefix}{asset_tag}/ack 回执
const (
	DefaultTopicPrefix = "meters/"
	readingSuffix      = "/reading"
	ackSuffix          = "/ack"
)

// ReadingPayload 表读数上报
type ReadingPayload struct {
	Reading   decimal.Decimal `json:"reading"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// ReadingAck 读数处理回执
type ReadingAck struct {
	AssetTag  string `json:"asset_tag"`
	Success   bool   `json:"success"`
	UsageID   int64  `json:"usage_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ReadingSink 读数处理器接口，返回生成的抄表记录 ID
type ReadingSink interface {
	OnReading(ctx context.Context, assetTag string, payload *ReadingPayload) (int64, error)
}

// Transport 读数订阅依赖的 MQTT 能力，*Client 实现该接口
type Transport interface {
	Subscribe(topic string, handler MessageHandler) error
	Unsubscribe(topics ...string) error
	PublishWithContext(ctx context.Context, topic string, payload interface{}) error
}

// ReadingHandler 订阅表读数并回执
type ReadingHandler struct {
	transport Transport
	sink      ReadingSink
	prefix    string
	timeout   time.Duration
	now       func() time.Time
}

// NewReadingHandler 创建读数处理器
func NewReadingHandler(transport Transport, sink ReadingSink, prefix string) *ReadingHandler {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &ReadingHandler{
		transport: transport,
		sink:      sink,
		prefix:    prefix,
		timeout:   5 * time.Second,
		now:       time.Now,
	}
}

// Topic 读数订阅主题
func (h *ReadingHandler) Topic() string {
	return h.prefix + "+" + readingSuffix
}

// Start 开始订阅
func (h *ReadingHandler) Start() error {
	if err := h.transport.Subscribe(h.Topic(), h.handleReading); err != nil {
		return fmt.Errorf("subscribe meter readings error: %w", err)
	}
	return nil
}

// Stop 取消订阅
func (h *ReadingHandler) Stop() error {
	return h.transport.Unsubscribe(h.Topic())
}

// handleReading 解析读数并交给 sink，处理结果回执到 ack 主题
func (h *ReadingHandler) handleReading(topic string, payload []byte) {
	tag := h.extractAssetTag(topic)
	if tag == "" {
		logger.Warn("invalid meter reading topic", logger.String("topic", topic))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	ack := &ReadingAck{AssetTag: tag, Timestamp: h.now().Unix()}
	var data ReadingPayload
	if err := json.Unmarshal(payload, &data); err != nil {
		logger.Warn("parse meter reading failed", logger.AssetTag(tag), logger.Err(err))
		ack.Message = "invalid payload"
		h.publishAck(ctx, ack)
		return
	}

	usageID, err := h.sink.OnReading(ctx, tag, &data)
	if err != nil {
		logger.Warn("handle meter reading failed", logger.AssetTag(tag), logger.Err(err))
		ack.Message = err.Error()
	} else {
		ack.Success = true
		ack.UsageID = usageID
	}
	h.publishAck(ctx, ack)
}

func (h *ReadingHandler) publishAck(ctx context.Context, ack *ReadingAck) {
	topic := h.prefix + ack.AssetTag + ackSuffix
	if err := h.transport.PublishWithContext(ctx, topic, ack); err != nil {
		logger.Warn("publish meter reading ack failed", logger.String("topic", topic), logger.Err(err))
	}
}

// extractAssetTag meters/{tag}/reading -> tag
func (h *ReadingHandler) extractAssetTag(topic string) string {
	if !strings.HasPrefix(topic, h.prefix) || !strings.HasSuffix(topic, readingSuffix) {
		return ""
	}
	tag := strings.TrimSuffix(strings.TrimPrefix(topic, h.prefix), readingSuffix)
	if tag == "" || strings.Contains(tag, "/") {
		return ""
	}
	return tag
}
