package meter

import (
	"context"

	"github.com/gogomarket/rental-backend/internal/common/metrics"
	"github.com/gogomarket/rental-backend/pkg/mqtt"
)

// IngestService 接收设备通过 MQTT 上报的表读数
type IngestService struct {
	usage   *UsageService
	metrics *metrics.Metrics
}

// NewIngestService 创建读数接收服务
func NewIngestService(usage *UsageService, m *metrics.Metrics) *IngestService {
	return &IngestService{usage: usage, metrics: m}
}

// OnReading 实现 mqtt.ReadingSink
func (s *IngestService) OnReading(ctx context.Context, assetTag string, payload *mqtt.ReadingPayload) (int64, error) {
	s.metrics.RecordMQTTMessage("reading", "in")
	usage, err := s.usage.CaptureReading(ctx, assetTag, payload.Reading)
	if err != nil {
		return 0, err
	}
	return usage.ID, nil
}
