package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu        sync.Mutex
	handlers  map[string]MessageHandler
	published map[string][]interface{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		handlers:  make(map[string]MessageHandler),
		published: make(map[string][]interface{}),
	}
}

func (f *fakeTransport) Subscribe(topic string, handler MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeTransport) Unsubscribe(topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range topics {
		delete(f.handlers, t)
	}
	return nil
}

func (f *fakeTransport) PublishWithContext(_ context.Context, topic string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[topic] = append(f.published[topic], payload)
	return nil
}

// deliver 模拟 broker 把消息投递给通配符订阅
func (f *fakeTransport) deliver(filter, topic string, payload []byte) {
	f.mu.Lock()
	h := f.handlers[filter]
	f.mu.Unlock()
	h(topic, payload)
}

type fakeSink struct {
	tags     []string
	readings []decimal.Decimal
	err      error
}

func (s *fakeSink) OnReading(_ context.Context, tag string, p *ReadingPayload) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.tags = append(s.tags, tag)
	s.readings = append(s.readings, p.Reading)
	return int64(len(s.tags)), nil
}

func TestReadingHandler(t *testing.T) {
	transport := newFakeTransport()
	sink := &fakeSink{}
	h := NewReadingHandler(transport, sink, "meters")
	h.now = func() time.Time { return time.Unix(1700000000, 0) }

	require.NoError(t, h.Start())
	assert.Equal(t, "meters/+/reading", h.Topic())

	transport.deliver(h.Topic(), "meters/WM-001/reading", []byte(`{"reading": 123.45}`))
	require.Len(t, sink.tags, 1)
	assert.Equal(t, "WM-001", sink.tags[0])
	assert.Equal(t, "123.45", sink.readings[0].String())

	acks := transport.published["meters/WM-001/ack"]
	require.Len(t, acks, 1)
	ack := acks[0].(*ReadingAck)
	assert.True(t, ack.Success)
	assert.Equal(t, int64(1), ack.UsageID)
	assert.Equal(t, int64(1700000000), ack.Timestamp)

	t.Run("非法负载也会回执", func(t *testing.T) {
		transport.deliver(h.Topic(), "meters/WM-002/reading", []byte(`not-json`))
		acks := transport.published["meters/WM-002/ack"]
		require.Len(t, acks, 1)
		assert.False(t, acks[0].(*ReadingAck).Success)
	})

	t.Run("处理失败回执错误信息", func(t *testing.T) {
		sink.err = errors.New("本月已有抄表记录")
		defer func() { sink.err = nil }()
		transport.deliver(h.Topic(), "meters/WM-003/reading", []byte(`{"reading": 1}`))
		ack := transport.published["meters/WM-003/ack"][0].(*ReadingAck)
		assert.False(t, ack.Success)
		assert.Equal(t, "本月已有抄表记录", ack.Message)
	})

	t.Run("主题不匹配时忽略", func(t *testing.T) {
		before := len(sink.tags)
		transport.deliver(h.Topic(), "meters/a/b/reading", []byte(`{"reading": 1}`))
		assert.Len(t, sink.tags, before)
	})

	require.NoError(t, h.Stop())
	assert.Empty(t, transport.handlers)
}

func TestExtractAssetTag(t *testing.T) {
	h := NewReadingHandler(newFakeTransport(), &fakeSink{}, "")
	assert.Equal(t, "E-9", h.extractAssetTag("meters/E-9/reading"))
	assert.Equal(t, "", h.extractAssetTag("meters//reading"))
	assert.Equal(t, "", h.extractAssetTag("device/E-9/reading"))
	assert.Equal(t, "", h.extractAssetTag("meters/E-9/status"))
}
