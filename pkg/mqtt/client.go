// Package mqtt 提供 MQTT 客户端封装和抄表读数订阅
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/gogomarket/rental-backend/internal/common/logger"
)

// 断开时等待未完成消息的毫秒数
const quiesceMillis = 250

// Config MQTT 配置
type Config struct {
	Broker         string // tcp://host:port
	ClientID       string
	Username       string
	Password       string
	CleanSession   bool
	QoS            byte
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	AutoReconnect  bool
}

// MessageHandler 消息处理器
type MessageHandler func(topic string, payload []byte)

// Client MQTT 客户端
type Client struct {
	broker string
	qos    byte
	opts   *paho.ClientOptions
	conn   paho.Client

	mu   sync.RWMutex
	subs map[string]MessageHandler
}

// NewClient 创建 MQTT 客户端，Connect 之前不会建立连接
func NewClient(cfg *Config) *Client {
	c := &Client{
		broker: cfg.Broker,
		qos:    cfg.QoS,
		subs:   make(map[string]MessageHandler),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(cfg.CleanSession).
		SetKeepAlive(cfg.KeepAlive).
		SetAutoReconnect(cfg.AutoReconnect).
		// 读数入库较慢，不阻塞 paho 的收包循环
		SetOrderMatters(false).
		SetOnConnectHandler(c.resubscribe).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", logger.String("broker", c.broker), logger.Err(err))
		}).
		SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
			logger.Info("mqtt reconnecting", logger.String("broker", c.broker))
		})
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	c.opts = opts
	return c
}

// Connect 连接 Broker
func (c *Client) Connect(ctx context.Context) error {
	c.conn = paho.NewClient(c.opts)
	if err := wait(ctx, c.conn.Connect()); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", c.broker, err)
	}
	logger.Info("mqtt connected", logger.String("broker", c.broker))
	return nil
}

// Disconnect 断开连接
func (c *Client) Disconnect() {
	if !c.IsConnected() {
		return
	}
	c.conn.Disconnect(quiesceMillis)
	logger.Info("mqtt disconnected", logger.String("broker", c.broker))
}

// IsConnected 是否已连接
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Subscribe 订阅主题，filter 可以包含通配符；断线重连后自动重新订阅
func (c *Client) Subscribe(filter string, handler MessageHandler) error {
	c.mu.Lock()
	c.subs[filter] = handler
	c.mu.Unlock()

	if err := wait(context.Background(), c.conn.Subscribe(filter, c.qos, c.route(filter))); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", filter, err)
	}
	logger.Info("mqtt subscribed", logger.String("topic", filter))
	return nil
}

// Unsubscribe 取消订阅
func (c *Client) Unsubscribe(filters ...string) error {
	c.mu.Lock()
	for _, f := range filters {
		delete(c.subs, f)
	}
	c.mu.Unlock()

	if err := wait(context.Background(), c.conn.Unsubscribe(filters...)); err != nil {
		return fmt.Errorf("mqtt unsubscribe: %w", err)
	}
	return nil
}

// PublishWithContext 发布消息，payload 非字节或字符串时按 JSON 编码
func (c *Client) PublishWithContext(ctx context.Context, topic string, payload interface{}) error {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("mqtt encode payload for %s: %w", topic, err)
		}
		data = b
	}

	if err := wait(ctx, c.conn.Publish(topic, c.qos, false, data)); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

// route 按订阅时的 filter 查找处理器，通配符订阅收到的具体 topic 也能命中
func (c *Client) route(filter string) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		c.mu.RLock()
		h := c.subs[filter]
		c.mu.RUnlock()
		if h != nil {
			h(msg.Topic(), msg.Payload())
		}
	}
}

func (c *Client) resubscribe(conn paho.Client) {
	c.mu.RLock()
	filters := make([]string, 0, len(c.subs))
	for f := range c.subs {
		filters = append(filters, f)
	}
	c.mu.RUnlock()

	for _, f := range filters {
		if err := wait(context.Background(), conn.Subscribe(f, c.qos, c.route(f))); err != nil {
			logger.Error("mqtt resubscribe failed", logger.String("topic", f), logger.Err(err))
		}
	}
}

func wait(ctx context.Context, token paho.Token) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}
