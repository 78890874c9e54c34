// Package qrcode 生成账单付款链接二维码
package qrcode

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

// Generator 二维码生成器
type Generator struct {
	size  int
	level qrcode.RecoveryLevel
}

// Option 生成器选项
type Option func(*Generator)

// WithSize 设置二维码尺寸（像素）
func WithSize(size int) Option {
	return func(g *Generator) {
		if size > 0 {
			g.size = size
		}
	}
}

// WithHighRecovery 使用 25% 纠错，适合打印后中间叠加 logo
func WithHighRecovery() Option {
	return func(g *Generator) {
		g.level = qrcode.High
	}
}

// NewGenerator 创建二维码生成器
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{size: 256, level: qrcode.Medium}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GeneratePNG 生成 PNG 格式二维码
func (g *Generator) GeneratePNG(content string) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("qrcode content is empty")
	}
	data, err := qrcode.Encode(content, g.level, g.size)
	if err != nil {
		return nil, fmt.Errorf("encode qrcode: %w", err)
	}
	return data, nil
}

// GenerateDataURL 生成 Data URL 格式的二维码
func (g *Generator) GenerateDataURL(content string) (string, error) {
	data, err := g.GeneratePNG(content)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// PaymentLink 租户上传付款凭证的页面链接
// 格式: {base}/send-payment-slip?bill_number=..&ref_number=..
func PaymentLink(baseURL, billNumber, refNumber string) string {
	q := url.Values{}
	q.Set("bill_number", billNumber)
	q.Set("ref_number", refNumber)
	return strings.TrimSuffix(baseURL, "/") + "/send-payment-slip?" + q.Encode()
}
