package line

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

// Message LINE 消息对象，直接按 JSON 序列化
type Message map[string]interface{}

// TextMessage 文本消息
func TextMessage(text string) Message {
	return Message{"type": "text", "text": text}
}

// FlexMessage Flex 消息
func FlexMessage(altText string, contents interface{}) Message {
	return Message{"type": "flex", "altText": altText, "contents": contents}
}

// ImageMessage 图片消息
func ImageMessage(originalURL, previewURL string) Message {
	if previewURL == "" {
		previewURL = originalURL
	}
	return Message{"type": "image", "originalContentUrl": originalURL, "previewImageUrl": previewURL}
}

// Template Flex 消息模板
// 模板正文是 JSON，占位符写作 ${key}，渲染时替换为 JSON 转义后的值
type Template struct {
	name string
	tmpl *template.Template
}

// ParseTemplate 解析模板
func ParseTemplate(name, body string) (*Template, error) {
	// ${key} -> {{ index . "key" | esc }}
	converted := convertPlaceholders(body)
	tmpl, err := template.New(name).Funcs(template.FuncMap{
		"esc": jsonEscape,
	}).Parse(converted)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return &Template{name: name, tmpl: tmpl}, nil
}

// MustParseTemplate 解析模板，失败时 panic，用于包级变量
func MustParseTemplate(name, body string) *Template {
	t, err := ParseTemplate(name, body)
	if err != nil {
		panic(err)
	}
	return t
}

// Render 渲染模板并解析为 Flex 内容
func (t *Template) Render(vars map[string]string) (map[string]interface{}, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, vars); err != nil {
		return nil, fmt.Errorf("render template %s: %w", t.name, err)
	}
	var contents map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &contents); err != nil {
		return nil, fmt.Errorf("template %s produced invalid json: %w", t.name, err)
	}
	return contents, nil
}

func convertPlaceholders(body string) string {
	var b strings.Builder
	for {
		start := strings.Index(body, "${")
		if start < 0 {
			b.WriteString(body)
			return b.String()
		}
		end := strings.Index(body[start:], "}")
		if end < 0 {
			b.WriteString(body)
			return b.String()
		}
		key := body[start+2 : start+end]
		b.WriteString(body[:start])
		fmt.Fprintf(&b, "{{ index . %q | esc }}", key)
		body = body[start+end+1:]
	}
}

// jsonEscape 转义为 JSON 字符串内容（不含两侧引号）
func jsonEscape(s string) string {
	data, _ := json.Marshal(s)
	return string(data[1 : len(data)-1])
}
