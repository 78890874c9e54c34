// Package oss 文件存储，支持本地磁盘和阿里云 OSS
package oss

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Uploader 上传器接口
type Uploader interface {
	// Upload 保存文件并返回可访问的 URL
	Upload(ctx context.Context, objectKey string, reader io.Reader) (string, error)
	Delete(ctx context.Context, objectKey string) error
	GetURL(objectKey string) string
}

// GenerateObjectKey 生成对象键
// 格式: prefix/YYYY/MM/DD/<uuid>.<ext>
func GenerateObjectKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s/%s/%s%s",
		strings.Trim(prefix, "/"),
		time.Now().Format("2006/01/02"),
		uuid.NewString(),
		ext,
	)
}

// JoinKey 拼接对象键，去掉多余的斜杠
func JoinKey(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, "/")
}

// GetContentType 根据文件扩展名获取 Content-Type
func GetContentType(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	contentTypes := map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".gif":  "image/gif",
		".webp": "image/webp",
		".pdf":  "application/pdf",
		".doc":  "application/msword",
		".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// 允许上传的扩展名
var (
	ImageExts    = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
	DocumentExts = []string{".jpg", ".jpeg", ".png", ".pdf", ".doc", ".docx"}
)

// ValidateExt 校验文件扩展名
func ValidateExt(filename string, allowed []string) error {
	ext := strings.ToLower(path.Ext(filename))
	for _, a := range allowed {
		if ext == a {
			return nil
		}
	}
	return fmt.Errorf("unsupported file type: %q", ext)
}

// ValidateImage 读取文件头判断是否为图片，返回可继续读取完整内容的 reader
func ValidateImage(filename string, reader io.Reader) (io.Reader, error) {
	if err := ValidateExt(filename, ImageExts); err != nil {
		return nil, err
	}

	header := make([]byte, 512)
	n, err := io.ReadFull(reader, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("read file header: %w", err)
	}
	header = header[:n]

	if !strings.HasPrefix(http.DetectContentType(header), "image/") {
		return nil, fmt.Errorf("file %q is not a valid image", filename)
	}
	return io.MultiReader(bytes.NewReader(header), reader), nil
}
