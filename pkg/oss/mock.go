package oss

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MockUploader 模拟上传器（用于开发/测试）
type MockUploader struct {
	mu    sync.Mutex
	Files map[string][]byte
	Err   error
}

// NewMockUploader 创建模拟上传器
func NewMockUploader() *MockUploader {
	return &MockUploader{Files: make(map[string][]byte)}
}

// Upload 模拟上传
func (u *MockUploader) Upload(ctx context.Context, objectKey string, reader io.Reader) (string, error) {
	if u.Err != nil {
		return "", u.Err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	u.mu.Lock()
	u.Files[objectKey] = data
	u.mu.Unlock()
	return u.GetURL(objectKey), nil
}

// Delete 模拟删除
func (u *MockUploader) Delete(ctx context.Context, objectKey string) error {
	u.mu.Lock()
	delete(u.Files, objectKey)
	u.mu.Unlock()
	return nil
}

// GetURL 获取模拟 URL
func (u *MockUploader) GetURL(objectKey string) string {
	return fmt.Sprintf("https://mock-oss.example.com/%s", objectKey)
}

// Has 是否存在指定对象
func (u *MockUploader) Has(objectKey string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.Files[objectKey]
	return ok
}
