package oss

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalUploader 本地磁盘存储，文件通过静态路由 /uploads 对外提供
type LocalUploader struct {
	rootDir    string
	publicPath string
}

// NewLocalUploader 创建本地存储
func NewLocalUploader(rootDir, publicPath string) (*LocalUploader, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", rootDir, err)
	}
	if publicPath == "" {
		publicPath = "/uploads"
	}
	return &LocalUploader{rootDir: rootDir, publicPath: strings.TrimSuffix(publicPath, "/")}, nil
}

// RootDir 存储根目录
func (u *LocalUploader) RootDir() string {
	return u.rootDir
}

// Upload 写入文件
func (u *LocalUploader) Upload(ctx context.Context, objectKey string, reader io.Reader) (string, error) {
	dst, err := u.resolve(objectKey)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, reader); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("write file: %w", err)
	}
	return u.GetURL(objectKey), nil
}

// Delete 删除文件，文件不存在时不报错
func (u *LocalUploader) Delete(ctx context.Context, objectKey string) error {
	dst, err := u.resolve(objectKey)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// GetURL 获取文件访问路径
func (u *LocalUploader) GetURL(objectKey string) string {
	return u.publicPath + "/" + strings.TrimPrefix(filepath.ToSlash(objectKey), "/")
}

// resolve 把对象键映射到根目录下的路径，拒绝跳出根目录
func (u *LocalUploader) resolve(objectKey string) (string, error) {
	root, err := filepath.Abs(u.rootDir)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(root, filepath.FromSlash(objectKey))
	if dst != root && !strings.HasPrefix(dst, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid object key %q", objectKey)
	}
	return dst, nil
}
