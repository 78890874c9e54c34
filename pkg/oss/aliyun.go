package oss

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// AliyunConfig 阿里云 OSS 配置
type AliyunConfig struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	BucketName      string
	Domain          string // CDN 或自定义域名，可选
	BasePath        string // 所有对象键的前缀，如 rental/prod
	PublicRead      bool   // 私有 bucket 中按对象设置公共读
}

func (c *AliyunConfig) validate() error {
	var missing []string
	for name, v := range map[string]string{
		"endpoint":          c.Endpoint,
		"access_key_id":     c.AccessKeyID,
		"access_key_secret": c.AccessKeySecret,
		"bucket":            c.BucketName,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("aliyun oss: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// AliyunUploader 合同附件、收据和二维码存到阿里云 OSS
type AliyunUploader struct {
	bucket  *oss.Bucket
	cfg     AliyunConfig
	baseURL *url.URL
}

func NewAliyunUploader(cfg *AliyunConfig) (*AliyunUploader, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("aliyun oss client: %w", err)
	}
	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("aliyun oss bucket %s: %w", cfg.BucketName, err)
	}

	base := cfg.Domain
	if base == "" {
		host := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
		base = "https://" + cfg.BucketName + "." + host
	}
	baseURL, err := url.Parse(strings.TrimSuffix(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("aliyun oss domain %q: %w", base, err)
	}
	return &AliyunUploader{bucket: bucket, cfg: *cfg, baseURL: baseURL}, nil
}

func (u *AliyunUploader) Upload(ctx context.Context, objectKey string, reader io.Reader) (string, error) {
	opts := []oss.Option{
		oss.ContentType(GetContentType(objectKey)),
		oss.WithContext(ctx),
	}
	if u.cfg.PublicRead {
		opts = append(opts, oss.ObjectACL(oss.ACLPublicRead))
	}
	if err := u.bucket.PutObject(u.key(objectKey), reader, opts...); err != nil {
		return "", fmt.Errorf("aliyun oss put %s: %w", objectKey, err)
	}
	return u.GetURL(objectKey), nil
}

// Delete 对象不存在时 OSS 同样返回成功
func (u *AliyunUploader) Delete(ctx context.Context, objectKey string) error {
	if err := u.bucket.DeleteObject(u.key(objectKey), oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("aliyun oss delete %s: %w", objectKey, err)
	}
	return nil
}

func (u *AliyunUploader) GetURL(objectKey string) string {
	return u.baseURL.JoinPath(u.key(objectKey)).String()
}

func (u *AliyunUploader) key(objectKey string) string {
	objectKey = strings.TrimPrefix(objectKey, "/")
	if u.cfg.BasePath == "" {
		return objectKey
	}
	return path.Join(strings.Trim(u.cfg.BasePath, "/"), objectKey)
}
