package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ==================== 接口定义 ====================

// StorageProvider 存储提供者接口
type StorageProvider interface {
	// Upload 上传文件，返回公开访问URL
	Upload(ctx context.Context, data []byte, filename string, contentType string) (url string, err error)
}

// ==================== 配置 ====================

type StorageConfig struct {
	Provider  string // "s3" | "local"
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string // s3: 自定义端点（兼容 S3 协议的存储）；local: 对外访问前缀
	CDNDomain string // CDN域名 (可选)
	BasePath  string // 基础路径前缀

	// 内联兜底超过该字节数时提醒运营
	InlineWarnBytes int
}

// ==================== 工厂方法 ====================

func NewStorageProvider(cfg *StorageConfig) (StorageProvider, error) {
	switch cfg.Provider {
	case "s3":
		return NewS3Storage(cfg)
	case "local", "":
		return NewLocalStorage(cfg)
	default:
		return nil, fmt.Errorf("不支持的存储提供者: %s", cfg.Provider)
	}
}

// ==================== StorageService ====================

// UploadResult 上传结果；Inline 为 true 时 URL 是 data URL
type UploadResult struct {
	URL         string `json:"url"`
	Inline      bool   `json:"inline"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// StorageService 上传服务：先走存储，失败时内联为 data URL
type StorageService struct {
	provider  StorageProvider
	warnBytes int
	log       *zap.Logger
	toasts    Broadcaster
}

// NewStorageService 创建存储服务
func NewStorageService(cfg *StorageConfig, log *zap.Logger) (*StorageService, error) {
	provider, err := NewStorageProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewStorageServiceWithProvider(provider, cfg.InlineWarnBytes, log), nil
}

func NewStorageServiceWithProvider(provider StorageProvider, warnBytes int, log *zap.Logger) *StorageService {
	if warnBytes <= 0 {
		warnBytes = 512 * 1024
	}
	return &StorageService{
		provider:  provider,
		warnBytes: warnBytes,
		log:       log.Named("storage"),
	}
}

// SetBroadcaster 大体积内联时向所有标签页发常驻提醒
func (s *StorageService) SetBroadcaster(b Broadcaster) {
	s.toasts = b
}

// UploadAsset 上传文件，失败时退回内联，从不返回错误
func (s *StorageService) UploadAsset(ctx context.Context, data []byte, filename string) UploadResult {
	contentType := detectContentType(data)

	url, err := s.provider.Upload(ctx, data, filename, contentType)
	if err == nil {
		return UploadResult{URL: url, ContentType: contentType, Size: len(data)}
	}

	inline := EncodeDataURL(data, contentType)
	s.log.Warn("上传失败，改为内联保存",
		zap.String("filename", filename),
		zap.Int("inline_bytes", len(inline)),
		zap.Error(err),
	)

	if len(inline) > s.warnBytes && s.toasts != nil {
		s.toasts.BroadcastToast(Toast{
			Message:    fmt.Sprintf("%s was saved inline (%d KB). Large inline files may fail to save; consider a smaller file.", filename, len(inline)/1024),
			Severity:   SeverityWarning,
			Persistent: true,
		})
	}

	return UploadResult{URL: inline, Inline: true, ContentType: contentType, Size: len(data)}
}

// ==================== S3 实现 ====================

type S3Storage struct {
	client    *s3.Client
	bucket    string
	region    string
	endpoint  string
	cdnDomain string
	basePath  string
}

func NewS3Storage(cfg *StorageConfig) (*S3Storage, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("加载AWS配置失败: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{
		client:    client,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		endpoint:  cfg.Endpoint,
		cdnDomain: cfg.CDNDomain,
		basePath:  cfg.BasePath,
	}, nil
}

func (s *S3Storage) Upload(ctx context.Context, data []byte, filename string, contentType string) (string, error) {
	key := generateKey(s.basePath, filename, time.Now())

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("上传S3失败: %w", err)
	}

	return s.getPublicURL(key), nil
}

func (s *S3Storage) getPublicURL(key string) string {
	if s.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cdnDomain, key)
	}
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.endpoint, "/"), s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// ==================== 本地存储 (开发测试用) ====================

type LocalStorage struct {
	basePath string
	baseURL  string
}

func NewLocalStorage(cfg *StorageConfig) (*LocalStorage, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "./uploads"
	}
	baseURL := cfg.Endpoint
	if baseURL == "" {
		baseURL = "/uploads"
	}

	return &LocalStorage{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *LocalStorage) Upload(ctx context.Context, data []byte, filename string, contentType string) (string, error) {
	key := generateKey("", filename, time.Now())
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("创建上传目录失败: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("写入本地文件失败: %w", err)
	}
	return s.baseURL + "/" + key, nil
}

// ==================== 工具函数 ====================

func generateKey(basePath, filename string, now time.Time) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".bin"
	}
	newFilename := fmt.Sprintf("%s%s", uuid.New().String(), ext)

	datePath := now.Format("2006/01/02")
	if basePath != "" {
		return fmt.Sprintf("%s/%s/%s", basePath, datePath, newFilename)
	}
	return fmt.Sprintf("%s/%s", datePath, newFilename)
}

func detectContentType(data []byte) string {
	return mimetype.Detect(data).String()
}

// EncodeDataURL data:<mime>;base64,<payload>
func EncodeDataURL(data []byte, contentType string) string {
	// mimetype 可能带 charset 参数，data URL 只保留主类型
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
