// Package imagehost Cloudinary 图床客户端（签名上传 / 删除）
package imagehost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"moh-portal/config"
)

// AvatarTransformation 头像统一裁剪为 512×512 人脸居中
const AvatarTransformation = "c_thumb,g_face,w_512,h_512"

var ErrNotConfigured = errors.New("图床未配置")

// UploadParams 上传参数
type UploadParams struct {
	PublicID       string
	Filename       string
	Transformation string
	Data           io.Reader
}

// UploadResult 上传结果
type UploadResult struct {
	SecureURL string
	PublicID  string
	Version   int64
}

// Client 图床客户端；未配置凭据时 cld 为 nil
type Client struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewClient 创建图床客户端
func NewClient(cfg *config.ImageConfig) *Client {
	c := &Client{folder: cfg.Folder}
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return c
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return c
	}
	if cfg.BaseURL != "" {
		cld.Config.API.UploadPrefix = strings.TrimRight(cfg.BaseURL, "/")
	}
	c.cld = cld
	return c
}

// PublicIDFor 按用户生成确定性 public_id，重复上传原地覆盖
func (c *Client) PublicIDFor(userID string) string {
	if c.folder == "" {
		return userID
	}
	return c.folder + "/" + userID
}

// Upload 签名上传图片
func (c *Client) Upload(ctx context.Context, p UploadParams) (*UploadResult, error) {
	if c.cld == nil {
		return nil, ErrNotConfigured
	}

	params := uploader.UploadParams{
		PublicID:       p.PublicID,
		Overwrite:      api.Bool(true),
		Invalidate:     api.Bool(true),
		Transformation: p.Transformation,
	}
	if p.Filename != "" {
		params.Context = api.CldAPIMap{"source_filename": p.Filename}
	}

	res, err := c.cld.Upload.Upload(ctx, p.Data, params)
	if err != nil {
		return nil, fmt.Errorf("请求图床失败: %w", err)
	}
	if res.Error.Message != "" {
		return nil, fmt.Errorf("图床返回错误: %s", res.Error.Message)
	}
	if res.SecureURL == "" {
		return nil, errors.New("图床未返回图片地址")
	}
	return &UploadResult{
		SecureURL: res.SecureURL,
		PublicID:  res.PublicID,
		Version:   int64(res.Version),
	}, nil
}

// Destroy 删除图片；图床返回 not found 视为成功
func (c *Client) Destroy(ctx context.Context, publicID string) error {
	if c.cld == nil {
		return ErrNotConfigured
	}

	res, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:   publicID,
		Invalidate: api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("请求图床失败: %w", err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("图床返回错误: %s", res.Error.Message)
	}
	if res.Result != "ok" && res.Result != "not found" {
		return fmt.Errorf("删除图片失败: %s", res.Result)
	}
	return nil
}
