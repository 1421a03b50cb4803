// Package media wraps the asset host used for thumbnails, avatars and
// lesson videos. Lesson video references stored on the catalog are opaque
// public ids; they are only ever exchanged for delivery URLs here.
package media

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/learnhub/lms/config"
)

type Upload struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

type Service struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// New builds the asset-host client. With empty credentials the service runs
// in passthrough mode: uploads fail and stored references are served as-is.
func New(cfg config.Media) (*Service, error) {
	if cfg.CloudName == "" {
		return &Service{folder: cfg.Folder}, nil
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("building asset host client: %w", err)
	}
	cld.Config.URL.SignURL = true

	return &Service{cld: cld, folder: cfg.Folder}, nil
}

func (s *Service) Enabled() bool { return s.cld != nil }

// UploadFile pushes a file to the asset host. resourceType is "image" or
// "video".
func (s *Service) UploadFile(ctx context.Context, file io.Reader, resourceType string) (Upload, error) {
	if s.cld == nil {
		return Upload{}, fmt.Errorf("asset host is not configured")
	}

	res, err := s.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:       s.folder,
		ResourceType: resourceType,
	})
	if err != nil {
		return Upload{}, fmt.Errorf("uploading to asset host: %w", err)
	}

	return Upload{URL: res.SecureURL, PublicID: res.PublicID}, nil
}

// VideoURL exchanges a stored video reference for a delivery URL. Full URLs
// pass through untouched, which keeps externally hosted content working, and
// so does everything else when the host is unconfigured.
func (s *Service) VideoURL(ref string) (string, error) {
	if s.cld == nil || IsURL(ref) {
		return ref, nil
	}

	v, err := s.cld.Video(ref)
	if err != nil {
		return "", fmt.Errorf("building video asset for ref[%s]: %w", ref, err)
	}
	v.DeliveryType = "private"

	u, err := v.String()
	if err != nil {
		return "", fmt.Errorf("signing video URL for ref[%s]: %w", ref, err)
	}

	return u, nil
}

func IsURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
