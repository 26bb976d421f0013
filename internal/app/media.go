package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"clubhouse/api/internal/media"
	"clubhouse/api/internal/store"
	"clubhouse/api/internal/util"
)

// MaxUploadSize bounds a single media upload.
const MaxUploadSize = 20 << 20

const downloadURLTTL = 15 * time.Minute

type MediaView struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	Alt       string    `json:"alt"`
	MimeType  string    `json:"mimeType"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Filesize  int64     `json:"filesize"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

func toMediaView(m store.Media) MediaView {
	return MediaView{
		ID:        m.ID,
		URL:       m.URL,
		Filename:  m.Filename,
		Alt:       m.Alt,
		MimeType:  m.MimeType,
		Width:     m.Width,
		Height:    m.Height,
		Filesize:  m.Filesize,
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt,
	}
}

func (s *Service) ListMedia(ctx context.Context, limit, offset int) ([]MediaView, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	items, err := s.store.ListMedia(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]MediaView, 0, len(items))
	for _, item := range items {
		out = append(out, toMediaView(item))
	}
	return out, nil
}

type UploadInput struct {
	Filename    string
	ContentType string
	Alt         string
	Body        io.Reader
}

func errMediaUnavailable() error {
	return domainError(http.StatusServiceUnavailable, "MEDIA_UNAVAILABLE", "Media storage is not configured", nil)
}

// UploadMedia stores a file and records it. Image dimensions are read from the
// file header for PNG, JPEG and GIF.
func (s *Service) UploadMedia(ctx context.Context, input UploadInput, session Session) (MediaView, error) {
	if s.media == nil {
		return MediaView{}, errMediaUnavailable()
	}
	filename := strings.TrimSpace(input.Filename)
	if filename == "" {
		return MediaView{}, validationError("filename is required", nil)
	}
	data, err := io.ReadAll(io.LimitReader(input.Body, MaxUploadSize+1))
	if err != nil {
		return MediaView{}, err
	}
	if len(data) == 0 {
		return MediaView{}, validationError("file is empty", nil)
	}
	if len(data) > MaxUploadSize {
		return MediaView{}, domainError(http.StatusRequestEntityTooLarge, "TOO_LARGE", "File exceeds the upload limit", map[string]any{"maxBytes": MaxUploadSize})
	}

	contentType := strings.TrimSpace(input.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	var width, height int
	if strings.HasPrefix(contentType, "image/") {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			width, height = cfg.Width, cfg.Height
		}
	}

	obj, err := s.media.Put(ctx, filename, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		return MediaView{}, err
	}
	record := store.Media{
		ID:        util.NewID("med"),
		Filename:  media.SafeFilename(filename),
		URL:       obj.URL,
		Alt:       strings.TrimSpace(input.Alt),
		MimeType:  contentType,
		Width:     width,
		Height:    height,
		Filesize:  obj.Size,
		CreatedBy: session.UserName,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.InsertMedia(ctx, record); err != nil {
		return MediaView{}, err
	}
	s.log.Info("media uploaded",
		zap.String("media", record.ID),
		zap.String("key", obj.Key),
		zap.Int64("bytes", record.Filesize),
	)
	return toMediaView(record), nil
}

// MediaDownloadURL returns a short-lived signed URL for a stored upload.
func (s *Service) MediaDownloadURL(ctx context.Context, id string) (string, error) {
	if s.media == nil {
		return "", errMediaUnavailable()
	}
	record, err := s.store.GetMedia(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", notFoundError("media")
		}
		return "", err
	}
	key, ok := s.media.KeyFromURL(record.URL)
	if !ok {
		return "", notFoundError("media object")
	}
	signed, err := s.media.PresignedURL(ctx, key, downloadURLTTL)
	if err != nil {
		return "", err
	}
	return signed.String(), nil
}
