// Package receipts stores receipt images and their thumbnails. The URI of the
// stored original is what an expense records in receipt_image.
package receipts

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"path"

	"expensedash/internal/core"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	MaxUploadBytes = 5 * 1024 * 1024
	// MaxPixels caps width*height so a small compressed file cannot force a
	// huge decode.
	MaxPixels     = 40_000_000
	thumbnailSize = 400
)

var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// Store persists an object and returns a URI that identifies it.
type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

type Receipt struct {
	URI          string `json:"uri"`
	ThumbnailURI string `json:"thumbnail_uri"`
	ContentType  string `json:"content_type"`
	Size         int    `json:"size"`
}

type Uploader struct {
	store  Store
	prefix string
}

func NewUploader(store Store, prefix string) *Uploader {
	if prefix == "" {
		prefix = "receipts"
	}
	return &Uploader{store: store, prefix: prefix}
}

// Upload validates data as a JPEG or PNG image, stores it with a JPEG
// thumbnail and returns both URIs.
func (u *Uploader) Upload(ctx context.Context, data []byte) (Receipt, error) {
	if len(data) == 0 {
		return Receipt{}, core.Errorf(core.KindValidation, "receipts.upload", "empty file")
	}
	if len(data) > MaxUploadBytes {
		return Receipt{}, core.Errorf(core.KindValidation, "receipts.upload", "file size exceeds 5MB limit")
	}
	contentType := http.DetectContentType(data)
	ext, ok := imageTypes[contentType]
	if !ok {
		return Receipt{}, core.Errorf(core.KindValidation, "receipts.upload", "unsupported image type %s", contentType)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Receipt{}, core.E(core.KindValidation, "receipts.upload", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return Receipt{}, core.Errorf(core.KindValidation, "receipts.upload",
			"image dimensions %dx%d exceed the %d pixel limit", cfg.Width, cfg.Height, MaxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return Receipt{}, core.E(core.KindValidation, "receipts.upload", err)
	}
	thumb := imaging.Fit(img, thumbnailSize, thumbnailSize, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
		return Receipt{}, core.E(core.KindInternal, "receipts.upload", err)
	}

	id := uuid.NewString()
	uri, err := u.store.Put(ctx, path.Join(u.prefix, id+ext), contentType, data)
	if err != nil {
		return Receipt{}, core.E(core.KindWrite, "receipts.upload", err)
	}
	thumbURI, err := u.store.Put(ctx, path.Join(u.prefix, id+"_thumb.jpg"), "image/jpeg", buf.Bytes())
	if err != nil {
		return Receipt{}, core.E(core.KindWrite, "receipts.upload", err)
	}

	slog.InfoContext(ctx, "Receipt stored", "component", "receipts", "uri", uri, "bytes", len(data))
	return Receipt{URI: uri, ThumbnailURI: thumbURI, ContentType: contentType, Size: len(data)}, nil
}
