package service

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"myblog/internal/config"
	"myblog/internal/middleware"
	"myblog/internal/models"
	"myblog/internal/observability"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultAvatarSize          = 200
	DefaultMaxUploadSizeMB     = 5
	JPEGQuality                = 90
	WebPQuality                = 80
	ImageKindArticle           = "article"
	ImageKindProfile           = "avatar"
	storedImageDateLayout      = "20060102"
	storedImageDirPermissions  = 0o750
	storedImageFilePermissions = 0o640
)

// UploadImageInput is an uploaded file as received from a form.
type UploadImageInput struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ImageService stores uploaded images under a date-partitioned directory
// and normalises article avatars to a fixed square.
type ImageService struct {
	uploadDir          string
	maxUploadSizeBytes int64
	size               int
	now                func() time.Time
}

func NewImageService(cfg *config.Config) *ImageService {
	s := &ImageService{
		uploadDir:          "./media",
		maxUploadSizeBytes: DefaultMaxUploadSizeMB * 1024 * 1024,
		size:               DefaultAvatarSize,
		now:                time.Now,
	}
	if cfg != nil {
		if cfg.UploadDir != "" {
			s.uploadDir = cfg.UploadDir
		}
		if cfg.MaxUploadSizeMB > 0 {
			s.maxUploadSizeBytes = cfg.MaxUploadBytes()
		}
		if cfg.AvatarSize > 0 {
			s.size = cfg.AvatarSize
		}
	}
	return s
}

// Store validates an upload and writes it to
// <upload dir>/<kind>/YYYYMMDD/<uuid>.<ext>. The returned path is relative
// to the upload dir and uses forward slashes.
func (s *ImageService) Store(kind string, in UploadImageInput) (string, error) {
	if len(in.Content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detected := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detected) {
		return "", models.NewValidationError("Invalid image type")
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(in.Content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") &&
		!isMatchingContentType(provided, decodedFormatToMime(format)) {
		return "", models.NewValidationError("Image content type mismatch")
	}

	rel := path.Join(kind, s.now().UTC().Format(storedImageDateLayout), uuid.NewString()+extensionFor(format))
	if err := writeBytesToFile(s.AbsPath(rel), in.Content); err != nil {
		return "", models.NewInternalError(err)
	}
	return rel, nil
}

// Root is the directory uploads are stored under.
func (s *ImageService) Root() string { return s.uploadDir }

// AbsPath maps a stored relative path onto the filesystem.
func (s *ImageService) AbsPath(rel string) string {
	return filepath.Join(s.uploadDir, filepath.FromSlash(rel))
}

// Remove deletes stored files. Missing files are ignored.
func (s *ImageService) Remove(rels ...string) {
	for _, rel := range rels {
		if rel == "" {
			continue
		}
		if err := os.Remove(s.AbsPath(rel)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			middleware.Logger.Warn("Failed to remove stored image", "path", rel, "error", err)
		}
	}
}

// ResizeInPlace scales the stored image to the configured square and
// overwrites the file in the same format. Images already at the target size
// are left untouched.
func (s *ImageService) ResizeInPlace(rel string) error {
	abs := s.AbsPath(rel)
	raw, err := os.ReadFile(abs)
	if err != nil {
		return models.NewInternalError(fmt.Errorf("read avatar: %w", err))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return models.NewValidationError("Invalid image file")
	}
	if cfg.Width == s.size && cfg.Height == s.size {
		return nil
	}

	start := time.Now()
	defer observability.ObserveSince(observability.AvatarResizeDuration.WithLabelValues(format), start)

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return models.NewValidationError("Invalid image file")
	}

	dst := image.NewRGBA(image.Rect(0, 0, s.size, s.size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)

	encoded, err := encodeAs(dst, format)
	if err != nil {
		return models.NewInternalError(err)
	}
	if err := writeBytesToFile(abs, encoded); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func encodeAs(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality})
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	case "webp":
		err = webp.Encode(&buf, img, &webp.Options{Quality: WebPQuality})
	default:
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func extensionFor(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "png", "gif", "webp":
		return "." + format
	default:
		return ""
	}
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func decodedFormatToMime(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png", "gif", "webp":
		return "image/" + format
	default:
		return ""
	}
}

func writeBytesToFile(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), storedImageDirPermissions); err != nil {
		return err
	}
	return os.WriteFile(p, data, storedImageFilePermissions)
}
