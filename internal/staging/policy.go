package staging

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/domain"
)

const (
	// DefaultMaxImages is the number of images a product may carry
	DefaultMaxImages = 5
	// DefaultMaxFileSize bounds every uploaded file (10 MiB)
	DefaultMaxFileSize int64 = 10 << 20
)

// Policy restricts what a ledger accepts for a kind of file
type Policy struct {
	ContentTypes []string
	MaxSize      int64
}

// ImagePolicy accepts the raster and vector formats the storefront renders
func ImagePolicy(maxSize int64) Policy {
	return Policy{
		ContentTypes: []string{"image/png", "image/jpeg", "image/jpg", "image/webp", "image/gif", "image/svg+xml"},
		MaxSize:      maxSize,
	}
}

// DocumentPolicy accepts any content type
func DocumentPolicy(maxSize int64) Policy {
	return Policy{ContentTypes: []string{"*"}, MaxSize: maxSize}
}

// Check validates a single file against the policy
func (p Policy) Check(file domain.LocalFile) error {
	if strings.TrimSpace(file.Name) == "" {
		return fmt.Errorf("%w: file name is required", ErrUnsupportedFile)
	}
	if !contentTypeAllowed(file.ContentType, p.ContentTypes) {
		return fmt.Errorf("%w: content type %q not allowed for %s", ErrUnsupportedFile, file.ContentType, file.Name)
	}
	if p.MaxSize > 0 && file.Size() > p.MaxSize {
		return fmt.Errorf("%w: %s exceeds maximum size (%d bytes)", ErrFileTooLarge, file.Name, p.MaxSize)
	}
	return nil
}

// CheckAll validates every file, failing on the first rejected one
func (p Policy) CheckAll(files []domain.LocalFile) error {
	for _, file := range files {
		if err := p.Check(file); err != nil {
			return err
		}
	}
	return nil
}

func contentTypeAllowed(contentType string, allowed []string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	for _, candidate := range allowed {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		switch {
		case candidate == "":
			continue
		case candidate == "*":
			return true
		case strings.HasSuffix(candidate, "/*"):
			if strings.HasPrefix(ct, strings.TrimSuffix(candidate, "*")) {
				return true
			}
		case ct == candidate:
			return true
		}
	}
	return false
}

// BaseName strips any directory, including Windows-style paths
func BaseName(fileName string) string {
	return filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
}

// DisplayName is the document key shown to shoppers: the base name without extension
func DisplayName(fileName string) string {
	base := BaseName(fileName)
	ext := filepath.Ext(base)
	if ext == base {
		return base
	}
	return strings.TrimSuffix(base, ext)
}
