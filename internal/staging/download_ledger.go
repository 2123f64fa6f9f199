package staging

import (
	"context"
	"fmt"
	"net/url"
	"path"

	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/collection"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/domain"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/preview"
)

// DownloadLedger holds the documents attached to a product. Documents are
// uploaded as soon as they are selected, so every row carries a server URL.
type DownloadLedger struct {
	policy Policy
	rows   *collection.List[domain.KeyValue]
	// file names of documents uploaded through this ledger, by server URL
	origins map[string]string
}

// NewDownloadLedger creates a ledger seeded with the product's documents
func NewDownloadLedger(policy Policy, baseline []domain.KeyValue) *DownloadLedger {
	return &DownloadLedger{
		policy:  policy,
		rows:    collection.NewList(baseline...),
		origins: make(map[string]string),
	}
}

// AddFiles uploads files and appends one row per file, keyed by its display
// name. A file whose base name is already attached, or a failed upload,
// adds nothing.
func (l *DownloadLedger) AddFiles(ctx context.Context, uploader Uploader, files []domain.LocalFile) error {
	if len(files) == 0 {
		return nil
	}
	if err := l.policy.CheckAll(files); err != nil {
		return err
	}

	seen := make(map[string]bool, l.rows.Len()+len(files))
	for _, row := range l.rows.Values() {
		seen[l.fileName(row)] = true
	}
	names := make([]string, 0, len(files))
	for _, file := range files {
		name := BaseName(file.Name)
		if seen[name] {
			return fmt.Errorf("%w: %s", ErrDuplicateDocument, name)
		}
		seen[name] = true
		names = append(names, name)
	}

	uploaded, err := uploader.UploadFiles(ctx, files)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}
	if len(uploaded) != len(files) {
		return fmt.Errorf("%w: sent %d files, media service returned %d", ErrUpload, len(files), len(uploaded))
	}
	for _, result := range uploaded {
		if result.URL == "" {
			return fmt.Errorf("%w: media service returned an empty url", ErrUpload)
		}
	}

	for i, result := range uploaded {
		l.origins[result.URL] = names[i]
		l.rows.Append(domain.KeyValue{Key: DisplayName(names[i]), Value: result.URL})
	}
	return nil
}

// fileName is the name a row was uploaded from. Rows loaded with the product
// fall back to the last segment of their URL.
func (l *DownloadLedger) fileName(row domain.KeyValue) string {
	if name, ok := l.origins[row.Value]; ok {
		return name
	}
	if u, err := url.Parse(row.Value); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(row.Value)
}

// RemoveAt drops the row at index. The stored file is left on the server.
func (l *DownloadLedger) RemoveAt(index int) error {
	return l.rows.RemoveAt(index)
}

// ReplaceAt overwrites the row at index, typically to rename a document.
// Rows must keep pointing at server URLs.
func (l *DownloadLedger) ReplaceAt(index int, row domain.KeyValue) error {
	if preview.IsLocal(row.Value) {
		return fmt.Errorf("%w: documents must reference an uploaded file", ErrUnsupportedFile)
	}
	return l.rows.ReplaceAt(index, row)
}

// Values returns the rows in order
func (l *DownloadLedger) Values() []domain.KeyValue {
	return l.rows.Values()
}

// Len returns the number of rows
func (l *DownloadLedger) Len() int {
	return l.rows.Len()
}

// Filter returns the rows for which keep reports true
func (l *DownloadLedger) Filter(keep func(domain.KeyValue) bool) []domain.KeyValue {
	return l.rows.Filter(keep)
}

// Reset re-seeds the ledger
func (l *DownloadLedger) Reset(baseline []domain.KeyValue) {
	l.rows.Reset(baseline...)
}
