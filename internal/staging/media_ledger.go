package staging

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/collection"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/domain"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/preview"
)

var (
	ErrUpload            = errors.New("upload failed")
	ErrMediaLimit        = errors.New("image limit reached")
	ErrDuplicateDocument = errors.New("document already added")
	ErrUnsupportedFile   = errors.New("unsupported file")
	ErrFileTooLarge      = errors.New("file too large")
)

// Uploader sends files to the media service and returns one result per file, in input order
type Uploader interface {
	UploadFiles(ctx context.Context, files []domain.LocalFile) ([]domain.UploadedFile, error)
}

// MediaCommit is the outcome of a successful commit
type MediaCommit struct {
	Media    []domain.MediaPayload
	Deleted  []int64
	Uploaded int
}

// MediaLedger tracks product images across their two phases: staged locally
// (pending) and stored on the server (persisted). It is not safe for
// concurrent use; the owning engine serializes access.
type MediaLedger struct {
	previews preview.Store
	policy   Policy
	limit    int

	entries []domain.MediaRef
	deleted []int64
}

// NewMediaLedger creates a ledger seeded with the product's persisted media.
// A non-positive limit falls back to DefaultMaxImages.
func NewMediaLedger(previews preview.Store, limit int, policy Policy, baseline []domain.MediaAsset) *MediaLedger {
	if limit <= 0 {
		limit = DefaultMaxImages
	}
	l := &MediaLedger{previews: previews, policy: policy, limit: limit}
	l.seed(baseline)
	return l
}

// Limit returns the maximum number of images
func (l *MediaLedger) Limit() int {
	return l.limit
}

// AddFiles stages files as pending entries. Either every file is added or none is.
func (l *MediaLedger) AddFiles(files []domain.LocalFile) error {
	if len(files) == 0 {
		return nil
	}
	if len(l.entries)+len(files) > l.limit {
		return fmt.Errorf("%w: a product can have at most %d images", ErrMediaLimit, l.limit)
	}
	if err := l.policy.CheckAll(files); err != nil {
		return err
	}

	for _, file := range files {
		l.entries = append(l.entries, domain.MediaRef{
			State:        domain.PendingMedia{Name: file.Name, ContentType: file.ContentType, Size: file.Size()},
			URL:          l.previews.Create(file),
			FileType:     domain.FileTypeImage,
			EntityType:   domain.EntityTypeProduct,
			DisplayOrder: len(l.entries),
		})
	}
	return nil
}

// RemoveAt drops the entry at index. A pending entry releases its preview;
// a persisted entry is recorded for deletion on the server.
func (l *MediaLedger) RemoveAt(index int) error {
	if index < 0 || index >= len(l.entries) {
		return fmt.Errorf("%w: %d (len %d)", collection.ErrIndexOutOfRange, index, len(l.entries))
	}

	entry := l.entries[index]
	switch state := entry.State.(type) {
	case domain.PendingMedia:
		l.previews.Revoke(entry.URL)
	case domain.PersistedMedia:
		l.markDeleted(state.ID)
	}

	l.entries = append(l.entries[:index], l.entries[index+1:]...)
	l.renumber()
	return nil
}

// Entries returns a copy of the current entries in display order
func (l *MediaLedger) Entries() []domain.MediaRef {
	out := make([]domain.MediaRef, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of visible entries
func (l *MediaLedger) Len() int {
	return len(l.entries)
}

// Pending returns the number of entries not yet uploaded
func (l *MediaLedger) Pending() int {
	count := 0
	for _, entry := range l.entries {
		if _, ok := entry.Pending(); ok {
			count++
		}
	}
	return count
}

// Deleted returns the ids of persisted media removed since the ledger was seeded
func (l *MediaLedger) Deleted() []int64 {
	out := make([]int64, len(l.deleted))
	copy(out, l.deleted)
	return out
}

// Commit uploads every pending file in a single batch and swaps the pending
// entries for persisted ones in place. On failure the ledger is left untouched.
func (l *MediaLedger) Commit(ctx context.Context, uploader Uploader) (MediaCommit, error) {
	var (
		files     []domain.LocalFile
		positions []int
	)
	for i, entry := range l.entries {
		if _, ok := entry.Pending(); !ok {
			continue
		}
		file, err := l.previews.Get(entry.URL)
		if err != nil {
			return MediaCommit{}, fmt.Errorf("%w: staged image %d is no longer available: %v", ErrUpload, i, err)
		}
		files = append(files, file)
		positions = append(positions, i)
	}

	if len(files) > 0 {
		uploaded, err := uploader.UploadFiles(ctx, files)
		if err != nil {
			return MediaCommit{}, fmt.Errorf("%w: %v", ErrUpload, err)
		}
		if len(uploaded) != len(files) {
			return MediaCommit{}, fmt.Errorf("%w: sent %d files, media service returned %d", ErrUpload, len(files), len(uploaded))
		}
		for _, result := range uploaded {
			if result.ID <= 0 || result.URL == "" {
				return MediaCommit{}, fmt.Errorf("%w: media service returned an incomplete result", ErrUpload)
			}
		}

		for n, i := range positions {
			l.previews.Revoke(l.entries[i].URL)

			fileType := uploaded[n].FileType
			if fileType == "" {
				fileType = domain.FileTypeImage
			}
			l.entries[i] = domain.MediaRef{
				State:        domain.PersistedMedia{ID: uploaded[n].ID},
				URL:          uploaded[n].URL,
				FileType:     fileType,
				EntityType:   domain.EntityTypeProduct,
				DisplayOrder: i,
			}
		}
	}

	media := make([]domain.MediaPayload, 0, len(l.entries))
	for i, entry := range l.entries {
		id, _ := entry.PersistedID()
		media = append(media, domain.MediaPayload{
			ID:           id,
			URL:          entry.URL,
			FileType:     entry.FileType,
			EntityType:   entry.EntityType,
			DisplayOrder: i,
		})
	}

	return MediaCommit{Media: media, Deleted: l.Deleted(), Uploaded: len(files)}, nil
}

// Preview returns the bytes of a pending entry of this ledger by its reference
func (l *MediaLedger) Preview(ref string) (domain.LocalFile, error) {
	for _, entry := range l.entries {
		if _, ok := entry.Pending(); ok && entry.URL == ref {
			return l.previews.Get(ref)
		}
	}
	return domain.LocalFile{}, preview.ErrPreviewNotFound
}

// Release revokes every pending preview without changing the entries
func (l *MediaLedger) Release() {
	for _, entry := range l.entries {
		if _, ok := entry.Pending(); ok {
			l.previews.Revoke(entry.URL)
		}
	}
}

// Reset releases pending previews and re-seeds the ledger from baseline
func (l *MediaLedger) Reset(baseline []domain.MediaAsset) {
	l.Release()
	l.seed(baseline)
}

func (l *MediaLedger) seed(baseline []domain.MediaAsset) {
	l.entries = make([]domain.MediaRef, 0, len(baseline))
	for _, asset := range baseline {
		l.entries = append(l.entries, domain.PersistedRef(asset))
	}
	sort.SliceStable(l.entries, func(i, j int) bool {
		return l.entries[i].DisplayOrder < l.entries[j].DisplayOrder
	})
	l.deleted = nil
	l.renumber()
}

func (l *MediaLedger) markDeleted(id int64) {
	for _, existing := range l.deleted {
		if existing == id {
			return
		}
	}
	l.deleted = append(l.deleted, id)
}

func (l *MediaLedger) renumber() {
	for i := range l.entries {
		l.entries[i].DisplayOrder = i
	}
}
