package staging

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/collection"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/domain"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/preview"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUploader assigns sequential ids, or fails when err is set
type fakeUploader struct {
	nextID int64
	calls  int
	sent   []domain.LocalFile
	err    error
}

func (u *fakeUploader) UploadFiles(ctx context.Context, files []domain.LocalFile) ([]domain.UploadedFile, error) {
	u.calls++
	u.sent = append(u.sent, files...)
	if u.err != nil {
		return nil, u.err
	}
	out := make([]domain.UploadedFile, 0, len(files))
	for _, f := range files {
		u.nextID++
		out = append(out, domain.UploadedFile{
			ID:       u.nextID,
			URL:      fmt.Sprintf("https://cdn.example.com/%d/%s", u.nextID, f.Name),
			FileType: domain.FileTypeImage,
		})
	}
	return out, nil
}

// countingStore records revocations on top of the memory store
type countingStore struct {
	preview.Store
	revoked []string
}

func (s *countingStore) Revoke(ref string) {
	s.revoked = append(s.revoked, ref)
	s.Store.Revoke(ref)
}

func image(name string) domain.LocalFile {
	return domain.LocalFile{Name: name, ContentType: "image/png", Data: []byte("png")}
}

func newTestLedger(baseline ...domain.MediaAsset) (*MediaLedger, *countingStore) {
	store := &countingStore{Store: preview.NewMemoryStore()}
	return NewMediaLedger(store, DefaultMaxImages, ImagePolicy(DefaultMaxFileSize), baseline), store
}

func asset(id int64, order int) domain.MediaAsset {
	return domain.MediaAsset{
		ID:           id,
		URL:          fmt.Sprintf("https://cdn.example.com/%d.png", id),
		FileType:     domain.FileTypeImage,
		EntityType:   domain.EntityTypeProduct,
		DisplayOrder: order,
	}
}

// Feature: product-editor, Property 3: Committed media never keeps local references
func TestProperty_CommitLeavesNoPendingEntries(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("after commit every entry is persisted with a server url", prop.ForAll(
		func(persisted, staged int) bool {
			baseline := make([]domain.MediaAsset, 0, persisted)
			for i := 0; i < persisted; i++ {
				baseline = append(baseline, asset(int64(100+i), i))
			}
			ledger, store := newTestLedger(baseline...)

			files := make([]domain.LocalFile, 0, staged)
			for i := 0; i < staged; i++ {
				files = append(files, image(fmt.Sprintf("img-%d.png", i)))
			}
			if err := ledger.AddFiles(files); err != nil {
				t.Logf("FAIL: AddFiles failed: %v", err)
				return false
			}

			commit, err := ledger.Commit(context.Background(), &fakeUploader{nextID: 500})
			if err != nil {
				t.Logf("FAIL: Commit failed: %v", err)
				return false
			}
			if len(commit.Media) != persisted+staged || commit.Uploaded != staged {
				t.Logf("FAIL: got %d media, %d uploaded", len(commit.Media), commit.Uploaded)
				return false
			}
			for i, entry := range ledger.Entries() {
				if _, pending := entry.Pending(); pending || preview.IsLocal(entry.URL) {
					t.Logf("FAIL: entry %d still local: %+v", i, entry)
					return false
				}
				if commit.Media[i].ID <= 0 || commit.Media[i].DisplayOrder != i {
					t.Logf("FAIL: payload entry %d invalid: %+v", i, commit.Media[i])
					return false
				}
			}
			return len(store.revoked) == staged
		},
		gen.IntRange(0, 2),
		gen.IntRange(0, 3),
	))

	properties.Property("removing a persisted entry records a deletion and revokes nothing", prop.ForAll(
		func(count, pick int) bool {
			baseline := make([]domain.MediaAsset, 0, count)
			for i := 0; i < count; i++ {
				baseline = append(baseline, asset(int64(i+1), i))
			}
			ledger, store := newTestLedger(baseline...)
			if err := ledger.AddFiles([]domain.LocalFile{image("new.png")}); err != nil {
				return false
			}

			index := pick % count
			id, _ := ledger.Entries()[index].PersistedID()
			if err := ledger.RemoveAt(index); err != nil {
				t.Logf("FAIL: RemoveAt failed: %v", err)
				return false
			}

			deleted := ledger.Deleted()
			return len(deleted) == 1 && deleted[0] == id && len(store.revoked) == 0
		},
		gen.IntRange(1, 4),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestMediaLedger_AddFilesRespectsLimit(t *testing.T) {
	ledger, _ := newTestLedger(asset(1, 0), asset(2, 1), asset(3, 2))

	err := ledger.AddFiles([]domain.LocalFile{image("a.png"), image("b.png"), image("c.png")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMediaLimit))
	assert.Equal(t, 3, ledger.Len(), "no partial addition")

	require.NoError(t, ledger.AddFiles([]domain.LocalFile{image("a.png"), image("b.png")}))
	assert.Equal(t, 5, ledger.Len())
	assert.Equal(t, 2, ledger.Pending())
}

func TestMediaLedger_RejectsNonImages(t *testing.T) {
	ledger, _ := newTestLedger()

	err := ledger.AddFiles([]domain.LocalFile{
		image("a.png"),
		{Name: "manual.pdf", ContentType: "application/pdf", Data: []byte("%PDF")},
	})
	assert.True(t, errors.Is(err, ErrUnsupportedFile))
	assert.Equal(t, 0, ledger.Len())
}

func TestMediaLedger_RemovePendingReleasesPreview(t *testing.T) {
	ledger, store := newTestLedger(asset(1, 0))
	require.NoError(t, ledger.AddFiles([]domain.LocalFile{image("a.png")}))

	ref := ledger.Entries()[1].URL
	require.NoError(t, ledger.RemoveAt(1))

	assert.Equal(t, []string{ref}, store.revoked)
	assert.Empty(t, ledger.Deleted())
	_, err := store.Get(ref)
	assert.True(t, errors.Is(err, preview.ErrPreviewNotFound))
}

func TestMediaLedger_RemoveRenumbersDisplayOrder(t *testing.T) {
	ledger, _ := newTestLedger(asset(1, 0), asset(2, 1), asset(3, 2))

	require.NoError(t, ledger.RemoveAt(0))

	entries := ledger.Entries()
	require.Len(t, entries, 2)
	for i, entry := range entries {
		assert.Equal(t, i, entry.DisplayOrder)
	}
	assert.Equal(t, []int64{1}, ledger.Deleted())
}

func TestMediaLedger_RemoveOutOfRange(t *testing.T) {
	ledger, store := newTestLedger(asset(1, 0))

	for _, index := range []int{-1, 1, 5} {
		err := ledger.RemoveAt(index)
		assert.True(t, errors.Is(err, collection.ErrIndexOutOfRange), "index %d", index)
	}
	assert.Equal(t, 1, ledger.Len())
	assert.Empty(t, ledger.Deleted())
	assert.Empty(t, store.revoked)
}

func TestMediaLedger_PreviewReadsStagedBytes(t *testing.T) {
	ledger, _ := newTestLedger(asset(1, 0))
	require.NoError(t, ledger.AddFiles([]domain.LocalFile{image("a.png")}))
	entries := ledger.Entries()

	file, err := ledger.Preview(entries[1].URL)
	require.NoError(t, err)
	assert.Equal(t, "a.png", file.Name)
	assert.Equal(t, []byte("png"), file.Data)

	_, err = ledger.Preview(entries[0].URL)
	assert.True(t, errors.Is(err, preview.ErrPreviewNotFound), "persisted entries have no staged bytes")

	other, _ := newTestLedger()
	require.NoError(t, other.AddFiles([]domain.LocalFile{image("b.png")}))
	_, err = ledger.Preview(other.Entries()[0].URL)
	assert.True(t, errors.Is(err, preview.ErrPreviewNotFound), "references of another ledger are not served")
}

func TestMediaLedger_CommitUploadsStoredBytes(t *testing.T) {
	ledger, _ := newTestLedger()
	require.NoError(t, ledger.AddFiles([]domain.LocalFile{image("a.png"), image("b.png")}))
	uploader := &fakeUploader{nextID: 10}

	_, err := ledger.Commit(context.Background(), uploader)

	require.NoError(t, err)
	require.Len(t, uploader.sent, 2)
	assert.Equal(t, "a.png", uploader.sent[0].Name)
	assert.Equal(t, []byte("png"), uploader.sent[1].Data)
}

func TestMediaLedger_CommitFailsWhenStagedBytesAreGone(t *testing.T) {
	ledger, store := newTestLedger()
	require.NoError(t, ledger.AddFiles([]domain.LocalFile{image("a.png")}))
	store.Store.Revoke(ledger.Entries()[0].URL)
	uploader := &fakeUploader{}

	_, err := ledger.Commit(context.Background(), uploader)

	assert.True(t, errors.Is(err, ErrUpload))
	assert.Equal(t, 0, uploader.calls)
	assert.Equal(t, 1, ledger.Pending())
}

func TestMediaLedger_CommitFailureLeavesLedgerUnchanged(t *testing.T) {
	ledger, store := newTestLedger(asset(1, 0))
	require.NoError(t, ledger.AddFiles([]domain.LocalFile{image("a.png")}))
	before := ledger.Entries()

	_, err := ledger.Commit(context.Background(), &fakeUploader{err: errors.New("storage offline")})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpload))
	assert.Equal(t, before, ledger.Entries())
	assert.Empty(t, store.revoked)
}

func TestMediaLedger_CommitWithoutPendingSkipsUpload(t *testing.T) {
	ledger, _ := newTestLedger(asset(1, 0), asset(2, 1))
	require.NoError(t, ledger.RemoveAt(1))
	uploader := &fakeUploader{}

	commit, err := ledger.Commit(context.Background(), uploader)

	require.NoError(t, err)
	assert.Equal(t, 0, uploader.calls)
	assert.Equal(t, []int64{2}, commit.Deleted)
	require.Len(t, commit.Media, 1)
	assert.Equal(t, int64(1), commit.Media[0].ID)
}

func TestMediaLedger_ResetRestoresBaseline(t *testing.T) {
	ledger, store := newTestLedger(asset(1, 0))
	require.NoError(t, ledger.AddFiles([]domain.LocalFile{image("a.png")}))
	require.NoError(t, ledger.RemoveAt(0))

	ledger.Reset([]domain.MediaAsset{asset(1, 0)})

	assert.Equal(t, 1, ledger.Len())
	assert.Empty(t, ledger.Deleted())
	assert.Len(t, store.revoked, 1)
}
