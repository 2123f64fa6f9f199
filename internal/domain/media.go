package domain

// FileType classifies an uploaded asset
type FileType string

const (
	FileTypeImage FileType = "IMAGE"
	FileTypeOther FileType = "OTHER"
)

// EntityType names the owner kind of a media association
type EntityType string

const (
	EntityTypeProduct EntityType = "PRODUCT"
)

// LocalFile is a file selected by the user that has not reached the server yet
type LocalFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the file size in bytes
func (f LocalFile) Size() int64 {
	return int64(len(f.Data))
}

// UploadedFile is the media service's answer for one uploaded file
type UploadedFile struct {
	ID       int64    `json:"id"`
	URL      string   `json:"url"`
	FileType FileType `json:"fileType"`
}

// MediaState is either PendingMedia or PersistedMedia
type MediaState interface {
	isMediaState()
}

// PendingMedia is an image staged locally, waiting for the next commit.
// Its bytes live in the preview store under the entry's URL.
type PendingMedia struct {
	Name        string
	ContentType string
	Size        int64
}

// PersistedMedia is an image the server already knows
type PersistedMedia struct {
	ID int64
}

func (PendingMedia) isMediaState()   {}
func (PersistedMedia) isMediaState() {}

// MediaRef is a single image association of the product being edited
type MediaRef struct {
	State        MediaState
	URL          string
	FileType     FileType
	EntityType   EntityType
	DisplayOrder int
}

// Pending returns the pending state of the entry, if any
func (m MediaRef) Pending() (PendingMedia, bool) {
	p, ok := m.State.(PendingMedia)
	return p, ok
}

// PersistedID returns the server id of the entry, if it has one
func (m MediaRef) PersistedID() (int64, bool) {
	p, ok := m.State.(PersistedMedia)
	if !ok {
		return 0, false
	}
	return p.ID, true
}

// MediaAsset is the server representation of a product image
type MediaAsset struct {
	ID           int64      `json:"id"`
	URL          string     `json:"url"`
	FileType     FileType   `json:"fileType"`
	EntityType   EntityType `json:"entityType"`
	DisplayOrder int        `json:"displayOrder"`
}

// MediaPayload is the wire form of a persisted image in a product payload
type MediaPayload struct {
	ID           int64      `json:"id"`
	URL          string     `json:"url"`
	FileType     FileType   `json:"fileType"`
	EntityType   EntityType `json:"entityType"`
	DisplayOrder int        `json:"displayOrder"`
}

// PersistedRef builds a MediaRef from a server asset
func PersistedRef(asset MediaAsset) MediaRef {
	fileType := asset.FileType
	if fileType == "" {
		fileType = FileTypeImage
	}
	return MediaRef{
		State:        PersistedMedia{ID: asset.ID},
		URL:          asset.URL,
		FileType:     fileType,
		EntityType:   EntityTypeProduct,
		DisplayOrder: asset.DisplayOrder,
	}
}
