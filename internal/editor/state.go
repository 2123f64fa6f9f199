package editor

import (
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/category"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/domain"
)

// State is a point-in-time copy of everything the editor shows
type State struct {
	Mode            Mode                `json:"mode"`
	Pricing         PricingMode         `json:"pricing"`
	Draft           domain.ProductDraft `json:"draft"`
	Functionalities []string            `json:"functionalities"`
	TechnicalData   []domain.KeyValue   `json:"technicalData"`
	Downloads       []domain.KeyValue   `json:"downloads"`
	Media           []MediaView         `json:"media"`
	MaxImages       int                 `json:"maxImages"`
	DeletedMediaIDs []int64             `json:"deletedMediaIds"`
	Categories      CategoryView        `json:"categories"`
	Errors          ValidationErrors    `json:"errors"`
}

// MediaView describes an image for rendering
type MediaView struct {
	ID           int64           `json:"id,omitempty"`
	URL          string          `json:"url"`
	Name         string          `json:"name,omitempty"`
	Pending      bool            `json:"pending"`
	FileType     domain.FileType `json:"fileType"`
	DisplayOrder int             `json:"displayOrder"`
}

// CategoryView describes the category selector
type CategoryView struct {
	State   category.State          `json:"state"`
	Options []domain.CategoryOption `json:"options"`
	Error   string                  `json:"error,omitempty"`
}

// Snapshot returns a copy of the current editor state
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := e.media.Entries()
	media := make([]MediaView, 0, len(entries))
	for _, entry := range entries {
		view := MediaView{
			URL:          entry.URL,
			FileType:     entry.FileType,
			DisplayOrder: entry.DisplayOrder,
		}
		if pending, ok := entry.Pending(); ok {
			view.Pending = true
			view.Name = pending.Name
		} else if id, ok := entry.PersistedID(); ok {
			view.ID = id
		}
		media = append(media, view)
	}

	categories := CategoryView{
		State:   e.categories.State(),
		Options: e.categories.Options(),
	}
	if e.categoryErr != nil {
		categories.Error = e.categoryErr.Error()
	}

	draft := e.draft
	if draft.ID != nil {
		id := *draft.ID
		draft.ID = &id
	}

	errs := e.validateLocked()
	if errs == nil {
		errs = ValidationErrors{}
	}

	return State{
		Mode:            e.modeLocked(),
		Pricing:         e.pricing,
		Draft:           draft,
		Functionalities: e.functionalities.Values(),
		TechnicalData:   e.technicalData.Values(),
		Downloads:       e.downloads.Values(),
		Media:           media,
		MaxImages:       e.media.Limit(),
		DeletedMediaIDs: e.media.Deleted(),
		Categories:      categories,
		Errors:          errs,
	}
}
