package category

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/domain"

	"go.uber.org/zap"
)

var (
	ErrFetch = errors.New("failed to fetch categories")
)

// DefaultPlaceholder names an original category the catalog can no longer describe
const DefaultPlaceholder = "Categoría actual"

// State of the category selector
type State string

const (
	StateNoBrand State = "NO_BRAND"
	StateLoading State = "LOADING"
	StateReady   State = "READY"
	StateEmpty   State = "EMPTY"
)

// Source looks categories up in the catalog
type Source interface {
	CategoriesByBrand(ctx context.Context, brandID string) ([]domain.CategoryOption, error)
	CategoryByID(ctx context.Context, id string) (domain.CategoryOption, error)
}

// Resolution is the outcome of a brand change. A stale resolution was
// overtaken by a newer one and must not be applied.
type Resolution struct {
	State    State
	Options  []domain.CategoryOption
	Selected string
	Err      error
	Stale    bool
}

// Resolver keeps the category options consistent with the selected brand.
// The category the product had when the session opened (the original) stays
// selectable even when it no longer belongs to the brand's list.
type Resolver struct {
	source      Source
	logger      *zap.Logger
	placeholder string

	mu       sync.Mutex
	seq      uint64
	original string
	state    State
	options  []domain.CategoryOption
}

// NewResolver creates a resolver in the no-brand state
func NewResolver(source Source, original, placeholder string, logger *zap.Logger) *Resolver {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		source:      source,
		logger:      logger,
		placeholder: placeholder,
		original:    original,
		state:       StateNoBrand,
	}
}

// Resolve loads the categories of brandID and decides what happens to the
// selected category. Only the most recent call updates the resolver; an
// older call that finishes later comes back marked Stale.
func (r *Resolver) Resolve(ctx context.Context, brandID, selected string) Resolution {
	r.mu.Lock()
	r.seq++
	ticket := r.seq
	original := r.original
	if brandID == "" {
		r.state = StateNoBrand
		r.options = nil
		r.mu.Unlock()
		return Resolution{State: StateNoBrand, Options: []domain.CategoryOption{}}
	}
	r.state = StateLoading
	r.mu.Unlock()

	res := r.fetch(ctx, brandID, selected, original)

	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket != r.seq {
		r.logger.Debug("Discarding stale category list",
			zap.String("brand_id", brandID),
			zap.Uint64("ticket", ticket),
			zap.Uint64("latest", r.seq),
		)
		res.Stale = true
		return res
	}
	r.state = res.State
	r.options = res.Options
	return res
}

func (r *Resolver) fetch(ctx context.Context, brandID, selected, original string) Resolution {
	options, err := r.source.CategoriesByBrand(ctx, brandID)
	if err != nil {
		r.logger.Warn("Failed to fetch categories for brand",
			zap.String("brand_id", brandID),
			zap.Error(err),
		)
		res := Resolution{
			State:   StateEmpty,
			Options: []domain.CategoryOption{},
			Err:     fmt.Errorf("%w for brand %s: %v", ErrFetch, brandID, err),
		}
		if selected != "" && selected == original {
			res.Options = []domain.CategoryOption{r.lookup(ctx, original)}
			res.Selected = original
		}
		return res
	}

	res := Resolution{State: StateReady, Options: append([]domain.CategoryOption{}, options...)}
	switch {
	case selected == "" || contains(options, selected):
		res.Selected = selected
	case selected == original:
		res.Options = append([]domain.CategoryOption{r.lookup(ctx, original)}, res.Options...)
		res.Selected = original
	default:
		r.logger.Debug("Clearing category outside brand",
			zap.String("brand_id", brandID),
			zap.String("category_id", selected),
		)
	}
	if len(res.Options) == 0 {
		res.State = StateEmpty
	}
	return res
}

// lookup describes a single category, falling back to the placeholder name
func (r *Resolver) lookup(ctx context.Context, id string) domain.CategoryOption {
	option, err := r.source.CategoryByID(ctx, id)
	if err != nil || option.ID == "" {
		r.logger.Warn("Failed to fetch original category",
			zap.String("category_id", id),
			zap.Error(err),
		)
		return domain.CategoryOption{ID: id, Name: r.placeholder}
	}
	return option
}

// SetOriginal changes the category that stays selectable across brands
func (r *Resolver) SetOriginal(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.original = id
}

// Original returns the category the session opened with
func (r *Resolver) Original() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.original
}

// State returns the current selector state
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Options returns a copy of the current options
func (r *Resolver) Options() []domain.CategoryOption {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.CategoryOption, len(r.options))
	copy(out, r.options)
	return out
}

// Reset returns the resolver to the no-brand state and invalidates in-flight calls
func (r *Resolver) Reset(original string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.original = original
	r.state = StateNoBrand
	r.options = nil
}

func contains(options []domain.CategoryOption, id string) bool {
	for _, option := range options {
		if option.ID == id {
			return true
		}
	}
	return false
}
