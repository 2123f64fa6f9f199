package editor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/category"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/collection"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/domain"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/preview"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/pricing"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/staging"

	"go.uber.org/zap"
)

// CatalogService is the product catalog backend
type CatalogService interface {
	CreateProduct(ctx context.Context, payload domain.ProductPayload) (*domain.Product, error)
	UpdateProduct(ctx context.Context, payload domain.ProductPayload) (*domain.Product, error)
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
	CategoriesByBrand(ctx context.Context, brandID string) ([]domain.CategoryOption, error)
	CategoryByID(ctx context.Context, id string) (domain.CategoryOption, error)
}

// CategoryInvalidator is implemented by catalogs that cache category lists
type CategoryInvalidator interface {
	InvalidateCategories(ctx context.Context, brandID string) error
}

// DescriptionService writes marketing copy for a product name
type DescriptionService interface {
	GenerateDescription(ctx context.Context, name, entityKind string) (string, error)
}

// SessionContext identifies who is editing
type SessionContext interface {
	ActorID() string
}

// Actor is a fixed SessionContext
type Actor string

// ActorID returns the actor id
func (a Actor) ActorID() string {
	return string(a)
}

// Mode tells whether the engine creates a new product or edits an existing one
type Mode string

const (
	ModeCreate Mode = "CREATE"
	ModeEdit   Mode = "EDIT"
)

// PricingMode selects how price and discount are obtained
type PricingMode string

const (
	// PricingDerived computes price and discount from cost; both are read-only
	PricingDerived PricingMode = "DERIVED"
	// PricingManual treats every price field as an independent input
	PricingManual PricingMode = "MANUAL"
)

// Deps are the collaborators of an engine. Describer is optional.
type Deps struct {
	Catalog   CatalogService
	Media     staging.Uploader
	Describer DescriptionService
	Actor     SessionContext
	Previews  preview.Store
	Logger    *zap.Logger
}

// Options tune a single engine. Zero values pick the defaults.
type Options struct {
	Pricing             PricingMode
	MaxImages           int
	MaxFileSize         int64
	CategoryPlaceholder string
}

// Engine holds the editable state of one product until it is submitted
type Engine struct {
	deps    Deps
	logger  *zap.Logger
	pricing PricingMode

	mu              sync.Mutex
	closed          bool
	draft           domain.ProductDraft
	baseline        *domain.Product
	functionalities *collection.List[string]
	technicalData   *collection.List[domain.KeyValue]
	downloads       *staging.DownloadLedger
	media           *staging.MediaLedger
	categories      *category.Resolver
	categoryErr     error
}

// New creates an engine for a product that does not exist yet
func New(deps Deps, opts Options) (*Engine, error) {
	if deps.Catalog == nil {
		return nil, errors.New("editor: catalog service is required")
	}
	if deps.Media == nil {
		return nil, errors.New("editor: media service is required")
	}
	if deps.Actor == nil {
		return nil, errors.New("editor: session context is required")
	}
	if deps.Previews == nil {
		deps.Previews = preview.NewMemoryStore()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = staging.DefaultMaxFileSize
	}

	e := &Engine{
		deps:            deps,
		logger:          deps.Logger,
		pricing:         opts.Pricing,
		functionalities: collection.NewList[string](),
		technicalData:   collection.NewList[domain.KeyValue](),
		downloads:       staging.NewDownloadLedger(staging.DocumentPolicy(maxSize), nil),
		media:           staging.NewMediaLedger(deps.Previews, opts.MaxImages, staging.ImagePolicy(maxSize), nil),
		categories:      category.NewResolver(deps.Catalog, "", opts.CategoryPlaceholder, deps.Logger),
	}
	if e.pricing == "" {
		e.pricing = PricingManual
	}
	e.draft = e.emptyDraft()
	return e, nil
}

// Open loads product id from the catalog and creates an engine editing it
func Open(ctx context.Context, deps Deps, id int64, opts Options) (*Engine, error) {
	if opts.Pricing == "" {
		opts.Pricing = PricingDerived
	}
	e, err := New(deps, opts)
	if err != nil {
		return nil, err
	}

	product, err := deps.Catalog.GetProductByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load product %d: %w", id, err)
	}
	if product == nil {
		return nil, fmt.Errorf("failed to load product %d: %w", id, ErrInvalidProduct)
	}

	e.mu.Lock()
	e.baseline = product
	e.seed(product)
	e.mu.Unlock()

	e.refreshCategories(ctx)

	e.logger.Info("Editor opened",
		zap.Int64("product_id", id),
		zap.String("pricing", string(e.pricing)),
	)
	return e, nil
}

// Mode returns whether the engine is creating or editing
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modeLocked()
}

func (e *Engine) modeLocked() Mode {
	if e.draft.IsNew() {
		return ModeCreate
	}
	return ModeEdit
}

// PricingMode returns how prices are obtained
func (e *Engine) PricingMode() PricingMode {
	return e.pricing
}

// AppendFunctionality adds a feature bullet
func (e *Engine) AppendFunctionality(value string) error {
	return e.locked(func() error {
		e.functionalities.Append(value)
		return nil
	})
}

// ReplaceFunctionality overwrites the feature bullet at index
func (e *Engine) ReplaceFunctionality(index int, value string) error {
	return e.locked(func() error {
		return e.functionalities.ReplaceAt(index, value)
	})
}

// RemoveFunctionality deletes the feature bullet at index
func (e *Engine) RemoveFunctionality(index int) error {
	return e.locked(func() error {
		return e.functionalities.RemoveAt(index)
	})
}

// AppendTechnicalData adds a specification row
func (e *Engine) AppendTechnicalData(row domain.KeyValue) error {
	return e.locked(func() error {
		e.technicalData.Append(row)
		return nil
	})
}

// ReplaceTechnicalData overwrites the specification row at index
func (e *Engine) ReplaceTechnicalData(index int, row domain.KeyValue) error {
	return e.locked(func() error {
		return e.technicalData.ReplaceAt(index, row)
	})
}

// RemoveTechnicalData deletes the specification row at index
func (e *Engine) RemoveTechnicalData(index int) error {
	return e.locked(func() error {
		return e.technicalData.RemoveAt(index)
	})
}

// ReplaceDownload renames the document row at index
func (e *Engine) ReplaceDownload(index int, row domain.KeyValue) error {
	return e.locked(func() error {
		return e.downloads.ReplaceAt(index, row)
	})
}

// RemoveDownload detaches the document at index
func (e *Engine) RemoveDownload(index int) error {
	return e.locked(func() error {
		return e.downloads.RemoveAt(index)
	})
}

// AddImages stages images for upload at the next submit
func (e *Engine) AddImages(files []domain.LocalFile) error {
	return e.locked(func() error {
		return e.media.AddFiles(files)
	})
}

// RemoveImage removes the image at index
func (e *Engine) RemoveImage(index int) error {
	return e.locked(func() error {
		return e.media.RemoveAt(index)
	})
}

// AddDocuments uploads documents right away and attaches them
func (e *Engine) AddDocuments(ctx context.Context, files []domain.LocalFile) error {
	return e.locked(func() error {
		if err := e.downloads.AddFiles(ctx, e.deps.Media, files); err != nil {
			e.logger.Warn("Failed to attach documents",
				zap.Int("files", len(files)),
				zap.Error(err),
			)
			return err
		}
		return nil
	})
}

// Validate reports every field that currently blocks a submit
func (e *Engine) Validate() ValidationErrors {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.validateLocked()
}

func (e *Engine) validateLocked() ValidationErrors {
	errs := validateStruct(draftRules{
		Name:       e.draft.Name,
		BrandID:    e.draft.BrandID,
		CategoryID: e.draft.CategoryID,
		Stock:      e.draft.Stock,
		Garanty:    e.draft.Garanty,
	})
	if e.pricing == PricingManual {
		errs = append(errs, validateStruct(manualPricingRules{
			Price:          e.draft.Price,
			MinimumPrice:   e.draft.MinimumPrice,
			EcommercePrice: e.draft.EcommercePrice,
			Cost:           e.draft.Cost,
			Discount:       e.draft.Discount,
		})...)
	}
	return errs
}

// Submit validates the draft, uploads staged images and saves the product.
// On success the engine switches to editing the saved product. On failure
// the draft is kept as is so the user can retry.
func (e *Engine) Submit(ctx context.Context) (*domain.Product, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	if errs := e.validateLocked(); len(errs) > 0 {
		return nil, errs
	}

	commit, err := e.media.Commit(ctx, e.deps.Media)
	if err != nil {
		e.logger.Error("Failed to upload product images", zap.Error(err))
		return nil, err
	}

	payload := e.buildPayload(commit)
	mode := e.modeLocked()

	var product *domain.Product
	if mode == ModeCreate {
		product, err = e.deps.Catalog.CreateProduct(ctx, payload)
	} else {
		product, err = e.deps.Catalog.UpdateProduct(ctx, payload)
	}
	if err == nil && product == nil {
		err = fmt.Errorf("%w: catalog returned no product", ErrInvalidProduct)
	}
	if err != nil {
		e.logger.Error("Failed to save product",
			zap.String("mode", string(mode)),
			zap.Error(err),
		)
		return nil, &PersistenceError{Message: serverMessage(err), Err: err}
	}

	e.baseline = product
	e.seed(product)
	e.categories.SetOriginal(e.draft.CategoryID)

	e.logger.Info("Product saved",
		zap.Int64("product_id", product.ID),
		zap.String("mode", string(mode)),
		zap.Int("uploaded_images", commit.Uploaded),
		zap.Int("deleted_images", len(commit.Deleted)),
	)
	return product, nil
}

// Reset discards every change and returns to the state the engine was opened with
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.media.Release()
	if e.baseline != nil {
		e.seed(e.baseline)
	} else {
		e.draft = e.emptyDraft()
		e.functionalities.Reset()
		e.technicalData.Reset()
		e.downloads.Reset(nil)
		e.media.Reset(nil)
	}
	e.categories.Reset(e.draft.CategoryID)
	e.categoryErr = nil
	e.mu.Unlock()

	e.refreshCategories(ctx)
	return nil
}

// RefreshCategories reloads the category list of the selected brand,
// dropping any cached copy the catalog keeps first.
func (e *Engine) RefreshCategories(ctx context.Context) error {
	e.mu.Lock()
	brandID, closed := e.draft.BrandID, e.closed
	e.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if invalidator, ok := e.deps.Catalog.(CategoryInvalidator); ok && brandID != "" {
		if err := invalidator.InvalidateCategories(ctx, brandID); err != nil {
			e.logger.Warn("Failed to invalidate cached categories", zap.String("brand_id", brandID), zap.Error(err))
		}
	}

	e.refreshCategories(ctx)
	return nil
}

// GenerateDescription asks the description service for copy based on the
// product name and stores it in the draft. On failure the description is kept.
func (e *Engine) GenerateDescription(ctx context.Context) error {
	e.mu.Lock()
	name := e.draft.Name
	closed := e.closed
	e.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if e.deps.Describer == nil {
		return ErrNoDescriber
	}
	if name == "" {
		return ErrNameRequired
	}

	text, err := e.deps.Describer.GenerateDescription(ctx, name, string(domain.EntityTypeProduct))
	if err != nil {
		e.logger.Warn("Failed to generate description", zap.String("name", name), zap.Error(err))
		return fmt.Errorf("failed to generate description: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.draft.Description = text
	return nil
}

// Preview returns a staged image of this engine by its preview reference
func (e *Engine) Preview(ref string) (domain.LocalFile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.media.Preview(ref)
}

// Close releases every staged preview. Further calls fail with ErrClosed.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.media.Release()
	e.closed = true
}

func (e *Engine) locked(fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return fn()
}

// refreshCategories resolves the category list for the current brand
func (e *Engine) refreshCategories(ctx context.Context) {
	e.mu.Lock()
	brandID, selected := e.draft.BrandID, e.draft.CategoryID
	e.mu.Unlock()

	res := e.categories.Resolve(ctx, brandID, selected)
	if res.Stale {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.applyResolution(selected, res)
}

// applyResolution updates the selected category unless the user picked
// another one while the list was loading
func (e *Engine) applyResolution(selected string, res category.Resolution) {
	e.categoryErr = res.Err
	if e.draft.CategoryID != selected {
		for _, option := range res.Options {
			if option.ID == e.draft.CategoryID {
				return
			}
		}
		if e.draft.CategoryID == e.categories.Original() {
			return
		}
	}
	e.draft.CategoryID = res.Selected
}

// seed loads a persisted product into the draft and the ledgers
func (e *Engine) seed(product *domain.Product) {
	id := product.ID
	status := product.Status
	if !status.Valid() {
		status = domain.StatusActive
	}

	e.draft = domain.ProductDraft{
		ID:               &id,
		Name:             product.Name,
		ShortDescription: product.ShortDescription,
		Description:      product.Description,
		ExternalID:       product.ExternalID,
		BrandID:          formatID(product.BrandID),
		CategoryID:       formatID(product.CategoryID),
		Price:            formatFloat(product.Price),
		MinimumPrice:     formatFloat(product.MinimumPrice),
		EcommercePrice:   formatFloat(product.EcommercePrice),
		Cost:             formatFloat(product.Cost),
		Discount:         formatFloat(product.Discount),
		Stock:            strconv.Itoa(product.Stock),
		Garanty:          strconv.Itoa(product.Garanty),
		Color:            product.Color,
		Rentable:         product.Rentable,
		Status:           status,
	}
	if e.pricing == PricingDerived {
		e.applyQuote(pricing.DeriveRaw(e.draft.Cost))
	}

	e.functionalities.Reset(product.Functionalities...)
	e.technicalData.Reset(product.TechnicalData...)
	e.downloads.Reset(product.Downloads)
	e.media.Reset(product.Media)
}

func (e *Engine) applyQuote(quote pricing.Quote) {
	e.draft.Price = quote.Price.StringFixed(2)
	e.draft.Discount = quote.Discount.StringFixed(2)
}

func (e *Engine) emptyDraft() domain.ProductDraft {
	draft := domain.ProductDraft{Status: domain.StatusActive}
	if e.pricing == PricingDerived {
		quote := pricing.DeriveRaw("")
		draft.Price = quote.Price.StringFixed(2)
		draft.Discount = quote.Discount.StringFixed(2)
	}
	return draft
}

func formatID(id int64) string {
	if id <= 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
