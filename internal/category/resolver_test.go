package category

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSource is a mock implementation of Source
type MockSource struct {
	mock.Mock
}

func (m *MockSource) CategoriesByBrand(ctx context.Context, brandID string) ([]domain.CategoryOption, error) {
	args := m.Called(ctx, brandID)
	var options []domain.CategoryOption
	if arg0 := args.Get(0); arg0 != nil {
		options = arg0.([]domain.CategoryOption)
	}
	return options, args.Error(1)
}

func (m *MockSource) CategoryByID(ctx context.Context, id string) (domain.CategoryOption, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.CategoryOption), args.Error(1)
}

func brandCategories() []domain.CategoryOption {
	return []domain.CategoryOption{{ID: "1", Name: "Taladros"}, {ID: "2", Name: "Sierras"}}
}

// Feature: product-editor, Property 5: The original category survives a brand change
func TestProperty_OriginalCategoryIsPreserved(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("absent original category is prepended and kept selected", prop.ForAll(
		func(original int) bool {
			id := fmt.Sprint(original)
			source := new(MockSource)
			source.On("CategoriesByBrand", mock.Anything, "3").Return(brandCategories(), nil)
			source.On("CategoryByID", mock.Anything, id).Return(domain.CategoryOption{ID: id, Name: "Legacy"}, nil)

			res := NewResolver(source, id, "", nil).Resolve(context.Background(), "3", id)

			return res.State == StateReady &&
				res.Selected == id &&
				len(res.Options) == 3 &&
				res.Options[0].ID == id &&
				res.Options[0].Name == "Legacy"
		},
		gen.IntRange(3, 10000),
	))

	properties.Property("absent non-original category is cleared", prop.ForAll(
		func(selected int) bool {
			id := fmt.Sprint(selected)
			source := new(MockSource)
			source.On("CategoriesByBrand", mock.Anything, "3").Return(brandCategories(), nil)

			res := NewResolver(source, "7", "", nil).Resolve(context.Background(), "3", id)

			return res.Selected == "" && len(res.Options) == 2 && !res.Stale
		},
		gen.IntRange(8, 10000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestResolver_ReferenceScenario(t *testing.T) {
	source := new(MockSource)
	source.On("CategoriesByBrand", mock.Anything, "2").Return(brandCategories(), nil)
	source.On("CategoryByID", mock.Anything, "7").Return(domain.CategoryOption{ID: "7", Name: "Rotomartillos"}, nil)
	resolver := NewResolver(source, "7", "", nil)

	res := resolver.Resolve(context.Background(), "2", "7")
	require.NoError(t, res.Err)
	assert.Equal(t, "7", res.Options[0].ID)
	assert.Equal(t, "7", res.Selected)

	res = resolver.Resolve(context.Background(), "2", "9")
	assert.Equal(t, "", res.Selected)
	assert.Equal(t, brandCategories(), resolver.Options())
	source.AssertNumberOfCalls(t, "CategoryByID", 1)
}

func TestResolver_SelectionPresentIsUntouched(t *testing.T) {
	source := new(MockSource)
	source.On("CategoriesByBrand", mock.Anything, "2").Return(brandCategories(), nil)

	res := NewResolver(source, "7", "", nil).Resolve(context.Background(), "2", "2")

	assert.Equal(t, StateReady, res.State)
	assert.Equal(t, "2", res.Selected)
	assert.Equal(t, brandCategories(), res.Options)
	source.AssertNotCalled(t, "CategoryByID", mock.Anything, mock.Anything)
}

func TestResolver_NoBrandClearsEverything(t *testing.T) {
	source := new(MockSource)
	resolver := NewResolver(source, "7", "", nil)

	res := resolver.Resolve(context.Background(), "", "7")

	assert.Equal(t, StateNoBrand, res.State)
	assert.Empty(t, res.Options)
	assert.Equal(t, "", res.Selected)
	source.AssertNotCalled(t, "CategoriesByBrand", mock.Anything, mock.Anything)
}

func TestResolver_FetchFailureDegrades(t *testing.T) {
	source := new(MockSource)
	source.On("CategoriesByBrand", mock.Anything, "2").Return(nil, errors.New("503 service unavailable"))
	source.On("CategoryByID", mock.Anything, "7").Return(domain.CategoryOption{}, errors.New("503 service unavailable"))
	resolver := NewResolver(source, "7", "Sin categoría", nil)

	res := resolver.Resolve(context.Background(), "2", "7")
	assert.True(t, errors.Is(res.Err, ErrFetch))
	assert.Equal(t, StateEmpty, res.State)
	assert.Equal(t, "7", res.Selected)
	assert.Equal(t, []domain.CategoryOption{{ID: "7", Name: "Sin categoría"}}, res.Options)

	res = resolver.Resolve(context.Background(), "2", "9")
	assert.Equal(t, StateEmpty, res.State)
	assert.Equal(t, "", res.Selected)
	assert.Empty(t, res.Options)
	assert.Equal(t, StateEmpty, resolver.State())
}

func TestResolver_OriginalLookupFailureUsesPlaceholder(t *testing.T) {
	source := new(MockSource)
	source.On("CategoriesByBrand", mock.Anything, "2").Return(brandCategories(), nil)
	source.On("CategoryByID", mock.Anything, "7").Return(domain.CategoryOption{}, errors.New("not found"))

	res := NewResolver(source, "7", "", nil).Resolve(context.Background(), "2", "7")

	require.NoError(t, res.Err)
	assert.Equal(t, domain.CategoryOption{ID: "7", Name: DefaultPlaceholder}, res.Options[0])
	assert.Equal(t, "7", res.Selected)
}

// gatedSource blocks the first brand fetch until released
type gatedSource struct {
	started chan struct{}
	release chan struct{}
}

func (s *gatedSource) CategoriesByBrand(ctx context.Context, brandID string) ([]domain.CategoryOption, error) {
	if brandID == "slow" {
		close(s.started)
		<-s.release
		return []domain.CategoryOption{{ID: "100", Name: "Old"}}, nil
	}
	return []domain.CategoryOption{{ID: "200", Name: "New"}}, nil
}

func (s *gatedSource) CategoryByID(ctx context.Context, id string) (domain.CategoryOption, error) {
	return domain.CategoryOption{ID: id, Name: "Lookup"}, nil
}

func TestResolver_LatestWins(t *testing.T) {
	source := &gatedSource{started: make(chan struct{}), release: make(chan struct{})}
	resolver := NewResolver(source, "", "", nil)

	done := make(chan Resolution)
	go func() {
		done <- resolver.Resolve(context.Background(), "slow", "")
	}()
	<-source.started

	fresh := resolver.Resolve(context.Background(), "fast", "")
	require.False(t, fresh.Stale)

	close(source.release)
	stale := <-done

	assert.True(t, stale.Stale)
	assert.Equal(t, []domain.CategoryOption{{ID: "200", Name: "New"}}, resolver.Options())
	assert.Equal(t, StateReady, resolver.State())
}
