package stores

import (
	"context"
	"errors"
	"testing"

	"github.com/pricewatch/crawler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct{}

func (stubAdapter) Locate(context.Context, string) (string, error) { return "", nil }
func (stubAdapter) ExtractOffers(context.Context, string) ([]domain.PriceOffer, error) {
	return nil, nil
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	r.Register("products.crawlers.stub", stubAdapter{})

	adapter, err := r.Resolve("products.crawlers.stub")
	require.NoError(t, err)
	assert.Equal(t, stubAdapter{}, adapter)
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := NewRegistry()

	adapter, err := r.Resolve("products.crawlers.missing")

	assert.Nil(t, adapter)
	assert.ErrorIs(t, err, domain.ErrUnknownAdapter)

	var unknown *UnknownAdapterError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "products.crawlers.missing", unknown.ModuleID)
	assert.Contains(t, err.Error(), "products.crawlers.missing")
}

func TestNewDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry(Config{
		CtelecomBaseURL: "https://shop.ctelecom.ir",
		MoboroozBaseURL: "https://moborooz.com",
		KalatikBaseURL:  "https://kalatik.com",
	}, nil)

	assert.Equal(t, []string{ModuleCtelecom, ModuleKalatik, ModuleMoborooz}, r.Modules())

	for _, id := range r.Modules() {
		_, err := r.Resolve(id)
		assert.NoError(t, err, id)
	}
}
