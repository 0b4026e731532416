package stores

import (
	"net/http"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/pricewatch/crawler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const moboroozProductPage = `<html><head>
<script type="application/ld+json">
[{"@type":"BreadcrumbList"},
 {"@type":"Product","name":"Galaxy A54",
  "offers":{"@type":"AggregateOffer","offers":[
    {"price":"125000000"},{"price":130000000},{"price":"call"}]}}]
</script>
</head><body>
<select id="variant_id">
  <option>مشکی / گارانتی ۱۸ ماهه</option>
  <option>سفید /</option>
  <option>آبی / گارانتی اصلی</option>
</select>
</body></html>`

func TestMoborooz_Locate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/system/livesearch", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "galaxy a54", r.URL.Query().Get("q"))
		assert.Equal(t, "1", r.URL.Query().Get("ajax"))
		_, _ = w.Write([]byte(`[
			{"mode":"category","title":"Galaxy A54","link":"https://moborooz.com/c/a54"},
			{"mode":"product","title":"Samsung Galaxy A54 128GB","link":"https://moborooz.com/p/a54-128"},
			{"mode":"product","title":"Samsung Galaxy A54 5G","link":"https://moborooz.com/p/a54-5g"}
		]`))
	})
	server := newServer(t, mux)
	adapter := NewMoboroozAdapter(server.URL, newTestFetcher(t, ""), newTestMatcher(), nil)

	got, err := adapter.Locate(ctx(), "  Galaxy A54 ")

	require.NoError(t, err)
	// both contain the query and score the flat 90, so the first product wins
	assert.Equal(t, "https://moborooz.com/p/a54-128", got)
}

func TestMoborooz_Locate_OnlyCategories(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/system/livesearch", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"mode":"category","title":"Galaxy A54","link":"https://moborooz.com/c/a54"}]`))
	})
	server := newServer(t, mux)
	adapter := NewMoboroozAdapter(server.URL, newTestFetcher(t, ""), newTestMatcher(), nil)

	got, err := adapter.Locate(ctx(), "Galaxy A54")

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMoborooz_ExtractOffers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/p/a54", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(moboroozProductPage))
	})
	server := newServer(t, mux)
	adapter := NewMoboroozAdapter(server.URL, newTestFetcher(t, ""), newTestMatcher(), nil)

	offers, err := adapter.ExtractOffers(ctx(), server.URL+"/p/a54")

	require.NoError(t, err)
	assert.Equal(t, []domain.PriceOffer{
		{Variant: "مشکی", Note: "گارانتی ۱۸ ماهه", Price: 125000000},
		{Variant: "سفید", Note: moboroozUnknownNote, Price: 130000000},
	}, offers)
}

func TestParseMoboroozOffers_Degenerate(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"no json-ld", `<html><body><select id="variant_id"><option>a / b</option></select></body></html>`},
		{"invalid json-ld", `<script type="application/ld+json">{not json</script>`},
		{"no product", `<script type="application/ld+json">{"@type":"Organization"}</script>`},
		{"offers not a list", `<script type="application/ld+json">{"@type":"Product","offers":{"price":"1"}}</script>
			<select id="variant_id"><option>a / b</option></select>`},
		{"options without slash", `<script type="application/ld+json">{"@type":"Product","offers":{"offers":[{"price":"1"}]}}</script>
			<select id="variant_id"><option>مشکی</option></select>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			require.NoError(t, err)
			assert.Nil(t, parseMoboroozOffers(doc, zap.NewNop()))
		})
	}
}

func TestParseMoboroozOffers_SingleObject(t *testing.T) {
	html := `<script type="application/ld+json">{"@type":"Product","offers":{"offers":[{"price":"99"}]}}</script>
		<select id="variant_id"><option>قرمز / گارانتی</option></select>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	offers := parseMoboroozOffers(doc, zap.NewNop())

	assert.Equal(t, []domain.PriceOffer{{Variant: "قرمز", Note: "گارانتی", Price: 99}}, offers)
}
