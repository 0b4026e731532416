package stores

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pricewatch/crawler/internal/domain"
	"github.com/pricewatch/crawler/internal/usecase"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Ctelecom page assumptions:
//   - search: GET /api/component/SearchTermAutoComplete?term=..., JSON Data.Products[].{label,producturl}
//   - product page: input[name=productId], colors in select.km-select-style,
//     warranties as radio items under div.km-product-user-field.km-select-item
//   - each color x warranty is priced by POSTing the warranty radio value to
//     /shoppingcart/productdetails_attributechange, JSON {"price": "12,345,000"}
//
// Prices are displayed in toman and scaled x10 to rial.
const (
	ctelecomPriceScale        = 10
	ctelecomWarrantyField     = "product_attribute_55290"
	ctelecomCombinationWorker = 4
)

// CtelecomAdapter scrapes shop.ctelecom.ir
type CtelecomAdapter struct {
	baseURL string
	fetcher *Fetcher
	matcher *usecase.MatchingService
	scorer  usecase.Scorer
	logger  *zap.Logger
}

// NewCtelecomAdapter creates the ctelecom adapter
func NewCtelecomAdapter(baseURL string, fetcher *Fetcher, matcher *usecase.MatchingService, logger *zap.Logger) *CtelecomAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CtelecomAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: fetcher,
		matcher: matcher,
		scorer:  usecase.ProportionalScorer{WordBonus: 10},
		logger:  logger.With(zap.String("adapter", ModuleCtelecom)),
	}
}

type ctelecomSearchResponse struct {
	Data struct {
		Products []struct {
			Label      string `json:"label"`
			ProductURL string `json:"producturl"`
		} `json:"Products"`
	} `json:"Data"`
}

// Locate searches the autocomplete API and returns the best matching product URL
func (a *CtelecomAdapter) Locate(ctx context.Context, productName string) (string, error) {
	params := url.Values{}
	params.Set("term", usecase.NormalizeDigits(productName))
	reqURL := fmt.Sprintf("%s/api/component/SearchTermAutoComplete?%s", a.baseURL, params.Encode())

	var resp ctelecomSearchResponse
	if err := a.fetcher.GetJSON(ctx, reqURL, &resp); err != nil {
		return "", err
	}

	candidates := make([]domain.MatchCandidate, 0, len(resp.Data.Products))
	for _, p := range resp.Data.Products {
		if p.Label == "" || p.ProductURL == "" {
			continue
		}
		candidates = append(candidates, domain.MatchCandidate{
			Title: p.Label,
			URL:   a.baseURL + p.ProductURL,
		})
	}

	match, err := a.matcher.FindBestMatch(ctx, productName, candidates, a.scorer)
	if errors.Is(err, domain.ErrProductNotFound) {
		a.logger.Debug("no match", zap.String("product", productName), zap.Int("candidates", len(candidates)))
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return match.URL, nil
}

type ctelecomOption struct {
	title string
	value string
}

type ctelecomPriceResponse struct {
	Price string `json:"price"`
}

// ExtractOffers prices every color x warranty combination of the product page
func (a *CtelecomAdapter) ExtractOffers(ctx context.Context, productURL string) ([]domain.PriceOffer, error) {
	doc, err := a.fetcher.GetDocument(ctx, productURL)
	if err != nil {
		return nil, err
	}

	productID := strings.TrimSpace(doc.Find(`input[name="productId"]`).First().AttrOr("value", ""))
	if productID == "" {
		return nil, nil
	}

	colorSelect := doc.Find("select.km-select-style").First()
	if colorSelect.Length() == 0 {
		return nil, nil
	}

	var colors []ctelecomOption
	colorSelect.Find("option").Each(func(_ int, opt *goquery.Selection) {
		o := ctelecomOption{title: cleanText(opt.Text()), value: opt.AttrOr("value", "")}
		if o.title != "" && o.value != "" {
			colors = append(colors, o)
		}
	})

	var warranties []ctelecomOption
	doc.Find("div.km-product-user-field.km-select-item span.km-item").Each(func(_ int, item *goquery.Selection) {
		o := ctelecomOption{
			title: cleanText(item.Find("span.km-title").First().Text()),
			value: item.Find(`input[type="radio"]`).First().AttrOr("value", ""),
		}
		if o.title != "" && o.value != "" {
			warranties = append(warranties, o)
		}
	})

	// slots keep cross-product order regardless of completion order
	slots := make([]*domain.PriceOffer, len(colors)*len(warranties))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ctelecomCombinationWorker)
	for i, color := range colors {
		for j, warranty := range warranties {
			slot := i*len(warranties) + j
			g.Go(func() error {
				price, ok := a.priceCombination(gctx, productID, color, warranty)
				if ok {
					slots[slot] = &domain.PriceOffer{Variant: color.title, Note: warranty.title, Price: price}
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	var offers []domain.PriceOffer
	for _, o := range slots {
		if o != nil {
			offers = append(offers, *o)
		}
	}
	if len(offers) == 0 {
		return nil, nil
	}
	return offers, nil
}

// priceCombination prices one color/warranty pair; failures only drop that pair
func (a *CtelecomAdapter) priceCombination(ctx context.Context, productID string, color, warranty ctelecomOption) (int64, bool) {
	params := url.Values{}
	params.Set("productId", productID)
	params.Set("attributeValueId", color.value)
	params.Set("validateAttributeConditions", "True")
	params.Set("loadPicture", "True")
	reqURL := fmt.Sprintf("%s/shoppingcart/productdetails_attributechange?%s", a.baseURL, params.Encode())

	form := url.Values{}
	form.Set(ctelecomWarrantyField, warranty.value)

	var resp ctelecomPriceResponse
	if err := a.fetcher.PostFormJSON(ctx, reqURL, form, &resp); err != nil {
		a.logger.Warn("price fetch failed",
			zap.String("color", color.title),
			zap.String("warranty", warranty.title),
			zap.Error(err))
		return 0, false
	}

	return parseScaledPrice(resp.Price, ctelecomPriceScale)
}
