package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pricewatch/crawler/internal/domain"
	"github.com/pricewatch/crawler/internal/usecase"
	"go.uber.org/zap"
)

// Moborooz page assumptions:
//   - search: GET /api/system/livesearch?q=<lowercased name>&ajax=1, JSON array of {mode,title,link}
//   - product page: JSON-LD Product with offers.offers[], aligned by position
//     with the options of select#variant_id ("color / warranty")
//
// JSON-LD prices are already in rial, so the scale is 1.
const (
	moboroozPriceScale  = 1
	moboroozUnknownNote = "نامشخص"
)

// MoboroozAdapter scrapes moborooz.com
type MoboroozAdapter struct {
	baseURL string
	fetcher *Fetcher
	matcher *usecase.MatchingService
	scorer  usecase.Scorer
	logger  *zap.Logger
}

// NewMoboroozAdapter creates the moborooz adapter
func NewMoboroozAdapter(baseURL string, fetcher *Fetcher, matcher *usecase.MatchingService, logger *zap.Logger) *MoboroozAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MoboroozAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: fetcher,
		matcher: matcher,
		scorer:  usecase.FlatScorer{Containment: 90, WordBonus: 10},
		logger:  logger.With(zap.String("adapter", ModuleMoborooz)),
	}
}

type moboroozSearchItem struct {
	Mode  string `json:"mode"`
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Locate queries the live-search endpoint and keeps product hits only
func (a *MoboroozAdapter) Locate(ctx context.Context, productName string) (string, error) {
	params := url.Values{}
	params.Set("q", strings.ToLower(strings.TrimSpace(productName)))
	params.Set("ajax", "1")
	reqURL := fmt.Sprintf("%s/api/system/livesearch?%s", a.baseURL, params.Encode())

	var items []moboroozSearchItem
	if err := a.fetcher.GetJSON(ctx, reqURL, &items); err != nil {
		return "", err
	}

	var candidates []domain.MatchCandidate
	for _, item := range items {
		if item.Mode != "product" {
			continue
		}
		candidates = append(candidates, domain.MatchCandidate{Title: item.Title, URL: item.Link})
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

// ExtractOffers reads the JSON-LD offer list and labels it with the variant selector
func (a *MoboroozAdapter) ExtractOffers(ctx context.Context, productURL string) ([]domain.PriceOffer, error) {
	doc, err := a.fetcher.GetDocument(ctx, productURL)
	if err != nil {
		return nil, err
	}

	return parseMoboroozOffers(doc, a.logger), nil
}

func parseMoboroozOffers(doc *goquery.Document, logger *zap.Logger) []domain.PriceOffer {
	script := strings.TrimSpace(doc.Find(`script[type="application/ld+json"]`).First().Text())
	if script == "" {
		return nil
	}

	var data interface{}
	if err := json.Unmarshal([]byte(script), &data); err != nil {
		logger.Debug("invalid json-ld", zap.Error(err))
		return nil
	}

	product := findLDProduct(data)
	if product == nil {
		return nil
	}

	offersObj, _ := product["offers"].(map[string]interface{})
	offers, ok := offersObj["offers"].([]interface{})
	if !ok {
		return nil
	}

	var result []domain.PriceOffer
	doc.Find("select#variant_id option").Each(func(idx int, opt *goquery.Selection) {
		text := cleanText(opt.Text())
		if !strings.Contains(text, "/") {
			return
		}

		var parts []string
		for _, p := range strings.Split(text, "/") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 || idx >= len(offers) {
			return
		}

		note := moboroozUnknownNote
		if len(parts) > 1 {
			note = parts[1]
		}

		offer, _ := offers[idx].(map[string]interface{})
		price, ok := jsonPrice(offer["price"])
		if !ok {
			return
		}

		result = append(result, domain.PriceOffer{
			Variant: parts[0],
			Note:    note,
			Price:   price * moboroozPriceScale,
		})
	})

	return result
}

// findLDProduct returns the first schema.org Product in a JSON-LD payload
func findLDProduct(data interface{}) map[string]interface{} {
	switch v := data.(type) {
	case []interface{}:
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok && m["@type"] == "Product" {
				return m
			}
		}
	case map[string]interface{}:
		if v["@type"] == "Product" {
			return v
		}
	}
	return nil
}
