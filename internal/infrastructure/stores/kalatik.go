package stores

import (
	"context"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pricewatch/crawler/internal/domain"
	"github.com/pricewatch/crawler/internal/usecase"
	"go.uber.org/zap"
)

// Kalatik page assumptions:
//   - search: POST {"keyword": name} to /product/index (or a same-origin
//     proxy of it), HTML cards div.item-content with the first <a> as title/link
//   - product page: one price in #price .price-value for the selected
//     guarantee (.btn-select-radio.active), colors as .btn-select-combination-color
//
// The page forbids cross-origin reads, so it may be fetched through the
// fetcher's CORS proxy. Prices are in toman and scaled x10 to rial.
const kalatikPriceScale = 10

// KalatikAdapter scrapes kalatik.com
type KalatikAdapter struct {
	baseURL   string
	searchURL string
	fetcher   *Fetcher
	matcher   *usecase.MatchingService
	scorer    usecase.Scorer
	logger    *zap.Logger
}

// NewKalatikAdapter creates the kalatik adapter. searchURL defaults to baseURL + "/product/index".
func NewKalatikAdapter(baseURL, searchURL string, fetcher *Fetcher, matcher *usecase.MatchingService, logger *zap.Logger) *KalatikAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if searchURL == "" {
		searchURL = baseURL + "/product/index"
	}
	return &KalatikAdapter{
		baseURL:   baseURL,
		searchURL: searchURL,
		fetcher:   fetcher,
		matcher:   matcher,
		scorer:    usecase.FlatScorer{Containment: 80},
		logger:    logger.With(zap.String("adapter", ModuleKalatik)),
	}
}

// Locate posts the keyword search and scores the result cards
func (a *KalatikAdapter) Locate(ctx context.Context, productName string) (string, error) {
	doc, err := a.fetcher.PostJSONDocument(ctx, a.searchURL, map[string]string{"keyword": productName})
	if err != nil {
		return "", err
	}

	var candidates []domain.MatchCandidate
	doc.Find("div.item-content").Each(func(_ int, card *goquery.Selection) {
		link := card.Find("a").First()
		if link.Length() == 0 {
			return
		}
		candidates = append(candidates, domain.MatchCandidate{
			Title: cleanText(link.Text()),
			URL:   link.AttrOr("href", ""),
		})
	})

	match, err := a.matcher.FindBestMatch(ctx, productName, candidates, a.scorer)
	if errors.Is(err, domain.ErrProductNotFound) {
		a.logger.Debug("no match", zap.String("product", productName), zap.Int("candidates", len(candidates)))
		return "", nil
	}
	if err != nil {
		return "", err
	}

	if strings.HasPrefix(match.URL, "/") {
		return a.baseURL + match.URL, nil
	}
	return match.URL, nil
}

// ExtractOffers emits one offer per color, all sharing the displayed price and guarantee
func (a *KalatikAdapter) ExtractOffers(ctx context.Context, productURL string) ([]domain.PriceOffer, error) {
	doc, err := a.fetcher.GetDocument(ctx, a.fetcher.Proxied(productURL))
	if err != nil {
		return nil, err
	}

	return parseKalatikOffers(doc), nil
}

func parseKalatikOffers(doc *goquery.Document) []domain.PriceOffer {
	guarantee := cleanText(doc.Find(".btn-select-radio.active .combination-name").First().Text())

	priceText := usecase.NormalizeDigits(strings.ReplaceAll(doc.Find("#price .price-value").First().Text(), ",", ""))
	priceText = strings.TrimSpace(priceText)
	if priceText == "" || digitsOnly(priceText) != priceText {
		return nil
	}
	price, ok := parseScaledPrice(priceText, kalatikPriceScale)
	if !ok || price == 0 {
		return nil
	}

	var offers []domain.PriceOffer
	doc.Find(".btn-select-combination-color").Each(func(_ int, btn *goquery.Selection) {
		color := cleanText(btn.Find(".combination-name").First().Text())
		if color == "" {
			return
		}
		offers = append(offers, domain.PriceOffer{Variant: color, Note: guarantee, Price: price})
	})

	return offers
}
