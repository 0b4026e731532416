package usecase

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/pricewatch/crawler/internal/domain"
	"go.uber.org/zap"
)

// exactMatchScore is the top of every scorer's scale
const exactMatchScore = 100.0

// Scorer rates how well a candidate title matches a query. Scores are only
// compared within one adapter's candidate set, so every adapter keeps its own
// scorer and the scales need not agree.
type Scorer interface {
	Score(query, title string) float64
}

// ProportionalScorer rewards containment by how much of the title the query covers.
// Without containment every query word found anywhere in the title adds WordBonus.
type ProportionalScorer struct {
	WordBonus float64
}

// Score implements Scorer
func (s ProportionalScorer) Score(query, title string) float64 {
	q := NormalizeTitle(query)
	t := NormalizeTitle(title)
	if q == "" || t == "" {
		return 0
	}

	if q == t {
		return exactMatchScore
	}
	if strings.Contains(t, q) {
		return float64(utf8.RuneCountInString(q)) / float64(utf8.RuneCountInString(t)) * exactMatchScore
	}

	score := 0.0
	for _, word := range strings.Fields(q) {
		if strings.Contains(t, word) {
			score += s.WordBonus
		}
	}
	return score
}

// FlatScorer gives every containing title the same Containment score, so the
// first containing candidate wins. Without containment each query word that
// equals a title word adds WordBonus (zero disables word overlap).
type FlatScorer struct {
	Containment float64
	WordBonus   float64
}

// Score implements Scorer
func (s FlatScorer) Score(query, title string) float64 {
	q := NormalizeTitle(query)
	t := NormalizeTitle(title)
	if q == "" || t == "" {
		return 0
	}

	if q == t {
		return exactMatchScore
	}
	if strings.Contains(t, q) {
		return s.Containment
	}
	if s.WordBonus == 0 {
		return 0
	}

	titleWords := make(map[string]bool)
	for _, w := range strings.Fields(t) {
		titleWords[w] = true
	}

	score := 0.0
	for _, word := range strings.Fields(q) {
		if titleWords[word] {
			score += s.WordBonus
		}
	}
	return score
}

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	EnableDebugLogging bool
}

// MatchingService picks the best search candidate for a product name
type MatchingService struct {
	logger             *zap.Logger
	enableDebugLogging bool
}

// NewMatchingService creates a new matching service with the given configuration
func NewMatchingService(config MatchConfig, logger *zap.Logger) *MatchingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchingService{
		logger:             logger.Named("match"),
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// FindBestMatch scores every candidate and keeps the strict maximum above zero;
// on ties the first candidate seen wins. Candidates without a title or URL are
// skipped rather than scored. Returns ErrProductNotFound when nothing beat zero.
func (s *MatchingService) FindBestMatch(
	ctx context.Context,
	query string,
	candidates []domain.MatchCandidate,
	scorer Scorer,
) (*domain.MatchResult, error) {
	if strings.TrimSpace(query) == "" || scorer == nil {
		return nil, domain.ErrInvalidRequest
	}

	var best *domain.MatchResult
	highestScore := 0.0

	for _, c := range candidates {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if c.Title == "" || c.URL == "" {
			continue
		}

		score := scorer.Score(query, c.Title)
		if s.enableDebugLogging {
			s.logger.Debug("candidate scored",
				zap.String("query", query),
				zap.String("title", c.Title),
				zap.Float64("score", score))
		}

		if score > highestScore {
			highestScore = score
			best = &domain.MatchResult{Title: c.Title, URL: c.URL, Score: score}
		}
	}

	if best == nil {
		return nil, domain.ErrProductNotFound
	}

	if s.enableDebugLogging {
		s.logger.Debug("best match", zap.String("title", best.Title), zap.Float64("score", best.Score))
	}

	return best, nil
}
