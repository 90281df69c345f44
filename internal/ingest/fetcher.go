package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/topiclab/topicbot/internal/domain"
	"github.com/topiclab/topicbot/internal/platform/polymarket"
)

// marketAPI is the slice of the Gamma client the fetcher needs.
type marketAPI interface {
	GetMarkets(ctx context.Context, limit, offset int) ([]polymarket.APIMarket, error)
	GetClosedMarkets(ctx context.Context, limit, offset int) ([]polymarket.APIMarket, error)
}

// MarketFetcher pages through the Gamma API and converts responses to domain
// markets, dropping those below the liquidity floor. It satisfies the signal
// monitor's market source.
type MarketFetcher struct {
	api          marketAPI
	perPage      int
	maxPages     int
	minLiquidity float64
	logger       *slog.Logger
}

// NewMarketFetcher creates a fetcher with the given paging parameters.
func NewMarketFetcher(api marketAPI, perPage, maxPages int, minLiquidity float64, logger *slog.Logger) *MarketFetcher {
	if perPage <= 0 {
		perPage = 100
	}
	if maxPages <= 0 {
		maxPages = 50
	}
	return &MarketFetcher{
		api:          api,
		perPage:      perPage,
		maxPages:     maxPages,
		minLiquidity: minLiquidity,
		logger:       logger.With(slog.String("component", "market_fetcher")),
	}
}

// FetchMarkets returns the current market universe, paging until a short page
// or the page cap.
func (f *MarketFetcher) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	return f.fetch(ctx, f.api.GetMarkets, 0)
}

// FetchClosedMarkets returns up to max resolved markets for graph builds and
// backtests. max <= 0 means no cap beyond the page limit.
func (f *MarketFetcher) FetchClosedMarkets(ctx context.Context, max int) ([]domain.Market, error) {
	return f.fetch(ctx, f.api.GetClosedMarkets, max)
}

func (f *MarketFetcher) fetch(ctx context.Context, page func(context.Context, int, int) ([]polymarket.APIMarket, error), max int) ([]domain.Market, error) {
	var out []domain.Market
	for i := 0; i < f.maxPages; i++ {
		apiMarkets, err := page(ctx, f.perPage, i*f.perPage)
		if err != nil {
			return nil, fmt.Errorf("ingest: fetch page %d: %w", i, err)
		}

		for _, am := range apiMarkets {
			m := am.ToDomainMarket()
			if m.ID == "" || m.Liquidity < f.minLiquidity {
				continue
			}
			out = append(out, m)
			if max > 0 && len(out) >= max {
				f.logger.DebugContext(ctx, "fetch capped", slog.Int("markets", len(out)))
				return out, nil
			}
		}

		if len(apiMarkets) < f.perPage {
			break
		}
	}
	f.logger.DebugContext(ctx, "markets fetched", slog.Int("count", len(out)))
	return out, nil
}
