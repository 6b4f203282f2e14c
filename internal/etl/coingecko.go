package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/BartekS5/marketload/pkg/logger"
	"github.com/BartekS5/marketload/pkg/models"
)

const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// CoinGeckoSource fetches a market chart from the CoinGecko REST API.
type CoinGeckoSource struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type CoinGeckoOption func(*CoinGeckoSource)

func WithAPIKey(key string) CoinGeckoOption {
	return func(s *CoinGeckoSource) {
		s.apiKey = key
	}
}

func WithHTTPClient(hc *http.Client) CoinGeckoOption {
	return func(s *CoinGeckoSource) {
		s.httpClient = hc
	}
}

func WithTimeout(d time.Duration) CoinGeckoOption {
	return func(s *CoinGeckoSource) {
		s.httpClient.Timeout = d
	}
}

func NewCoinGeckoSource(baseURL string, opts ...CoinGeckoOption) *CoinGeckoSource {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	s := &CoinGeckoSource{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CoinGeckoSource) Name() string { return "coingecko" }

type marketChart struct {
	Prices       [][]float64 `json:"prices"`
	TotalVolumes [][]float64 `json:"total_volumes"`
	MarketCaps   [][]float64 `json:"market_caps"`
}

// Fetch downloads the chart for params and joins its three series by position.
func (s *CoinGeckoSource) Fetch(ctx context.Context, params models.FetchParams) (*models.RawBatch, error) {
	q := url.Values{}
	q.Set("vs_currency", params.VsCurrency)
	q.Set("days", params.Days)
	if params.Interval != "" {
		q.Set("interval", params.Interval)
	}
	fullURL := fmt.Sprintf("%s/coins/%s/market_chart?%s", s.baseURL, url.PathEscape(params.CoinID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, &FetchError{Source: s.Name(), Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", s.apiKey)
	}

	logger.Infof("Fetching %s/%s market chart (days=%s, interval=%s)", params.CoinID, params.VsCurrency, params.Days, params.Interval)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Source: s.Name(), Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Source: s.Name(), Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode >= 400 {
		return nil, &FetchError{Source: s.Name(), StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", http.StatusText(resp.StatusCode))}
	}

	var chart marketChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, &FetchError{Source: s.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}

	batch, err := chart.toBatch()
	if err != nil {
		return nil, &FetchError{Source: s.Name(), Err: err}
	}
	logger.Infof("Fetched %d observations from %s", len(batch.Rows), s.Name())
	return batch, nil
}

func (c *marketChart) toBatch() (*models.RawBatch, error) {
	n := len(c.Prices)
	if len(c.TotalVolumes) != n || len(c.MarketCaps) != n {
		return nil, fmt.Errorf("series length mismatch: prices=%d volumes=%d market_caps=%d",
			n, len(c.TotalVolumes), len(c.MarketCaps))
	}

	batch := &models.RawBatch{
		Columns: append([]string(nil), models.Columns...),
		Rows:    make([]models.RawRecord, 0, n),
	}
	for i := 0; i < n; i++ {
		if len(c.Prices[i]) < 2 || len(c.TotalVolumes[i]) < 2 || len(c.MarketCaps[i]) < 2 {
			return nil, fmt.Errorf("malformed point at index %d", i)
		}
		batch.Rows = append(batch.Rows, models.RawRecord{
			models.ColTimestamp: time.UnixMilli(int64(c.Prices[i][0])).UTC(),
			models.ColPrice:     c.Prices[i][1],
			models.ColVolume:    c.TotalVolumes[i][1],
			models.ColMarketCap: c.MarketCaps[i][1],
		})
	}
	return batch, nil
}
