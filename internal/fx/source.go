package fx

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/showfunnel/internal/fetcher"
	"github.com/sells-group/showfunnel/internal/parse"
)

// HTTPSource reads an open.er-api.com style feed: units of each currency per
// one unit of the base currency.
type HTTPSource struct {
	fetcher fetcher.Fetcher
	url     string
}

// NewHTTPSource creates a source reading url through f.
func NewHTTPSource(f fetcher.Fetcher, url string) *HTTPSource {
	return &HTTPSource{fetcher: f, url: url}
}

type ratesResponse struct {
	Result   string             `json:"result"`
	BaseCode string             `json:"base_code"`
	Rates    map[string]float64 `json:"rates"`
}

// FetchRates downloads the feed and inverts it into reference-currency value
// per unit.
func (s *HTTPSource) FetchRates(ctx context.Context) (map[string]float64, error) {
	body, err := s.fetcher.Download(ctx, s.url)
	if err != nil {
		return nil, eris.Wrap(err, "fx: download rates")
	}
	defer body.Close() //nolint:errcheck

	resp, err := fetcher.DecodeJSONObject[ratesResponse](body)
	if err != nil {
		return nil, eris.Wrap(err, "fx: decode rates")
	}
	if resp.Result != "" && resp.Result != "success" {
		return nil, eris.Errorf("fx: feed returned %q", resp.Result)
	}
	if resp.BaseCode != "" && resp.BaseCode != parse.ReferenceCurrency {
		return nil, eris.Errorf("fx: feed base %s, want %s", resp.BaseCode, parse.ReferenceCurrency)
	}

	out := make(map[string]float64, len(resp.Rates))
	for code, perBase := range resp.Rates {
		if perBase > 0 {
			out[code] = 1 / perBase
		}
	}
	return out, nil
}
