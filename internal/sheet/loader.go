package sheet

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/showfunnel/internal/fetcher"
	"github.com/sells-group/showfunnel/internal/fx"
)

// ErrNoData is returned when the sheet could not be read at all.
var ErrNoData = eris.New("sheet: no data available")

const maxPayload = 64 << 20

// Source is where a sheet export comes from: a URL or an in-memory buffer.
type Source struct {
	URL  string
	Name string
	Data []byte
}

// URLSource reads the export from url.
func URLSource(url string) Source {
	return Source{URL: url, Name: url}
}

// BytesSource reads the export from data, e.g. an uploaded file.
func BytesSource(name string, data []byte) Source {
	return Source{Name: name, Data: data}
}

// Loader fetches and parses sheet exports. Remote payloads are cached by
// ETag so repeated refreshes of an unchanged sheet skip the download.
type Loader struct {
	fetcher fetcher.Fetcher
	parser  *Parser
	timeout time.Duration

	mu      sync.Mutex
	lastURL string
	etag    string
	payload []byte
}

// NewLoader creates a Loader. timeout bounds each remote fetch.
func NewLoader(f fetcher.Fetcher, conv fx.Converter, timeout time.Duration) *Loader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Loader{
		fetcher: f,
		parser:  NewParser(NewBuilder(conv)),
		timeout: timeout,
	}
}

// Load reads src and parses it.
func (l *Loader) Load(ctx context.Context, src Source) (*ParseResult, error) {
	data, err := l.read(ctx, src)
	if err != nil {
		return nil, err
	}
	res, err := l.parser.Parse(ctx, bytes.NewReader(data))
	if err != nil {
		return res, err
	}
	zap.L().Info("sheet: parsed export",
		zap.String("source", src.Name),
		zap.Int("rows", res.Stats.Rows),
		zap.Int("snapshots", res.Stats.Snapshots),
		zap.Int("short_rows", res.Stats.ShortRows),
	)
	return res, nil
}

func (l *Loader) read(ctx context.Context, src Source) ([]byte, error) {
	if src.URL == "" {
		if len(src.Data) == 0 {
			return nil, eris.Wrapf(ErrNoData, "empty buffer %q", src.Name)
		}
		return src.Data, nil
	}
	if l.fetcher == nil {
		return nil, eris.Wrap(ErrNoData, "no fetcher configured")
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	l.mu.Lock()
	etag := ""
	if l.lastURL == src.URL {
		etag = l.etag
	}
	l.mu.Unlock()

	body, newETag, changed, err := l.fetcher.DownloadIfChanged(ctx, src.URL, etag)
	if err != nil {
		return nil, eris.Wrapf(ErrNoData, "fetch %s: %v", src.URL, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !changed {
		zap.L().Debug("sheet: export unchanged, reusing cached payload", zap.String("etag", etag))
		return l.payload, nil
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(body, maxPayload))
	if err != nil {
		return nil, eris.Wrapf(ErrNoData, "read %s: %v", src.URL, err)
	}
	if len(data) == 0 {
		return nil, eris.Wrapf(ErrNoData, "empty response from %s", src.URL)
	}

	l.lastURL = src.URL
	l.etag = newETag
	l.payload = data
	return data, nil
}
