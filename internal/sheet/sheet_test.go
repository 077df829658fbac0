package sheet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/showfunnel/internal/fetcher"
)

type fixedRates map[string]float64

func (f fixedRates) Convert(_ context.Context, amount float64, code string) float64 {
	if rate, ok := f[code]; ok {
		return amount * rate
	}
	return amount
}

var wdcRow = []string{
	"WDC_0927", "2025-09-27", "2025-09-01", "27.Washington DC",
	"5000", "100", "20", "10", "50", "0",
	"10", "12", "$60,000", "500", "4500", "10.0%", "$120", "On sale",
}

func row(cells ...string) []string { return cells }

func TestClassify(t *testing.T) {
	wide := append([]string{"Pop-up", "2025-10-04"}, make([]string, 12)...)
	tests := []struct {
		name string
		row  []string
		want RowKind
	}{
		{"month", row("September"), RowMonthHeader},
		{"month with cells", row("October", "", ""), RowMonthHeader},
		{"month lower case", row("september"), RowUnknown},
		{"asterisk month", row("*October*"), RowMonthAsterisk},
		{"show id", wdcRow, RowShowData},
		{"show id with sequence", row("MIA_1010_S2"), RowShowData},
		{"end marker", row("endRow", "x"), RowEndRow},
		{"summary line", row("1200 (+35) 1235"), RowSummaryLine},
		{"header", row("Show ID", "Show Date"), RowHeader},
		{"header in second cell", row("", "Show Date"), RowHeader},
		{"fallback date row", wide, RowShowData},
		{"narrow date row", row("Pop-up", "2025-10-04"), RowUnknown},
		{"lower case id", row("wdc_0927"), RowUnknown},
		{"empty", row(), RowUnknown},
		{"blank cells", row("", "", ""), RowUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.row))
		})
	}
}

func TestClassify_IsTotal(t *testing.T) {
	valid := make(map[RowKind]bool)
	for _, k := range RowKinds() {
		valid[k] = true
	}
	inputs := [][]string{
		nil, {}, {""}, {"x"}, {"*"}, {"**"}, {"endRow"}, {"12 (+1) 3"},
		{"AB_1234"}, {"ABCD_1234"}, {"Show ID"}, {"December"}, {"*December*"},
		wdcRow, {"\x00", "\xff"},
	}
	for _, in := range inputs {
		assert.True(t, valid[Classify(in)], "%q", in)
	}
}

func TestStep_ThreadsMonth(t *testing.T) {
	var st ScanState
	kind, st := Step(st, row("September"))
	assert.Equal(t, RowMonthHeader, kind)
	assert.Equal(t, "September", st.Month)

	_, st = Step(st, row("*October*"))
	assert.Equal(t, "September", st.Month, "asterisk months do not update context")

	_, st = Step(st, wdcRow)
	assert.Equal(t, "September", st.Month)
	assert.False(t, st.Done)

	_, st = Step(st, row("endRow"))
	assert.True(t, st.Done)
}

func TestBuild_Scenario(t *testing.T) {
	b := NewBuilder(fixedRates{})
	snap, err := b.Build(context.Background(), wdcRow, 4, ScanState{Month: "September"})
	require.NoError(t, err)

	assert.Equal(t, "WDC_0927", snap.ShowID)
	assert.Equal(t, "27.Washington DC", snap.ShowName)
	require.NotNil(t, snap.ShowDate)
	assert.Equal(t, time.Date(2025, 9, 27, 0, 0, 0, 0, time.UTC), *snap.ShowDate)
	assert.Equal(t, 5000.0, *snap.Capacity)
	assert.Equal(t, 100, *snap.VenueHolds)
	assert.Equal(t, 0, *snap.Kills)
	assert.Equal(t, 500.0, *snap.TotalSold)
	assert.Equal(t, 4500.0, *snap.Remaining)
	assert.Equal(t, 10.0, *snap.SoldPercentage)
	assert.Equal(t, 60000.0, *snap.SalesToDate)
	assert.Equal(t, "USD", snap.SalesCurrency)
	assert.Equal(t, 120.0, *snap.AvgTicketPriceReported)
	assert.Equal(t, "On sale", snap.ReportMessage)
	assert.Equal(t, 4, snap.SourceRow)
	assert.Equal(t, "September", snap.Month)
}

func TestBuild_ConvertsForeignRevenue(t *testing.T) {
	r := append([]string(nil), wdcRow...)
	r[0] = "SAO_1012"
	r[12] = "R$ 10.000,00"
	r[16] = "R$ 50,00"

	snap, err := NewBuilder(fixedRates{"BRL": 0.2}).Build(context.Background(), r, 0, ScanState{})
	require.NoError(t, err)
	assert.Equal(t, "BRL", snap.SalesCurrency)
	assert.InDelta(t, 10000.0, *snap.SalesToDateLocal, 1e-9)
	assert.InDelta(t, 2000.0, *snap.SalesToDate, 1e-9)
	assert.InDelta(t, 10.0, *snap.AvgTicketPriceReported, 1e-9)
}

func TestBuild_NullsAreNotZero(t *testing.T) {
	r := append([]string(nil), wdcRow...)
	r[5], r[10], r[12] = "", "n/a", ""

	snap, err := NewBuilder(nil).Build(context.Background(), r, 0, ScanState{})
	require.NoError(t, err)
	assert.Nil(t, snap.VenueHolds)
	assert.Nil(t, snap.YesterdaySales)
	assert.Nil(t, snap.SalesToDate)
	assert.NotNil(t, snap.Kills)
}

func TestBuild_ShortRow(t *testing.T) {
	for width := range RowWidth {
		snap, err := NewBuilder(nil).Build(context.Background(), wdcRow[:width], 0, ScanState{})
		assert.Nil(t, snap)
		assert.True(t, errors.Is(err, ErrShortRow), "width %d", width)
	}
}

func TestBuild_MissingIdentity(t *testing.T) {
	r := append([]string(nil), wdcRow...)
	r[3] = "  "
	_, err := NewBuilder(nil).Build(context.Background(), r, 0, ScanState{})
	assert.True(t, errors.Is(err, ErrMissingIdentity))
}

const sampleExport = "\ufeffShow ID,Show Date,Report Date,Show Name,Capacity,Venue Holds,WC,Camera,Artist,Kills,Yesterday,Today,Sales,Sold,Remaining,Pct,ATP,Message\n" +
	"September,,,,,,,,,,,,,,,,,\n" +
	"WDC_0927,2025-09-27,2025-09-01,27.Washington DC,5000,100,20,10,50,0,10,12,\"$60,000\",500,4500,10.0%,$120,On sale\n" +
	"WDC_0927,2025-09-27,2025-09-02,27.Washington DC,5000,100,20,10,50,0,12,30,\"$63,600\",530,4470,10.6%,$120,\n" +
	"*October*,,,,,,,,,,,,,,,,,\n" +
	"October,,,,,,,,,,,,,,,,,\n" +
	"MIA_1010_S2,2025-10-10,2025-09-02,10.Miami,800\n" +
	"1200 (+35) 1235,,,,,,,,,,,,,,,,,\n" +
	"BOS_1004,2025-10-04,2025-09-02,04.Boston,1000,,,,,,5,5,\"$2,000\",40,960,4%,$50,\n" +
	"endRow,,,,,,,,,,,,,,,,,\n" +
	"NYC_1101,2025-11-01,2025-09-02,01.New York,9000,,,,,,1,1,$10,1,8999,0%,$10,\n"

func TestParse(t *testing.T) {
	p := NewParser(NewBuilder(nil))
	res, err := p.Parse(context.Background(), strings.NewReader(sampleExport))
	require.NoError(t, err)

	require.Len(t, res.Snapshots, 3)
	assert.Equal(t, "WDC_0927", res.Snapshots[0].ShowID)
	assert.Equal(t, "September", res.Snapshots[0].Month)
	assert.Equal(t, 2, res.Snapshots[0].SourceRow)
	assert.Equal(t, 3, res.Snapshots[1].SourceRow)
	assert.Equal(t, "BOS_1004", res.Snapshots[2].ShowID)
	assert.Equal(t, "October", res.Snapshots[2].Month)

	assert.True(t, res.Stats.Terminated)
	assert.Equal(t, 1, res.Stats.ShortRows)
	assert.Equal(t, 3, res.Stats.Snapshots)
	assert.Equal(t, 1, res.Stats.Kinds[RowHeader])
	assert.Equal(t, 1, res.Stats.Kinds[RowSummaryLine])
	assert.Equal(t, 1, res.Stats.Kinds[RowMonthAsterisk])
	assert.Equal(t, 2, res.Stats.Kinds[RowMonthHeader])
	assert.Equal(t, 4, res.Stats.Kinds[RowShowData])
	assert.Equal(t, 0, res.Stats.Kinds[RowUnknown])
	for _, s := range res.Snapshots {
		assert.NotEqual(t, "NYC_1101", s.ShowID, "rows after endRow are ignored")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestParse_ReadFailure(t *testing.T) {
	p := NewParser(NewBuilder(nil))
	_, err := p.Parse(context.Background(), failingReader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}

type stubFetcher struct {
	calls atomic.Int32
	body  string
	etag  string
	err   error
}

func (s *stubFetcher) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	rc, _, _, err := s.DownloadIfChanged(ctx, url, "")
	return rc, err
}

func (s *stubFetcher) DownloadIfChanged(_ context.Context, _ string, etag string) (io.ReadCloser, string, bool, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, "", false, s.err
	}
	if etag != "" && etag == s.etag {
		return nil, etag, false, nil
	}
	return io.NopCloser(strings.NewReader(s.body)), s.etag, true, nil
}

func TestLoader_BytesSource(t *testing.T) {
	l := NewLoader(nil, nil, time.Second)
	res, err := l.Load(context.Background(), BytesSource("upload.csv", []byte(sampleExport)))
	require.NoError(t, err)
	assert.Len(t, res.Snapshots, 3)

	_, err = l.Load(context.Background(), BytesSource("empty.csv", nil))
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestLoader_URLSourceReusesUnchangedPayload(t *testing.T) {
	f := &stubFetcher{body: sampleExport, etag: `"v1"`}
	l := NewLoader(f, nil, time.Second)

	first, err := l.Load(context.Background(), URLSource("https://sheets.example/export"))
	require.NoError(t, err)
	second, err := l.Load(context.Background(), URLSource("https://sheets.example/export"))
	require.NoError(t, err)

	assert.Equal(t, int32(2), f.calls.Load())
	assert.Equal(t, first.Snapshots, second.Snapshots)
}

func TestLoader_TransportFailureIsNoData(t *testing.T) {
	l := NewLoader(&stubFetcher{err: fmt.Errorf("connection refused")}, nil, time.Second)
	_, err := l.Load(context.Background(), URLSource("https://sheets.example/export"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoData))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLoader_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(sampleExport))
	}))
	defer srv.Close()

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{BackoffBase: time.Millisecond})
	res, err := NewLoader(f, nil, 5*time.Second).Load(context.Background(), URLSource(srv.URL))
	require.NoError(t, err)
	assert.Len(t, res.Snapshots, 3)
}
