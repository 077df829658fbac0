package sheet

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/showfunnel/internal/fx"
	"github.com/sells-group/showfunnel/internal/model"
	"github.com/sells-group/showfunnel/internal/parse"
)

// RowWidth is the number of columns in the upstream sheet layout.
const RowWidth = 18

// Column positions in the upstream sheet. Reordering columns upstream is a
// breaking change.
const (
	colShowID = iota
	colShowDate
	colReportDate
	colShowName
	colCapacity
	colVenueHolds
	colWheelchair
	colCamera
	colArtistHolds
	colKills
	colYesterdaySales
	colTodaySold
	colSalesToDate
	colTotalSold
	colRemaining
	colSoldPercentage
	colAvgTicketPrice
	colReportMessage
)

var (
	// ErrShortRow is returned for show rows narrower than RowWidth.
	ErrShortRow = eris.New("sheet: short row")
	// ErrMissingIdentity is returned when the show id or name is empty.
	ErrMissingIdentity = eris.New("sheet: missing show id or name")
)

// Builder converts show rows into snapshots.
type Builder struct {
	fx fx.Converter
}

// NewBuilder creates a Builder converting revenue through conv.
func NewBuilder(conv fx.Converter) *Builder {
	return &Builder{fx: conv}
}

// Build maps a show_data row onto a ShowSnapshot. index is the row's position
// in the export; state supplies the month context.
func (b *Builder) Build(ctx context.Context, row []string, index int, state ScanState) (*model.ShowSnapshot, error) {
	if len(row) < RowWidth {
		return nil, eris.Wrapf(ErrShortRow, "row %d has %d cells, want %d", index, len(row), RowWidth)
	}
	cell := func(i int) string { return strings.TrimSpace(row[i]) }

	snap := &model.ShowSnapshot{
		ShowID:     cell(colShowID),
		ShowName:   cell(colShowName),
		ShowDate:   parse.Date(cell(colShowDate)),
		ReportDate: parse.Date(cell(colReportDate)),

		Capacity:             parse.NumericPtr(cell(colCapacity)),
		VenueHolds:           parse.Count(cell(colVenueHolds)),
		WheelchairCompanions: parse.Count(cell(colWheelchair)),
		Camera:               parse.Count(cell(colCamera)),
		ArtistHolds:          parse.Count(cell(colArtistHolds)),
		Kills:                parse.Count(cell(colKills)),

		YesterdaySales: parse.NumericPtr(cell(colYesterdaySales)),
		TodaySold:      parse.NumericPtr(cell(colTodaySold)),
		TotalSold:      parse.NumericPtr(cell(colTotalSold)),
		Remaining:      parse.NumericPtr(cell(colRemaining)),
		SoldPercentage: parse.NumericPtr(cell(colSoldPercentage)),

		ReportMessage: cell(colReportMessage),
		SourceRow:     index,
		Month:         state.Month,
	}
	if snap.ShowID == "" || snap.ShowName == "" {
		return nil, eris.Wrapf(ErrMissingIdentity, "row %d", index)
	}
	if !IsShowID(snap.ShowID) {
		zap.L().Debug("sheet: show id does not follow the CITY_MMDD convention",
			zap.Int("row", index),
			zap.String("show_id", snap.ShowID),
		)
	}

	sales, code := parse.Currency(cell(colSalesToDate))
	snap.SalesCurrency = code
	snap.SalesToDateLocal = sales
	snap.SalesToDate = b.convert(ctx, sales, code)

	atp, atpCode := parse.Currency(cell(colAvgTicketPrice))
	snap.AvgTicketPriceReported = b.convert(ctx, atp, atpCode)

	return snap, nil
}

func (b *Builder) convert(ctx context.Context, amount *float64, code string) *float64 {
	if amount == nil {
		return nil
	}
	if b.fx == nil {
		v := *amount
		return &v
	}
	v := b.fx.Convert(ctx, *amount, code)
	return &v
}
