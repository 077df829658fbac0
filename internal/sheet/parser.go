package sheet

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/showfunnel/internal/fetcher"
	"github.com/sells-group/showfunnel/internal/model"
)

// Stats counts what a parse saw.
type Stats struct {
	Rows            int             `json:"rows"`
	Kinds           map[RowKind]int `json:"kinds"`
	Snapshots       int             `json:"snapshots"`
	ShortRows       int             `json:"short_rows"`
	MissingIdentity int             `json:"missing_identity"`
	Terminated      bool            `json:"terminated"`
}

// ParseResult is the outcome of parsing one sheet export.
type ParseResult struct {
	Snapshots []model.ShowSnapshot `json:"snapshots"`
	Stats     Stats                `json:"stats"`
}

// Parser folds sheet rows into snapshots.
type Parser struct {
	builder *Builder
}

// NewParser creates a Parser using b to build snapshots.
func NewParser(b *Builder) *Parser {
	return &Parser{builder: b}
}

// Parse reads a CSV export. Malformed rows are skipped and counted; only a
// CSV read failure is returned as an error, alongside the rows parsed so far.
func (p *Parser) Parse(ctx context.Context, r io.Reader) (*ParseResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{LazyQuotes: true})

	res := &ParseResult{Stats: Stats{Kinds: make(map[RowKind]int)}}
	var state ScanState
	index := -1
	for row := range rowCh {
		index++
		if state.Done {
			continue // drain after endRow
		}

		var kind RowKind
		kind, state = Step(state, row)
		res.Stats.Rows++
		res.Stats.Kinds[kind]++

		switch kind {
		case RowEndRow:
			res.Stats.Terminated = true
			cancel()
		case RowShowData:
			snap, err := p.builder.Build(ctx, row, index, state)
			if err != nil {
				p.recordSkip(&res.Stats, index, row, err)
				continue
			}
			res.Snapshots = append(res.Snapshots, *snap)
		case RowUnknown:
			if !blank(row) {
				zap.L().Debug("sheet: skipping unclassified row",
					zap.Int("row", index),
					zap.String("first_cell", firstCell(row)),
					zap.Int("cells", len(row)),
				)
			}
		}
	}

	res.Stats.Snapshots = len(res.Snapshots)
	if err := <-errCh; err != nil && !state.Done {
		return res, eris.Wrap(err, "sheet: read export")
	}
	return res, nil
}

func (p *Parser) recordSkip(stats *Stats, index int, row []string, err error) {
	switch {
	case errors.Is(err, ErrShortRow):
		stats.ShortRows++
		zap.L().Warn("sheet: skipping short show row",
			zap.Int("row", index),
			zap.String("first_cell", firstCell(row)),
			zap.Int("cells", len(row)),
		)
	case errors.Is(err, ErrMissingIdentity):
		stats.MissingIdentity++
		zap.L().Warn("sheet: skipping show row without id or name", zap.Int("row", index))
	default:
		zap.L().Warn("sheet: skipping show row", zap.Int("row", index), zap.Error(err))
	}
}

func firstCell(row []string) string {
	if len(row) == 0 {
		return ""
	}
	return row[0]
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
