package adreport

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/showfunnel/internal/model"
)

// DefaultMaxConcurrentFiles bounds parallel file parsing when no limit is
// configured.
const DefaultMaxConcurrentFiles = 4

// Upload is one ad report file.
type Upload struct {
	Name string
	Data []byte
}

// FileError records a file that could not be read. Other files in the same
// upload are unaffected.
type FileError struct {
	File string `json:"file"`
	Err  error  `json:"-"`
}

func (e *FileError) Error() string {
	return fmt.Sprintf("adreport: %s: %v", e.File, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// MissingTypesError reports required dataset types absent from an upload.
// It accompanies a usable partial result.
type MissingTypesError struct {
	Missing []model.DatasetType
}

func (e *MissingTypesError) Error() string {
	names := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		names[i] = string(m)
	}
	return "adreport: missing report types: " + strings.Join(names, ", ")
}

// UploadResult is the normalized content of an upload.
type UploadResult struct {
	Tables     map[model.DatasetType]*model.AdTable `json:"tables"`
	Detections map[string]Detection                 `json:"detections"`
	Missing    []model.DatasetType                  `json:"missing_types"`
	Issues     []ValidationIssue                    `json:"issues,omitempty"`
	FileErrors []*FileError                         `json:"-"`
}

// Records returns the records of one dataset type, or nil.
func (r *UploadResult) Records(dt model.DatasetType) []model.AdRecord {
	if t, ok := r.Tables[dt]; ok {
		return t.Records
	}
	return nil
}

// Processor normalizes ad report uploads.
type Processor struct {
	resolver      *Resolver
	maxConcurrent int
}

// NewProcessor creates a Processor. A nil resolver uses the built-in
// aliases; maxConcurrent <= 0 uses DefaultMaxConcurrentFiles.
func NewProcessor(r *Resolver, maxConcurrent int) *Processor {
	if r == nil {
		r = NewResolver()
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentFiles
	}
	return &Processor{resolver: r, maxConcurrent: maxConcurrent}
}

type parsedFile struct {
	name      string
	headers   []string
	records   []model.AdRecord
	detection Detection
	err       error
}

// Process reads every upload in parallel, then groups the tables by dataset
// type in input order. When a required type is missing the result is
// returned together with a *MissingTypesError.
func (p *Processor) Process(ctx context.Context, uploads []Upload) (*UploadResult, error) {
	parsed := make([]parsedFile, len(uploads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrent)
	for i, up := range uploads {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parsed[i] = p.parseFile(gctx, up)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "adreport: process uploads")
	}

	res := &UploadResult{
		Tables:     make(map[model.DatasetType]*model.AdTable),
		Detections: make(map[string]Detection),
	}
	for _, pf := range parsed {
		if pf.err != nil {
			zap.L().Warn("adreport: skipping unreadable file", zap.String("file", pf.name), zap.Error(pf.err))
			res.FileErrors = append(res.FileErrors, &FileError{File: pf.name, Err: pf.err})
			continue
		}
		res.Detections[pf.name] = pf.detection
		res.addTable(pf)
	}

	for _, dt := range model.RequiredDatasets() {
		t, ok := res.Tables[dt]
		if !ok {
			res.Missing = append(res.Missing, dt)
			continue
		}
		if issue := Validate(t); issue != nil {
			zap.L().Warn("adreport: table is missing required columns",
				zap.String("type", string(dt)),
				zap.Strings("missing", issue.Missing),
			)
			res.Issues = append(res.Issues, *issue)
		}
	}

	zap.L().Info("adreport: processed uploads",
		zap.Int("files", len(uploads)),
		zap.Int("tables", len(res.Tables)),
		zap.Int("file_errors", len(res.FileErrors)),
	)
	if len(res.Missing) > 0 {
		return res, &MissingTypesError{Missing: res.Missing}
	}
	return res, nil
}

func (r *UploadResult) addTable(pf parsedFile) {
	t, ok := r.Tables[pf.detection.Type]
	if !ok {
		t = &model.AdTable{Type: pf.detection.Type}
		r.Tables[pf.detection.Type] = t
	}
	for _, h := range pf.headers {
		if h != "" && !slices.Contains(t.Headers, h) {
			t.Headers = append(t.Headers, h)
		}
	}
	t.Records = append(t.Records, pf.records...)
	t.Files = append(t.Files, pf.name)
}

func (p *Processor) parseFile(ctx context.Context, up Upload) parsedFile {
	pf := parsedFile{name: up.Name}

	rows, err := ReadRows(ctx, up.Name, up.Data)
	if err != nil {
		pf.err = err
		return pf
	}
	raw, body, err := splitHeader(rows)
	if err != nil {
		pf.err = err
		return pf
	}

	pf.headers = p.resolver.Resolve(raw)
	pf.detection = DetectTable(pf.headers, up.Name)
	if pf.detection.FromFilename {
		zap.L().Info("adreport: dataset type inferred from file name",
			zap.String("file", up.Name),
			zap.String("type", string(pf.detection.Type)),
		)
	}

	columns := make(map[string]bool, len(pf.headers))
	for _, h := range pf.headers {
		columns[h] = true
	}
	pf.records = BuildRecords(pf.headers, body, up.Name)
	for i := range pf.records {
		FillKPIs(&pf.records[i], columns)
	}
	return pf
}
