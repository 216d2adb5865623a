package table

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geoportal/internal/feature"
)

// ErrExport matches every failed export Result.Err.
var ErrExport = errors.New("export failed")

// Format is an export serialization.
type Format string

const (
	CSV     Format = "csv"
	TSV     Format = "tsv" // spreadsheet-compatible text, saved as .xls
	JSON    Format = "json"
	GeoJSON Format = "geojson"
	XLSX    Format = "xlsx"
)

// Formats lists the supported formats.
var Formats = []Format{CSV, TSV, JSON, GeoJSON, XLSX}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	if f == TSV {
		return ".xls"
	}
	return "." + string(f)
}

// MIME returns the media type of f.
func (f Format) MIME() string {
	switch f {
	case CSV:
		return "text/csv"
	case TSV:
		return "application/vnd.ms-excel"
	case JSON:
		return "application/json"
	case GeoJSON:
		return "application/geo+json"
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

// Mode chooses which rows an export covers.
type Mode string

const (
	Visible  Mode = "visible"  // filtered and sorted
	All      Mode = "all"      // every row, unfiltered
	Selected Mode = "selected" // the selected rows only
)

// Options controls an export.
type Options struct {
	Format Format
	// Filename is the base name without extension. Empty means
	// SuggestFilename(Name).
	Filename string
	// Name labels the data, typically the layer name.
	Name string
	// SheetName is the XLSX sheet; defaults to Name.
	SheetName string
	// Columns to write; defaults to every column in first-seen order.
	Columns []Column
	// Include, when set, keeps only these column keys.
	Include []string
	// Exclude drops these column keys.
	Exclude []string
	// RoundNumbers rounds non-integer numbers to two decimals.
	RoundNumbers bool
	// GeometryColumn is the cell holding GeoJSON geometry text for the
	// GeoJSON format; defaults to "geometry". Rows without it use their
	// own geometry.
	GeometryColumn string
	Now            func() time.Time
}

// Result is the outcome of an export. Failures are reported here; Export
// never panics.
type Result struct {
	OK        bool      `json:"ok"`
	Format    Format    `json:"format"`
	Filename  string    `json:"filename"`
	MIME      string    `json:"mime"`
	Content   []byte    `json:"-"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Err       error     `json:"-"`
}

// Export serializes rows.
func Export(rows []Row, opts Options) (res Result) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	res = Result{Format: opts.Format, MIME: opts.Format.MIME(), Timestamp: now()}
	res.Filename = opts.Filename
	if res.Filename == "" {
		res.Filename = SuggestFilename(opts.Name, res.Timestamp)
	}
	res.Filename += opts.Format.Extension()

	fail := func(err error) Result {
		res.OK, res.Content, res.Count = false, nil, 0
		res.Err = fmt.Errorf("%w: %s: %w", ErrExport, opts.Format, err)
		res.Message = res.Err.Error()
		return res
	}
	defer func() {
		if r := recover(); r != nil {
			res = fail(fmt.Errorf("%v", r))
		}
	}()

	if len(rows) == 0 {
		return fail(errors.New("no records to export"))
	}
	cols := project(opts, rows)
	if len(cols) == 0 {
		return fail(errors.New("no columns to export"))
	}

	var (
		content []byte
		err     error
	)
	switch opts.Format {
	case CSV:
		content, err = encodeCSV(rows, cols, opts)
	case TSV:
		content = encodeTSV(rows, cols, opts)
	case JSON:
		content, err = encodeJSON(rows, cols, opts)
	case GeoJSON:
		content, err = encodeGeoJSON(rows, cols, opts)
	case XLSX:
		content, err = encodeXLSX(rows, cols, opts)
	default:
		err = fmt.Errorf("unsupported format %q", opts.Format)
	}
	if err != nil {
		return fail(err)
	}

	res.OK = true
	res.Content = content
	res.Count = len(rows)
	res.Message = fmt.Sprintf("exported %d records to %s", len(rows), res.Filename)
	return res
}

func project(opts Options, rows []Row) []Column {
	cols := opts.Columns
	if cols == nil {
		cols = Columns(rows)
	}
	return slices.DeleteFunc(slices.Clone(cols), func(c Column) bool {
		if opts.Include != nil && !slices.Contains(opts.Include, c.Key) {
			return true
		}
		return slices.Contains(opts.Exclude, c.Key)
	})
}

func cell(r Row, key string, opts Options) feature.Value {
	v := r.Value(key)
	if n, ok := v.Num(); ok && opts.RoundNumbers && n != math.Trunc(n) {
		return feature.Number(math.Round(n*100) / 100)
	}
	return v
}

func encodeCSV(rows []Row, cols []Column, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	record := make([]string, len(cols))
	for i, c := range cols {
		record[i] = c.Key
	}
	if err := w.Write(record); err != nil {
		return nil, err
	}
	for _, r := range rows {
		for i, c := range cols {
			record[i] = cell(r, c.Key, opts).Text()
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

var tsvCleaner = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ")

func encodeTSV(rows []Row, cols []Column, opts Options) []byte {
	lines := make([]string, 0, len(rows)+1)
	fields := make([]string, len(cols))
	for i, c := range cols {
		fields[i] = tsvCleaner.Replace(c.Key)
	}
	lines = append(lines, strings.Join(fields, "\t"))
	for _, r := range rows {
		for i, c := range cols {
			fields[i] = tsvCleaner.Replace(cell(r, c.Key, opts).Text())
		}
		lines = append(lines, strings.Join(fields, "\t"))
	}
	return []byte(strings.Join(lines, "\n"))
}

func projectCells(r Row, cols []Column, opts Options, skip string) feature.Properties {
	var p feature.Properties
	for _, c := range cols {
		if c.Key == skip {
			continue
		}
		if v, ok := r.Cells.Get(c.Key); ok {
			if opts.RoundNumbers {
				v = cell(r, c.Key, opts)
			}
			p.Set(c.Key, v)
		}
	}
	return p
}

func encodeJSON(rows []Row, cols []Column, opts Options) ([]byte, error) {
	out := make([]feature.Properties, len(rows))
	for i, r := range rows {
		out[i] = projectCells(r, cols, opts, "")
	}
	return json.MarshalIndent(out, "", "  ")
}

type geoFeature struct {
	Type       string             `json:"type"`
	ID         string             `json:"id"`
	Geometry   *geojson.Geometry  `json:"geometry"`
	Properties feature.Properties `json:"properties"`
}

type geoCollection struct {
	Type     string       `json:"type"`
	Features []geoFeature `json:"features"`
}

func encodeGeoJSON(rows []Row, cols []Column, opts Options) ([]byte, error) {
	geomCol := opts.GeometryColumn
	if geomCol == "" {
		geomCol = "geometry"
	}

	fc := geoCollection{Type: "FeatureCollection", Features: make([]geoFeature, 0, len(rows))}
	for i, r := range rows {
		f := geoFeature{
			Type:       "Feature",
			ID:         r.ID,
			Properties: projectCells(r, cols, opts, geomCol),
		}
		g := r.Geometry
		if v, ok := r.Cells.Get(geomCol); ok && !v.IsNull() {
			parsed, err := geojson.UnmarshalGeometry([]byte(v.Text()))
			if err != nil {
				return nil, fmt.Errorf("row %d: %s column: %w", i, geomCol, err)
			}
			g = parsed.Geometry()
		}
		if g != nil {
			f.Geometry = geojson.NewGeometry(g)
		}
		fc.Features = append(fc.Features, f)
	}
	return json.MarshalIndent(fc, "", "  ")
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// SuggestFilename returns "<name>_<yyyy-mm-dd>" with every character
// outside [A-Za-z0-9_-] replaced by an underscore.
func SuggestFilename(name string, at time.Time) string {
	if name == "" {
		name = "attributes"
	}
	return unsafeName.ReplaceAllString(name, "_") + "_" + at.Format("2006-01-02")
}

// DirSink writes export results into a directory.
type DirSink struct {
	Dir string
}

// Deliver writes r to Dir and returns the file path.
func (d DirSink) Deliver(r Result) (string, error) {
	if !r.OK {
		return "", r.Err
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(d.Dir, filepath.Base(r.Filename))
	if err := os.WriteFile(path, r.Content, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
