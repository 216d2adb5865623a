// Package source resolves a layer to its feature collection: the remote
// feature service first, then the bundled fallback file. Every feature is
// reprojected to the display reference before it is returned.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joeblew999/geoportal/internal/catalog"
	"github.com/joeblew999/geoportal/internal/crs"
	"github.com/joeblew999/geoportal/internal/feature"
)

// Origin tells where a result's features came from.
type Origin string

const (
	OriginRemote   Origin = "remote"
	OriginFallback Origin = "fallback"
	OriginNone     Origin = "none"
)

// ErrDataUnavailable matches any *UnavailableError.
var ErrDataUnavailable = errors.New("data unavailable")

var errNoFallback = errors.New("no fallback configured")

// UnavailableError reports that neither the remote service nor the
// fallback file produced a usable collection.
type UnavailableError struct {
	LayerID  string
	Remote   error
	Fallback error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("layer %q: data unavailable: remote: %v; fallback: %v", e.LayerID, e.Remote, e.Fallback)
}

func (e *UnavailableError) Is(target error) bool { return target == ErrDataUnavailable }

func (e *UnavailableError) Unwrap() []error {
	var errs []error
	for _, err := range []error{e.Remote, e.Fallback} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Result is one fetch of a layer.
type Result struct {
	LayerID  string
	Origin   Origin
	CRS      string // declared reference of the document, before reprojection
	Features []feature.RawFeature
	// Positions holds the document index of each feature; nil numbers
	// them in slice order.
	Positions []int
	Dropped   int // features discarded for an unreadable or unprojectable geometry
}

// Records normalizes the fetched features. Positional ids follow the
// source document, so dropping a feature does not renumber the rest.
func (r Result) Records() []feature.Record {
	return feature.NormalizeAt(r.LayerID, r.Features, r.Positions)
}

// Catalog is the part of the layer catalog the source needs.
type Catalog interface {
	Describe(id string) (catalog.Layer, error)
}

// Source fetches layer data. It holds no cache: every call hits the
// remote service (and fallback) again.
type Source struct {
	layers   Catalog
	client   *http.Client
	fallback fs.FS
	log      *slog.Logger
	maxBody  int64
}

// Option configures a Source.
type Option func(*Source)

// WithHTTPClient sets the client used for remote requests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) { s.client = c }
}

// WithFallbackFS sets the file system fallback paths are resolved in.
func WithFallbackFS(fsys fs.FS) Option {
	return func(s *Source) { s.fallback = fsys }
}

// WithFallbackDir resolves fallback paths relative to dir.
func WithFallbackDir(dir string) Option {
	return WithFallbackFS(os.DirFS(dir))
}

// WithLogger sets the logger for fallback and reprojection warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) { s.log = l }
}

// WithMaxBodySize bounds the size of a remote response body.
func WithMaxBodySize(n int64) Option {
	return func(s *Source) { s.maxBody = n }
}

// New creates a Source over the given catalog.
func New(layers Catalog, opts ...Option) *Source {
	s := &Source{
		layers:  layers,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     slog.Default(),
		maxBody: 64 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch retrieves the features of a layer. Unknown layers return the
// catalog's not-found error. When both the remote service and the fallback
// fail, Fetch returns an empty result together with an *UnavailableError;
// callers should render an empty layer rather than abort. A cancelled ctx
// returns ctx.Err() instead.
func (s *Source) Fetch(ctx context.Context, layerID string) (Result, error) {
	l, err := s.layers.Describe(layerID)
	if err != nil {
		return Result{LayerID: layerID, Origin: OriginNone}, err
	}

	coll, origin, err := s.resolve(ctx, l)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{LayerID: layerID, Origin: OriginNone}, ctxErr
	}
	if err != nil {
		s.log.Warn("layer data unavailable", "layer", layerID, "error", err)
		return Result{LayerID: layerID, Origin: OriginNone, Features: []feature.RawFeature{}}, err
	}

	declared := l.Source.CRS
	if declared == "" {
		declared = coll.CRS
	}
	res := Result{
		LayerID:   layerID,
		Origin:    origin,
		CRS:       crs.Code(declared),
		Features:  make([]feature.RawFeature, 0, len(coll.Features)),
		Positions: make([]int, 0, len(coll.Features)),
		Dropped:   coll.Dropped,
	}
	if coll.Dropped > 0 {
		s.log.Warn("dropping features with invalid geometry", "layer", layerID, "count", coll.Dropped)
	}

	tr, err := crs.NewTransformer(declared)
	if err != nil {
		s.log.Warn("dropping layer features", "layer", layerID, "count", len(coll.Features), "error", err)
		res.Dropped += len(coll.Features)
		return res, nil
	}

	for i, f := range coll.Features {
		g, err := tr.Apply(f.Geometry)
		if err != nil {
			s.log.Warn("dropping feature", "layer", layerID, "index", i, "error", err)
			res.Dropped++
			continue
		}
		f.Geometry = g
		res.Features = append(res.Features, f)
		res.Positions = append(res.Positions, f.Index)
	}
	return res, nil
}

// Load fetches a layer and returns its normalized records.
func (s *Source) Load(ctx context.Context, layerID string) ([]feature.Record, error) {
	res, err := s.Fetch(ctx, layerID)
	return res.Records(), err
}

func (s *Source) resolve(ctx context.Context, l catalog.Layer) (*feature.Collection, Origin, error) {
	remoteErr := errors.New("no remote url configured")
	if l.Source.URL != "" {
		coll, err := s.remote(ctx, l.Source.URL)
		if err == nil {
			return coll, OriginRemote, nil
		}
		remoteErr = err
		if ctx.Err() != nil {
			return nil, OriginNone, ctx.Err()
		}
		s.log.Info("remote source failed, trying fallback", "layer", l.ID, "error", err)
	}

	coll, err := s.local(l.Source.Fallback)
	if err != nil {
		return nil, OriginNone, &UnavailableError{LayerID: l.ID, Remote: remoteErr, Fallback: err}
	}
	return coll, OriginFallback, nil
}

func (s *Source) remote(ctx context.Context, url string) (*feature.Collection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return feature.DecodeCollection(body)
}

func (s *Source) local(name string) (*feature.Collection, error) {
	if name == "" || s.fallback == nil {
		return nil, errNoFallback
	}
	data, err := fs.ReadFile(s.fallback, name)
	if err != nil {
		return nil, err
	}
	coll, err := feature.DecodeCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return coll, nil
}
