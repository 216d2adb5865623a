package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"golang.org/x/text/language"

	"github.com/joeblew999/geoportal/internal/api"
	"github.com/joeblew999/geoportal/internal/catalog"
	"github.com/joeblew999/geoportal/internal/db"
	"github.com/joeblew999/geoportal/internal/humastar"
	"github.com/joeblew999/geoportal/internal/logger"
	"github.com/joeblew999/geoportal/internal/render"
	"github.com/joeblew999/geoportal/internal/render/memsurface"
	"github.com/joeblew999/geoportal/internal/service"
	"github.com/joeblew999/geoportal/internal/source"
	"github.com/joeblew999/geoportal/internal/table"
)

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string // fallback files live in DataDir/sources
	Catalog string // layer catalog YAML; empty uses the built-in one
	Locale  string // collation locale of the attribute tables
	// PageSize is the initial page size of new attribute tables.
	PageSize int
	Logger   *slog.Logger
	// Loader replaces the HTTP source, for tests.
	Loader render.Loader
}

// Server is the geoportal HTTP server.
type Server struct {
	config   Config
	handler  http.Handler
	humaAPI  huma.API
	linker   *humastar.Linker
	services *api.Services
	log      *slog.Logger
}

// New wires the catalog, sources, rendering engine, attribute tables and
// DuckDB mirror behind the Huma API.
func New(cfg Config) (*Server, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.FromEnv()
	}

	c, err := LoadCatalog(cfg.Catalog)
	if err != nil {
		return nil, err
	}

	loader := cfg.Loader
	if loader == nil {
		loader = source.New(c,
			source.WithFallbackDir(filepath.Join(cfg.DataDir, "sources")),
			source.WithLogger(log.With("component", "source")),
		)
	}
	view := c.View()
	engine := render.NewEngine(c, loader, memsurface.New(1024, 768),
		render.WithLogger(log.With("component", "render")))

	var viewOpts []table.ViewOption
	if cfg.PageSize > 0 {
		viewOpts = append(viewOpts, table.WithPageSize(cfg.PageSize))
	}
	if cfg.Locale != "" {
		tag, err := language.Parse(cfg.Locale)
		if err != nil {
			return nil, fmt.Errorf("invalid locale %q: %w", cfg.Locale, err)
		}
		viewOpts = append(viewOpts, table.WithLocale(tag))
	}

	opts := []service.PortalOption{
		service.WithLogger(log.With("component", "portal")),
		service.WithViewOptions(viewOpts...),
	}
	mirror, err := db.Open(context.Background(), db.Config{Logger: log.With("component", "db")})
	if err != nil {
		log.Warn("duckdb mirror disabled", "error", err)
	} else {
		opts = append(opts, service.WithMirror(mirror))
	}

	services := &api.Services{
		Portal:  service.NewPortal(c, engine, opts...),
		Sources: service.NewSourceService(cfg.DataDir, c),
		Mirror:  mirror,
		DataDir: cfg.DataDir,
	}

	linker := humastar.NewLinker("/api/v1/info", "events")

	humaConfig := huma.DefaultConfig("geoportal API", api.Version)
	humaConfig.Info.Description = "Map layers of the Canoabo watershed with their attribute tables."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, linker.Transformer())

	mux := http.NewServeMux()
	humaAPI := humago.New(mux, humaConfig)

	s := &Server{
		config:   cfg,
		humaAPI:  humaAPI,
		linker:   linker,
		services: services,
		log:      log,
	}

	api.RegisterRoutes(humaAPI, services)
	linker.Build(humaAPI)
	mux.HandleFunc("/", s.handleRoot)
	s.handler = logger.AccessMiddleware(log)(mux)

	log.Info("server ready",
		"layers", len(c.Layers()),
		"home", fmt.Sprintf("%v@%g", view.Center, view.Zoom),
		"db", mirror != nil,
	)
	return s, nil
}

// LoadCatalog reads the catalog at path, or the built-in one when path is
// empty.
func LoadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(path)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the OpenAPI specification.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Portal returns the coordinator behind the API.
func (s *Server) Portal() *service.Portal {
	return s.services.Portal
}

// Close closes server resources.
func (s *Server) Close() error {
	if s.services.Mirror == nil {
		return nil
	}
	return s.services.Mirror.Close()
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range s.linker.Root() {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "geoportal",
		"status":  "running",
	})
}
