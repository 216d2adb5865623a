package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/geoportal/internal/api"
	"github.com/joeblew999/geoportal/internal/logger"
	"github.com/joeblew999/geoportal/internal/server"
	"github.com/joeblew999/geoportal/internal/source"
	"github.com/joeblew999/geoportal/internal/table"
)

// Options defines all CLI flags and env vars for the geoportal server.
// Flags: --host, --port, --data-dir, --catalog, --locale, --page-size
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_CATALOG, ...
type Options struct {
	Host     string `doc:"Host to bind to" default:"0.0.0.0"`
	Port     int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir  string `doc:"Directory holding sources/ fallback files" default:".data"`
	Catalog  string `doc:"Layer catalog YAML file; empty uses the built-in catalog"`
	Locale   string `doc:"Collation locale of the attribute tables" default:"es"`
	PageSize int    `doc:"Initial rows per table page" default:"10"`
}

func newServer(opts *Options) (*server.Server, error) {
	return server.New(server.Config{
		Host:     opts.Host,
		Port:     fmt.Sprintf("%d", opts.Port),
		DataDir:  opts.DataDir,
		Catalog:  opts.Catalog,
		Locale:   opts.Locale,
		PageSize: opts.PageSize,
		Logger:   logger.FromEnv(),
	})
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var httpServer *http.Server

		hooks.OnStart(func() {
			srv, err := newServer(opts)
			if err != nil {
				fail("Error starting server: %v", err)
			}
			defer srv.Close()

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("geoportal API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Println()
			fmt.Printf("  Events:  %s/api/v1/events\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			httpServer = &http.Server{Addr: addr, Handler: srv}
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fail("Server error: %v", err)
			}
		})

		hooks.OnStop(func() {
			if httpServer == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpServer.Shutdown(ctx)
		})
	})

	cli.Root().Use = "geoportal"
	cli.Root().Short = "Map layers and attribute tables of the Canoabo watershed"
	cli.Root().Version = api.Version

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, err := newServer(opts)
			if err != nil {
				fail("Error: %v", err)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fail("Error marshaling spec: %v", err)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// catalog subcommand: list the configured layers
	cli.Root().AddCommand(&cobra.Command{
		Use:   "catalog",
		Short: "List the layers of the catalog",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			c, err := server.LoadCatalog(opts.Catalog)
			if err != nil {
				fail("Error loading catalog: %v", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tGROUP\tGEOMETRY\tZ\tFALLBACK")
			for _, l := range c.Layers() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", l.ID, l.Name, l.Group, l.GeometryType, l.ZIndex, l.Source.Fallback)
			}
			w.Flush()
		}),
	})

	// fetch subcommand: load one layer the way the map does
	cli.Root().AddCommand(&cobra.Command{
		Use:   "fetch <layer>",
		Short: "Fetch a layer and summarize the result",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			res, err := fetch(cmd.Context(), opts, args[0])
			if err != nil && !errors.Is(err, source.ErrDataUnavailable) {
				fail("Error: %v", err)
			}
			recs := res.Records()
			fmt.Printf("layer:    %s\n", res.LayerID)
			fmt.Printf("origin:   %s\n", res.Origin)
			fmt.Printf("crs:      %s\n", res.CRS)
			fmt.Printf("features: %d\n", len(recs))
			fmt.Printf("dropped:  %d\n", res.Dropped)
			if err != nil {
				fmt.Printf("warning:  %v\n", err)
			}
		}),
	})

	// export subcommand: write a layer's attribute table to a file
	exportCmd := &cobra.Command{
		Use:   "export <layer>",
		Short: "Export a layer's attribute table",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			format, _ := cmd.Flags().GetString("format")
			out, _ := cmd.Flags().GetString("out")

			res, err := fetch(cmd.Context(), opts, args[0])
			if err != nil && !errors.Is(err, source.ErrDataUnavailable) {
				fail("Error: %v", err)
			}
			c, _ := server.LoadCatalog(opts.Catalog)
			v := table.NewView(res.LayerID, c.DisplayName(res.LayerID), res.Records())
			path, err := table.DirSink{Dir: out}.Deliver(v.Export(table.All, table.Options{Format: table.Format(format)}))
			if err != nil {
				fail("Error exporting: %v", err)
			}
			fmt.Println(path)
		}),
	}
	exportCmd.Flags().StringP("format", "f", "csv", "Export format: csv, tsv, json, geojson or xlsx")
	exportCmd.Flags().StringP("out", "o", ".", "Output directory")
	cli.Root().AddCommand(exportCmd)

	cli.Run()
}

func fetch(ctx context.Context, opts *Options, layerID string) (source.Result, error) {
	c, err := server.LoadCatalog(opts.Catalog)
	if err != nil {
		return source.Result{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s := source.New(c,
		source.WithFallbackDir(filepath.Join(opts.DataDir, "sources")),
		source.WithLogger(logger.FromEnv()),
	)
	return s.Fetch(ctx, layerID)
}
