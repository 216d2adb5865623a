package service

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joeblew999/geoportal/internal/catalog"
)

// SourceFile is a bundled fallback file.
type SourceFile struct {
	Name     string   `json:"name" doc:"File name" example:"suelos.geojson"`
	Size     string   `json:"size" doc:"Human-readable size" example:"12.4 KB"`
	FileType string   `json:"fileType" doc:"File type" example:"GeoJSON"`
	Layers   []string `json:"layers" doc:"Catalog layers falling back to this file"`
}

// SourceService lists the fallback files layers load when their feature
// service is down.
type SourceService struct {
	sourcesDir string
	catalog    *catalog.Catalog
}

// NewSourceService creates a new source service over dataDir/sources.
func NewSourceService(dataDir string, c *catalog.Catalog) *SourceService {
	return &SourceService{
		sourcesDir: filepath.Join(dataDir, "sources"),
		catalog:    c,
	}
}

// List returns all available fallback files.
func (s *SourceService) List() ([]SourceFile, error) {
	entries, err := os.ReadDir(s.sourcesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SourceFile{}, nil
		}
		return nil, err
	}

	// Only GeoJSON documents can serve as fallbacks
	extToType := map[string]string{
		".geojson": "GeoJSON",
		".json":    "GeoJSON",
	}

	users := make(map[string][]string)
	for _, l := range s.catalog.Layers() {
		if l.Source.Fallback != "" {
			name := filepath.Base(l.Source.Fallback)
			users[name] = append(users[name], l.ID)
		}
	}

	files := []SourceFile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		fileType, ok := extToType[ext]
		if !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		layers := slices.Clone(users[entry.Name()])
		if layers == nil {
			layers = []string{}
		}
		files = append(files, SourceFile{
			Name:     entry.Name(),
			Size:     formatSize(info.Size()),
			FileType: fileType,
			Layers:   layers,
		})
	}

	return files, nil
}

// Missing returns the layers whose fallback file is not present.
func (s *SourceService) Missing() []string {
	var out []string
	for _, l := range s.catalog.Layers() {
		if l.Source.Fallback == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.sourcesDir, l.Source.Fallback)); err != nil {
			out = append(out, l.ID)
		}
	}
	return out
}

// SourcesDir returns the path to the sources directory.
func (s *SourceService) SourcesDir() string {
	return s.sourcesDir
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
