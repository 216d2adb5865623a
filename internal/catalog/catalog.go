package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/go-playground/colors.v1"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultDocument []byte

// ErrLayerNotFound is returned for layer ids the catalog does not know.
var ErrLayerNotFound = errors.New("layer not found")

// Catalog is an immutable layer registry. It is safe for concurrent use.
type Catalog struct {
	view      View
	highlight Highlight
	groups    []Group
	layers    []Layer
	index     map[string]int
}

// New validates doc and builds a catalog from it.
func New(doc Document) (*Catalog, error) {
	c := &Catalog{
		view:      doc.View,
		highlight: doc.Highlight,
		index:     make(map[string]int, len(doc.Layers)),
	}
	if c.view.MaxZoom == 0 {
		c.view.MaxZoom = 18
	}
	if c.view.Zoom == 0 {
		c.view.Zoom = c.view.MinZoom
	}
	if c.view.MinZoom > c.view.MaxZoom {
		return nil, fmt.Errorf("catalog: minZoom %v above maxZoom %v", c.view.MinZoom, c.view.MaxZoom)
	}

	for _, l := range doc.Layers {
		if l.ID == "" {
			return nil, fmt.Errorf("catalog: layer without id")
		}
		if _, dup := c.index[l.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate layer %q", l.ID)
		}
		if !l.GeometryType.Valid() {
			return nil, fmt.Errorf("catalog: layer %q: unknown geometry type %q", l.ID, l.GeometryType)
		}
		if err := validateLayerColors(l); err != nil {
			return nil, fmt.Errorf("catalog: layer %q: %w", l.ID, err)
		}
		if l.Name == "" {
			l.Name = l.ID
		}
		c.index[l.ID] = len(c.layers)
		c.layers = append(c.layers, cloneLayer(l))
	}

	for _, s := range []Style{doc.Highlight.Point, doc.Highlight.LineString, doc.Highlight.Polygon} {
		if err := validateStyle(s); err != nil {
			return nil, fmt.Errorf("catalog: highlight: %w", err)
		}
	}

	seenGroups := make(map[string]bool, len(doc.Groups))
	for _, g := range doc.Groups {
		if seenGroups[g.ID] {
			return nil, fmt.Errorf("catalog: duplicate group %q", g.ID)
		}
		seenGroups[g.ID] = true
		for _, id := range g.Layers {
			if _, ok := c.index[id]; !ok {
				return nil, fmt.Errorf("catalog: group %q references unknown layer %q", g.ID, id)
			}
		}
		g.Layers = append([]string(nil), g.Layers...)
		c.groups = append(c.groups, g)
	}
	return c, nil
}

// Load reads a YAML catalog document.
func Load(r io.Reader) (*Catalog, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	return New(doc)
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Load(bytes.NewReader(defaultDocument))
}

// Describe returns the descriptor for id.
func (c *Catalog) Describe(id string) (Layer, error) {
	i, ok := c.index[id]
	if !ok {
		return Layer{}, fmt.Errorf("%w: %q", ErrLayerNotFound, id)
	}
	return cloneLayer(c.layers[i]), nil
}

// Has reports whether id is a known layer.
func (c *Catalog) Has(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Position returns the declaration index of id, or -1.
func (c *Catalog) Position(id string) int {
	if i, ok := c.index[id]; ok {
		return i
	}
	return -1
}

// DisplayName returns the layer name, or the id itself when unknown.
func (c *Catalog) DisplayName(id string) string {
	if i, ok := c.index[id]; ok {
		return c.layers[i].Name
	}
	return id
}

// Layers returns every layer in declaration order.
func (c *Catalog) Layers() []Layer {
	out := make([]Layer, len(c.layers))
	for i, l := range c.layers {
		out[i] = cloneLayer(l)
	}
	return out
}

// Groups returns the groups in declaration order with their members.
func (c *Catalog) Groups() []Group {
	out := make([]Group, len(c.groups))
	for i, g := range c.groups {
		g.Layers = append([]string(nil), g.Layers...)
		out[i] = g
	}
	return out
}

// View returns the map view configuration.
func (c *Catalog) View() View { return c.view }

// Highlight returns the selection styles.
func (c *Catalog) Highlight() Highlight { return c.highlight }

func cloneLayer(l Layer) Layer {
	l.Popup = append([]string(nil), l.Popup...)
	if l.Categories != nil {
		cs := *l.Categories
		cs.Properties = append([]string(nil), cs.Properties...)
		cs.Colors = make(map[string]string, len(l.Categories.Colors))
		for k, v := range l.Categories.Colors {
			cs.Colors[k] = v
		}
		l.Categories = &cs
	}
	return l
}

func validateLayerColors(l Layer) error {
	if err := validateStyle(l.Style); err != nil {
		return err
	}
	if err := validateStyle(l.Hover); err != nil {
		return fmt.Errorf("hover: %w", err)
	}
	if l.Categories == nil {
		return nil
	}
	if err := validateColor(l.Categories.Fallback); err != nil {
		return fmt.Errorf("categories fallback: %w", err)
	}
	for k, col := range l.Categories.Colors {
		if err := validateColor(col); err != nil {
			return fmt.Errorf("category %q: %w", k, err)
		}
	}
	return nil
}

func validateStyle(s Style) error {
	for _, col := range []string{s.Color, s.FillColor} {
		if err := validateColor(col); err != nil {
			return err
		}
	}
	if s.Opacity < 0 || s.Opacity > 1 || s.FillOpacity < 0 || s.FillOpacity > 1 {
		return fmt.Errorf("opacity out of range")
	}
	return nil
}

func validateColor(s string) error {
	if s == "" {
		return nil
	}
	if _, err := colors.Parse(s); err != nil {
		return fmt.Errorf("invalid color %q: %w", s, err)
	}
	return nil
}
