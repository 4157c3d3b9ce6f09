package repo

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/platformbuilds/mirador-insights/internal/models"
	"github.com/platformbuilds/mirador-insights/internal/utils/fswatcher"
	"github.com/platformbuilds/mirador-insights/pkg/logger"
)

// CatalogFile is the on-disk layout of the catalog YAML.
type CatalogFile struct {
	Datasets  []models.DatasetConfig `yaml:"datasets"`
	Templates []models.AlertTemplate `yaml:"templates"`
	Alerts    []models.AlertSpec     `yaml:"alerts"`
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) (*CatalogFile, error) {
	var f CatalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return &f, nil
}

type catalogSnapshot struct {
	datasets  map[string]models.DatasetConfig
	templates map[string]models.AlertTemplate
	alerts    map[string]models.AlertSpec
}

func newSnapshot(f *CatalogFile) (*catalogSnapshot, error) {
	s := &catalogSnapshot{
		datasets:  make(map[string]models.DatasetConfig, len(f.Datasets)),
		templates: make(map[string]models.AlertTemplate, len(f.Templates)),
		alerts:    make(map[string]models.AlertSpec, len(f.Alerts)),
	}
	for _, d := range f.Datasets {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.datasets[d.Name]; dup {
			return nil, fmt.Errorf("duplicate dataset %q", d.Name)
		}
		s.datasets[d.Name] = d
	}
	for _, t := range f.Templates {
		if t.Name == "" {
			return nil, fmt.Errorf("template name is required")
		}
		if _, dup := s.templates[t.Name]; dup {
			return nil, fmt.Errorf("duplicate template %q", t.Name)
		}
		s.templates[t.Name] = t
	}
	for _, a := range f.Alerts {
		if a.ID == "" {
			return nil, fmt.Errorf("alert %q has no id", a.Name)
		}
		if _, dup := s.alerts[a.ID]; dup {
			return nil, fmt.Errorf("duplicate alert id %q", a.ID)
		}
		s.alerts[a.ID] = a
	}
	return s, nil
}

// Catalog serves datasets, templates and saved alerts from a YAML file. The
// content is an immutable snapshot replaced wholesale on reload.
type Catalog struct {
	path   string
	logger logger.Logger

	mu   sync.RWMutex
	snap *catalogSnapshot
}

// LoadCatalog reads the catalog at path.
func LoadCatalog(path string, log logger.Logger) (*Catalog, error) {
	c := &Catalog{path: path, logger: log}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewCatalog builds a catalog that is not backed by a file.
func NewCatalog(f *CatalogFile, log logger.Logger) (*Catalog, error) {
	snap, err := newSnapshot(f)
	if err != nil {
		return nil, err
	}
	return &Catalog{logger: log, snap: snap}, nil
}

// Reload re-reads the file. On failure the previous snapshot stays active.
func (c *Catalog) Reload() error {
	if c.path == "" {
		return fmt.Errorf("catalog is not backed by a file")
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("failed to read catalog %s: %w", c.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("catalog %s is empty", c.path)
	}
	f, err := ParseCatalog(data)
	if err != nil {
		return err
	}
	snap, err := newSnapshot(f)
	if err != nil {
		return fmt.Errorf("invalid catalog %s: %w", c.path, err)
	}

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	c.logger.Info("Catalog loaded", "path", c.path,
		"datasets", len(snap.datasets), "templates", len(snap.templates), "alerts", len(snap.alerts))
	return nil
}

func (c *Catalog) current() *catalogSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

func (c *Catalog) FindByName(ctx context.Context, name string) (*models.DatasetConfig, error) {
	d, ok := c.current().datasets[name]
	if !ok {
		return nil, fmt.Errorf("dataset %s: %w", name, ErrNotFound)
	}
	return &d, nil
}

func (c *Catalog) FindTemplate(ctx context.Context, name string) (*models.AlertTemplate, error) {
	t, ok := c.current().templates[name]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", name, ErrNotFound)
	}
	return &t, nil
}

func (c *Catalog) FindAlert(ctx context.Context, id string) (*models.AlertSpec, error) {
	a, ok := c.current().alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return &a, nil
}

// Datasets returns every dataset sorted by name.
func (c *Catalog) Datasets() []models.DatasetConfig {
	snap := c.current()
	out := make([]models.DatasetConfig, 0, len(snap.datasets))
	for _, d := range snap.datasets {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Watch reloads the catalog whenever its file is written or replaced, until
// ctx is done. The parent directory is watched so editors that save by
// rename are picked up.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.path == "" {
		return fmt.Errorf("catalog is not backed by a file")
	}
	watcher, err := fswatcher.New()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(c.path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch catalog directory: %w", err)
	}
	c.logger.Info("Catalog watcher started", "path", target)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isCatalogChange(event, target) {
				continue
			}
			c.logger.Info("Catalog file changed, reloading", "file", event.Name)
			if err := c.Reload(); err != nil {
				c.logger.Error("Failed to reload catalog; keeping previous version", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Error("Catalog watcher error", "error", err)

		case <-ctx.Done():
			c.logger.Info("Catalog watcher stopping")
			return nil
		}
	}
}

func isCatalogChange(event fswatcher.Event, target string) bool {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != target {
		return false
	}
	return event.Has(fswatcher.Write) || event.Has(fswatcher.Create)
}
