package tenant

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-story-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// tenantsFile represents the structure of the tenants configuration file.
type tenantsFile struct {
	Tenants []tenantEntry `json:"tenants" yaml:"tenants"`
}

type tenantEntry struct {
	ID              string               `json:"id" yaml:"id"`
	AllowedDomains  []string             `json:"allowed_domains" yaml:"allowed_domains"`
	ScrapingEnabled bool                 `json:"scraping_enabled" yaml:"scraping_enabled"`
	CloseCommenting closeCommentingEntry `json:"close_commenting" yaml:"close_commenting"`
}

type closeCommentingEntry struct {
	Auto           bool   `json:"auto" yaml:"auto"`
	TimeoutSeconds int64  `json:"timeout_seconds" yaml:"timeout_seconds"`
	Message        string `json:"message" yaml:"message"`
}

// Registry resolves tenants by id.
type Registry struct {
	mu      sync.RWMutex
	tenants []*domain.Tenant
	idx     map[string]*domain.Tenant
}

// NewRegistry builds an in-memory registry from already constructed tenants.
func NewRegistry(tenants ...*domain.Tenant) (*Registry, error) {
	reg := &Registry{idx: make(map[string]*domain.Tenant, len(tenants))}
	for i, t := range tenants {
		if t == nil {
			continue
		}
		if err := validateTenant(t); err != nil {
			return nil, fmt.Errorf("tenants[%d]: %w", i, err)
		}
		if _, exists := reg.idx[t.ID]; exists {
			return nil, fmt.Errorf("duplicate tenant id %q", t.ID)
		}
		reg.tenants = append(reg.tenants, t)
		reg.idx[t.ID] = t
	}
	return reg, nil
}

// LoadRegistry loads tenants from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("tenants file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tenants file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read tenants file: %w", err)
	}

	parsed, err := parseTenantsFile(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(parsed.Tenants) == 0 {
		return nil, errors.New("tenants file contains no tenants entries")
	}

	tenants := make([]*domain.Tenant, 0, len(parsed.Tenants))
	for _, entry := range parsed.Tenants {
		tenants = append(tenants, entry.toTenant())
	}
	return NewRegistry(tenants...)
}

func parseTenantsFile(data []byte, ext string) (tenantsFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var out tenantsFile
		if err := d.fn(data, &out); err == nil {
			return out, nil
		}
	}

	return tenantsFile{}, errors.New("tenants file format not recognized (expected YAML or JSON)")
}

func (e tenantEntry) toTenant() *domain.Tenant {
	domains := make([]string, 0, len(e.AllowedDomains))
	for _, d := range e.AllowedDomains {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, d)
		}
	}
	return &domain.Tenant{
		ID:             strings.TrimSpace(e.ID),
		AllowedDomains: domains,
		Stories: domain.TenantStories{
			Scraping: domain.ScrapingSettings{Enabled: e.ScrapingEnabled},
		},
		CloseCommenting: domain.CloseCommenting{
			Auto:    e.CloseCommenting.Auto,
			Timeout: time.Duration(e.CloseCommenting.TimeoutSeconds) * time.Second,
			Message: strings.TrimSpace(e.CloseCommenting.Message),
		},
	}
}

func validateTenant(t *domain.Tenant) error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("id is required")
	}
	if t.CloseCommenting.Auto && t.CloseCommenting.Timeout <= 0 {
		return fmt.Errorf("close_commenting.timeout_seconds is required for tenant %q", t.ID)
	}
	return nil
}

// Get returns the tenant with id.
func (r *Registry) Get(id string) (*domain.Tenant, error) {
	if r == nil {
		return nil, domain.ErrTenantNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.idx[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrTenantNotFound, id)
	}
	return t, nil
}

// All returns the configured tenants in file order.
func (r *Registry) All() []*domain.Tenant {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Tenant, len(r.tenants))
	copy(out, r.tenants)
	return out
}
