package domain

import "time"

// Tenant is an isolated customer namespace. It is read-only here.
type Tenant struct {
	ID              string          `json:"id" yaml:"id"`
	AllowedDomains  []string        `json:"allowed_domains" yaml:"allowed_domains"`
	Stories         TenantStories   `json:"stories" yaml:"stories"`
	CloseCommenting CloseCommenting `json:"close_commenting" yaml:"close_commenting"`
}

// TenantStories holds story related tenant settings.
type TenantStories struct {
	Scraping ScrapingSettings `json:"scraping" yaml:"scraping"`
}

// ScrapingSettings toggles metadata scraping for a tenant.
type ScrapingSettings struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// CloseCommenting configures automatic closing of story streams.
type CloseCommenting struct {
	Auto    bool          `json:"auto" yaml:"auto"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	Message string        `json:"message" yaml:"message"`
}

// ScrapingEnabled reports whether stories for this tenant should be scraped.
func (t *Tenant) ScrapingEnabled() bool {
	return t != nil && t.Stories.Scraping.Enabled
}
