package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/rolodex/pkg/middleware"
)

// Rate limited routes
const (
	RouteContactsList      = "contacts.list"
	RouteContactsSearch    = "contacts.search"
	RouteContactsBirthdays = "contacts.birthdays"
	RouteContactsGet       = "contacts.get"
	RouteContactsCreate    = "contacts.create"
	RouteContactsUpdate    = "contacts.update"
	RouteContactsDelete    = "contacts.delete"
)

// DefaultQuotas returns the built-in per-route quotas
func DefaultQuotas() map[string]middleware.Quota {
	quotas := map[string]middleware.Quota{
		RouteContactsList:      {Limit: 5, Window: 60 * time.Second},
		RouteContactsSearch:    {Limit: 10, Window: 60 * time.Second},
		RouteContactsBirthdays: {Limit: 5, Window: 60 * time.Second},
		RouteContactsGet:       {Limit: 10, Window: 60 * time.Second},
		RouteContactsCreate:    {Limit: 2, Window: 180 * time.Second},
		RouteContactsUpdate:    {Limit: 5, Window: 120 * time.Second},
		RouteContactsDelete:    {Limit: 5, Window: 60 * time.Second},
	}
	for name, q := range quotas {
		q.Name = name
		quotas[name] = q
	}
	return quotas
}

// quotaFile is the YAML layout of a quota override file:
//
//	routes:
//	  contacts.list:
//	    limit: 20
//	    window: 1m
type quotaFile struct {
	Routes map[string]struct {
		Limit  int           `yaml:"limit"`
		Window time.Duration `yaml:"window"`
	} `yaml:"routes"`
}

// LoadQuotaFile reads per-route quota overrides from a YAML file
func LoadQuotaFile(path string) (map[string]middleware.Quota, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate limit file: %w", err)
	}
	return ParseQuotas(data)
}

// ParseQuotas decodes per-route quota overrides
func ParseQuotas(data []byte) (map[string]middleware.Quota, error) {
	var f quotaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rate limit file: %w", err)
	}

	quotas := make(map[string]middleware.Quota, len(f.Routes))
	for name, r := range f.Routes {
		if r.Limit <= 0 || r.Window <= 0 {
			return nil, fmt.Errorf("rate limit for %s needs a positive limit and window", name)
		}
		quotas[name] = middleware.Quota{Name: name, Limit: r.Limit, Window: r.Window}
	}
	return quotas, nil
}
