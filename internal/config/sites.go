package config

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

type sitesFile struct {
	Sites []seedSite `yaml:"sites"`
}

type seedSite struct {
	Name      string `yaml:"name"`
	Purpose   string `yaml:"purpose"`
	URL       string `yaml:"url"`
	Frequency int    `yaml:"frequency"`
	Enabled   *bool  `yaml:"enabled"` // defaults to true
}

// LoadSites reads a YAML seed file:
//
//	sites:
//	  - name: blog
//	    url: https://blog.example.com
//	    frequency: 300
func LoadSites(path string) ([]domain.Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}

	var f sitesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sites file: %w", err)
	}

	var errs error
	out := make([]domain.Site, 0, len(f.Sites))
	for i, s := range f.Sites {
		site := domain.Site{
			Name:      s.Name,
			Purpose:   s.Purpose,
			URL:       s.URL,
			Frequency: s.Frequency,
			Enabled:   s.Enabled == nil || *s.Enabled,
		}
		if err := site.Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sites[%d]: %w", i, err))
			continue
		}
		out = append(out, site)
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}
