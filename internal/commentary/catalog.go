package commentary

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Catalog holds the static micro-event templates and narrative lines.
// Loaded once, read-only for the process lifetime.
type Catalog struct {
	Templates  map[string][]string `yaml:"templates"`
	Narratives map[string][]string `yaml:"narratives"`
}

func LoadCatalog() (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(catalogYAML, &c); err != nil {
		return nil, fmt.Errorf("failed to parse commentary catalog: %w", err)
	}
	if len(c.Templates) == 0 {
		return nil, fmt.Errorf("commentary catalog has no templates")
	}
	return &c, nil
}
