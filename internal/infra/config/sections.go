package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"content-gateway/internal/domain"
)

//go:embed default_sections.yaml
var defaultSections []byte

// Sections — наборы секций для главной и новостной сетки.
type Sections struct {
	Home []domain.SectionDef `yaml:"home"`
	News []domain.SectionDef `yaml:"news"`
}

// LoadSections читает секции из файла или из встроенных значений, если path пуст.
func LoadSections(path string) (Sections, error) {
	data := defaultSections
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Sections{}, fmt.Errorf("reading sections %s: %w", path, err)
		}
		data = raw
	}
	var s Sections
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Sections{}, fmt.Errorf("parsing sections: %w", err)
	}
	if err := validateSections("home", s.Home); err != nil {
		return Sections{}, err
	}
	if err := validateSections("news", s.News); err != nil {
		return Sections{}, err
	}
	return s, nil
}

func validateSections(group string, defs []domain.SectionDef) error {
	if len(defs) == 0 {
		return fmt.Errorf("sections %s: at least one section is required", group)
	}
	keys := make(map[string]struct{}, len(defs))
	ids := make(map[int]struct{}, len(defs))
	for i, d := range defs {
		key := strings.TrimSpace(d.Key)
		if key == "" {
			return fmt.Errorf("sections %s[%d]: key is required", group, i)
		}
		if d.CategoryID <= 0 {
			return fmt.Errorf("sections %s %q: category_id must be positive", group, key)
		}
		if _, ok := keys[key]; ok {
			return fmt.Errorf("sections %s: duplicate key %q", group, key)
		}
		if _, ok := ids[d.CategoryID]; ok {
			return fmt.Errorf("sections %s: category %d used twice", group, d.CategoryID)
		}
		keys[key] = struct{}{}
		ids[d.CategoryID] = struct{}{}
	}
	return nil
}
