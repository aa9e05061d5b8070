package categorizer

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CategoryConfig is one category with the keywords that select it.
type CategoryConfig struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// CategoriesConfig is the top-level structure of the categories YAML file.
type CategoriesConfig struct {
	Categories []CategoryConfig `yaml:"categories"`
}

// CategoryStore loads and saves the category rules file.
type CategoryStore struct {
	Path string
}

// NewCategoryStore points the store at a categories YAML file.
func NewCategoryStore(path string) *CategoryStore {
	if path == "" {
		path = "categories.yaml"
	}
	return &CategoryStore{Path: path}
}

// Load reads the categories file. A missing file is not an error; keyword
// categorization simply has no rules to apply.
func (s *CategoryStore) Load() ([]CategoryConfig, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading categories file: %w", err)
	}

	var cfg CategoriesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing categories file: %w", err)
	}
	return cfg.Categories, nil
}

// Save writes the categories file, creating parent directories as needed.
func (s *CategoryStore) Save(categories []CategoryConfig) error {
	data, err := yaml.Marshal(CategoriesConfig{Categories: categories})
	if err != nil {
		return fmt.Errorf("error serializing categories: %w", err)
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("error creating categories directory: %w", err)
		}
	}
	if err := os.WriteFile(s.Path, data, 0600); err != nil {
		return fmt.Errorf("error writing categories file: %w", err)
	}
	return nil
}
