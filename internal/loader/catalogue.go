package loader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wondertwin-ai/hdtest/internal/variable"
)

// rawVariable is variables.yaml's on-disk shape for one catalogue entry.
type rawVariable struct {
	Name        string   `yaml:"name" validate:"required"`
	Description string   `yaml:"description"`
	Kind        string   `yaml:"kind" validate:"required,oneof=none scalar enum template computed"`
	Scalar      string   `yaml:"scalar"`
	Enum        []string `yaml:"enum"`
	Template    string   `yaml:"template"`
	ComputedFn  string   `yaml:"computed_fn"`
}

func (r rawVariable) toVariable() (*variable.Variable, error) {
	v := &variable.Variable{
		Name:        r.Name,
		Description: r.Description,
		Scalar:      r.Scalar,
		Enum:        r.Enum,
		Template:    r.Template,
		ComputedFn:  r.ComputedFn,
	}
	switch r.Kind {
	case "none":
		v.Kind = variable.KindNone
	case "scalar":
		v.Kind = variable.KindScalar
	case "enum":
		v.Kind = variable.KindEnum
	case "template":
		v.Kind = variable.KindTemplate
	case "computed":
		v.Kind = variable.KindComputed
	default:
		return nil, fmt.Errorf("variable %q: unknown kind %q", r.Name, r.Kind)
	}
	return v, nil
}

func loadCatalogue(path string) (*variable.Catalogue, error) {
	cat := variable.NewCatalogue()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cat, nil
		}
		return nil, fmt.Errorf("loader: reading %s: %w", path, err)
	}

	var entries []rawVariable
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("loader: parsing %s: %w", path, err)
	}
	for _, entry := range entries {
		if err := validate.Struct(entry); err != nil {
			return nil, fmt.Errorf("loader: %s: variable %q: %w", path, entry.Name, err)
		}
		v, err := entry.toVariable()
		if err != nil {
			return nil, fmt.Errorf("loader: %s: %w", path, err)
		}
		cat.Add(v)
	}
	return cat, nil
}

// CatalogueAdapter satisfies internal/descriptor.Catalogue over a resolved
// internal/variable.Catalogue, so the expander can ask which consumed
// variables are enumerations to fan out over.
type CatalogueAdapter struct {
	Cat *variable.Catalogue
}

func (a CatalogueAdapter) Enum(name string) ([]string, bool) {
	v, ok := a.Cat.Get(name)
	if !ok || v.Kind != variable.KindEnum {
		return nil, false
	}
	return v.Enum, true
}
