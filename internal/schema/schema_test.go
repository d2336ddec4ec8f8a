package schema

import "testing"

func TestTranslateFlagString(t *testing.T) {
	s, err := Translate("(i,opt)a count")
	if err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	if s.Type != "integer" || !s.Nullable || s.Required {
		t.Errorf("unexpected schema: %+v", s)
	}
}

func TestTranslateObjectHoistsRequired(t *testing.T) {
	sketch := map[string]any{
		"name": "the name",
		"age":  "(i,opt)age in years",
	}
	s, err := Translate(sketch)
	if err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	if s.Type != "object" {
		t.Fatalf("expected object schema")
	}
	found := false
	for _, r := range s.RequiredFields {
		if r == "name" {
			found = true
		}
		if r == "age" {
			t.Errorf("opt field should not be required")
		}
	}
	if !found {
		t.Errorf("expected 'name' in RequiredFields, got %v", s.RequiredFields)
	}
}

func TestValidateReportsMultipleErrors(t *testing.T) {
	sketch := map[string]any{
		"name": "the name",
		"age":  "(i)age",
	}
	s, _ := Translate(sketch)
	body := map[string]any{"age": "not-a-number"} // missing name, wrong type for age

	errs := Validate(s, body, "")
	if len(errs) != 2 {
		t.Fatalf("expected 2 validation errors, got %d: %v", len(errs), errs)
	}
}

func TestTranslateArrayOfSketch(t *testing.T) {
	sketch := []any{"(i)id"}
	s, err := Translate(sketch)
	if err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	if s.Type != "array" || s.Items.Type != "integer" {
		t.Errorf("unexpected schema: %+v", s)
	}
}

func TestTranslateWildcardObject(t *testing.T) {
	sketch := map[string]any{"*": "(s)any value"}
	s, err := Translate(sketch)
	if err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	if s.PatternWildcard == nil || s.PatternWildcard.Type != "string" {
		t.Errorf("unexpected schema: %+v", s)
	}
}
