package variable

import "testing"

func TestEnvironmentSubstitute(t *testing.T) {
	env := NewEnvironment(map[string]string{"token": "T", "name": "pet"})

	got, err := env.Substitute("Bearer $token for ${name}")
	if err != nil {
		t.Fatalf("Substitute() error: %v", err)
	}
	want := "Bearer T for pet"
	if got != want {
		t.Errorf("Substitute() = %q, want %q", got, want)
	}
}

func TestEnvironmentSubstituteMissing(t *testing.T) {
	env := NewEnvironment(nil)
	if _, err := env.Substitute("$missing"); err == nil {
		t.Fatal("expected error for undefined variable")
	}
}

func TestEnvironmentCloneIsolation(t *testing.T) {
	parent := NewEnvironment(map[string]string{"a": "1"})
	child := parent.Clone()
	child.Set("a", "2")
	child.Set("b", "new")

	if v, _ := parent.Get("a"); v != "1" {
		t.Errorf("parent mutated by child write: got %q", v)
	}
	if parent.Has("b") {
		t.Errorf("parent should not see child-only key")
	}
}

func TestCatalogueResolveTemplate(t *testing.T) {
	cat := NewCatalogue()
	cat.Add(&Variable{Name: "host", Kind: KindScalar, Scalar: "api.example.com"})
	cat.Add(&Variable{Name: "base", Kind: KindTemplate, Template: "https://$host"})

	values, err := cat.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if values["base"] != "https://api.example.com" {
		t.Errorf("base = %q", values["base"])
	}
}

func TestCatalogueResolveCyclic(t *testing.T) {
	cat := NewCatalogue()
	cat.Add(&Variable{Name: "a", Kind: KindTemplate, Template: "$b"})
	cat.Add(&Variable{Name: "b", Kind: KindTemplate, Template: "$a"})

	if _, err := cat.Resolve(); err == nil {
		t.Fatal("expected cyclic reference error")
	}
}
