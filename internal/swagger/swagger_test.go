package swagger

import "testing"

func TestTemplatePathRewritesPlaceholders(t *testing.T) {
	got := templatePath("/apps/$appGuid/files/${fileId}")
	want := "/apps/{appGuid}/files/{fileId}"
	if got != want {
		t.Errorf("templatePath() = %q, want %q", got, want)
	}
}

func TestPathParametersSkipsHostVar(t *testing.T) {
	params, err := pathParameters("/v2/$org/apps/$appGuid", "org")
	if err != nil {
		t.Fatalf("pathParameters() error: %v", err)
	}
	if len(params) != 1 || params[0].Name != "appGuid" {
		t.Errorf("unexpected params: %+v", params)
	}
}

func TestOperationIDReplacesSlashes(t *testing.T) {
	if got := operationID("apps/create"); got != "apps_create" {
		t.Errorf("operationID() = %q", got)
	}
}
