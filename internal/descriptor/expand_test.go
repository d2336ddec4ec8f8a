package descriptor

import "testing"

type fakeCatalogue struct {
	enums map[string][]string
}

func (f fakeCatalogue) Enum(name string) ([]string, bool) {
	v, ok := f.enums[name]
	return v, ok
}

func TestExpandSingleResponseNoEnum(t *testing.T) {
	d := &Descriptor{
		Name: "auth/login",
		Request: Request{
			Method: "POST",
			Path:   "/login",
			Body: map[string]any{
				"username": "$userName",
				"password": "$userPass",
			},
		},
		Responses: map[int]*Response{
			200: {
				Status: 200,
				BodySketch: map[string]any{
					"access_token": map[string]any{
						"var_set": map[string]any{"name": "token"},
					},
				},
			},
		},
	}

	apis, err := Expand(d, fakeCatalogue{})
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	if len(apis) != 1 {
		t.Fatalf("expected 1 concrete API, got %d", len(apis))
	}
	api := apis[0]
	if api.Name != "auth/login" {
		t.Errorf("name = %q", api.Name)
	}
	if !api.Consumes["userName"] || !api.Consumes["userPass"] {
		t.Errorf("consumes = %+v", api.Consumes)
	}
	if !api.Produces["token"] {
		t.Errorf("produces = %+v", api.Produces)
	}
}

func TestExpandEnumFanOut(t *testing.T) {
	d := &Descriptor{
		Name: "auth/token",
		Request: Request{
			Method: "POST",
			Path:   "/token",
			Headers: map[string]string{
				"Authorization": "$authHdr",
			},
			Body: map[string]any{"grant_type": "$grantType"},
		},
		Responses: map[int]*Response{
			200: {Status: 200},
		},
	}
	cat := fakeCatalogue{enums: map[string][]string{
		"grantType": {"password", "client_credentials"},
	}}

	apis, err := Expand(d, cat)
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	if len(apis) != 2 {
		t.Fatalf("expected 2 concrete APIs (fan-out), got %d", len(apis))
	}
	if apis[0].Name != "auth/token" || apis[1].Name != "auth/token-1" {
		t.Errorf("unexpected names: %q, %q", apis[0].Name, apis[1].Name)
	}
}

func TestExpandVarNewDefaultsSerialVars(t *testing.T) {
	d := &Descriptor{
		Name: "apps/create",
		Request: Request{
			Method: "POST",
			Path:   "/apps",
			Body:   map[string]any{"name": "$appName"},
		},
		Responses: map[int]*Response{
			201: {
				Status: 201,
				BodySketch: map[string]any{
					"id": map[string]any{
						"var_new": map[string]any{
							"name":   "appGuid",
							"get":    "getApp",
							"delete": "delApp",
						},
					},
				},
			},
		},
	}

	apis, err := Expand(d, fakeCatalogue{})
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	if len(apis) != 1 {
		t.Fatalf("expected 1 concrete API, got %d", len(apis))
	}
	vn := apis[0].VarNew
	if vn == nil {
		t.Fatal("expected var_new to be recorded")
	}
	if len(vn.SerialVars) != 1 || vn.SerialVars[0] != "appName" {
		t.Errorf("serial_vars = %v, want [appName]", vn.SerialVars)
	}
}
