package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wondertwin-ai/hdtest/internal/descriptor"
	"github.com/wondertwin-ai/hdtest/internal/httpclient"
	"github.com/wondertwin-ai/hdtest/internal/planner"
	"github.com/wondertwin-ai/hdtest/internal/variable"
)

func TestExecuteWaterfallProducerConsumer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-123"})
	})
	mux.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"user": "me"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	login := &descriptor.ConcreteAPI{
		Name:           "auth/login",
		ExpectedStatus: 200,
		Request:        descriptor.Request{Method: "POST", Path: "/login"},
		Produces:       map[string]bool{"token": true},
		Consumes:       map[string]bool{},
		Actions: []descriptor.Action{
			{VarSet: &descriptor.VarSet{Name: "token", Path: ".access_token"}},
		},
	}
	whoami := &descriptor.ConcreteAPI{
		Name:           "auth/whoami",
		ExpectedStatus: 200,
		Request: descriptor.Request{
			Method:  "GET",
			Path:    "/whoami",
			Headers: map[string]string{"Authorization": "$token"},
		},
		Consumes: map[string]bool{"token": true},
		Produces: map[string]bool{},
	}

	reg := planner.NewMapRegistry([]*descriptor.ConcreteAPI{login, whoami})
	p := planner.New(reg, nil)
	require.NoError(t, p.Insert(login))
	require.NoError(t, p.Insert(whoami))

	client, err := httpclient.New(5 * time.Second)
	require.NoError(t, err)
	rc := New(client, map[string]string{"auth": server.URL}, nil, reg, nil)

	res, err := rc.Execute(context.Background(), p.Root, variable.NewEnvironment(nil))
	require.NoError(t, err)
	require.Len(t, res.Children, 1)

	loginRes := res.Children[0]
	require.NoError(t, loginRes.Err)
	require.Equal(t, 200, loginRes.Status)
	require.Len(t, loginRes.Children, 1, "expected whoami nested under login")

	whoamiRes := loginRes.Children[0]
	require.NoError(t, whoamiRes.Err)
	require.Equal(t, 200, whoamiRes.Status)
}

func TestExecuteRecordsContractFailureWithoutAbortingSiblings(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	mux.HandleFunc("/bad", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) })
	server := httptest.NewServer(mux)
	defer server.Close()

	ok := &descriptor.ConcreteAPI{Name: "svc/ok", ExpectedStatus: 200, Request: descriptor.Request{Method: "GET", Path: "/ok"}}
	bad := &descriptor.ConcreteAPI{Name: "svc/bad", ExpectedStatus: 200, Request: descriptor.Request{Method: "GET", Path: "/bad"}}

	reg := planner.NewMapRegistry([]*descriptor.ConcreteAPI{ok, bad})
	p := planner.New(reg, nil)
	require.NoError(t, p.Insert(ok))
	require.NoError(t, p.Insert(bad))

	client, err := httpclient.New(5 * time.Second)
	require.NoError(t, err)
	rc := New(client, map[string]string{"svc": server.URL}, nil, reg, nil)

	res, err := rc.Execute(context.Background(), p.Root, variable.NewEnvironment(nil))
	require.NoError(t, err, "Execute should not abort on a contract failure")

	var sawBad bool
	for _, c := range res.Children {
		if c.Name == "svc/bad" {
			sawBad = true
			require.Error(t, c.Err, "expected svc/bad to record a contract error")
		}
	}
	require.True(t, sawBad, "expected svc/bad to be present in the result tree")
}
