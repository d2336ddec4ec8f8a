package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wondertwin-ai/hdtest/internal/descriptor"
)

type rawBasicAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type rawRequest struct {
	Method  string            `yaml:"method" validate:"required"`
	Path    string            `yaml:"path" validate:"required"`
	Headers map[string]string `yaml:"headers"`
	Auth    *rawBasicAuth     `yaml:"auth"`
	Body    any               `yaml:"body"`
}

type rawHook struct {
	Func    string `yaml:"func"`
	APIName string `yaml:"api"`
	Quit    []int  `yaml:"quit"`
	Fatal   bool   `yaml:"fatal"`
}

func (r rawHook) toHook() descriptor.Hook {
	return descriptor.Hook{Func: r.Func, APIName: r.APIName, Quit: r.Quit, Fatal: r.Fatal}
}

func toHooks(raws []rawHook) []descriptor.Hook {
	if len(raws) == 0 {
		return nil
	}
	out := make([]descriptor.Hook, len(raws))
	for i, r := range raws {
		out[i] = r.toHook()
	}
	return out
}

type rawTest struct {
	Name string            `yaml:"name"`
	Vars map[string]string `yaml:"vars"`
}

type rawResponse struct {
	Status      int                       `yaml:"status" validate:"required"`
	Description string                    `yaml:"description"`
	Body        any                       `yaml:"body"`
	BodyMD      map[string]map[string]any `yaml:"bodymd"`
	IgnoreBody  bool                      `yaml:"ignore_body"`
	Tests       []rawTest                 `yaml:"tests"`
	SerialVars  []string                  `yaml:"serial_vars"`
	Before      []rawHook     `yaml:"before"`
	AfterAPI    []rawHook     `yaml:"after_api"`
	AfterAll    []rawHook     `yaml:"after_all"`
	OnBeforeRun string        `yaml:"on_before_run"`
	OnAfterRun  string        `yaml:"on_after_run"`
}

type rawDescriptor struct {
	Name          string        `yaml:"name" validate:"required"`
	Private       bool          `yaml:"private"`
	Request       rawRequest    `yaml:"request" validate:"required"`
	Responses     []rawResponse `yaml:"responses" validate:"required,min=1,dive"`
	Tags          []string      `yaml:"tags"`
	Groups        []string      `yaml:"groups"`
	ExtraConsumes []string      `yaml:"extra_consumes"`
	ExtraProduces []string      `yaml:"extra_produces"`
	Before        []rawHook     `yaml:"before"`
	AfterAPI      []rawHook     `yaml:"after_api"`
	AfterAll      []rawHook     `yaml:"after_all"`
	OnBeforeRun   string        `yaml:"on_before_run"`
	OnAfterRun    string        `yaml:"on_after_run"`
}

func (r rawDescriptor) toDescriptor(vhostName string) (*descriptor.Descriptor, error) {
	d := &descriptor.Descriptor{
		Name:          vhostName + "/" + r.Name,
		VHost:         vhostName,
		Private:       r.Private,
		Tags:          r.Tags,
		Groups:        r.Groups,
		ExtraConsumes: r.ExtraConsumes,
		ExtraProduces: r.ExtraProduces,
		Before:        toHooks(r.Before),
		AfterAPI:      toHooks(r.AfterAPI),
		AfterAll:      toHooks(r.AfterAll),
		OnBeforeRun:   r.OnBeforeRun,
		OnAfterRun:    r.OnAfterRun,
		Request: descriptor.Request{
			Method:  r.Request.Method,
			Path:    r.Request.Path,
			Headers: r.Request.Headers,
			Body:    r.Request.Body,
		},
		Responses: make(map[int]*descriptor.Response, len(r.Responses)),
	}
	if r.Request.Auth != nil {
		d.Request.Auth = &descriptor.BasicAuth{Username: r.Request.Auth.Username, Password: r.Request.Auth.Password}
	}
	for _, resp := range r.Responses {
		if _, dup := d.Responses[resp.Status]; dup {
			return nil, fmt.Errorf("descriptor %q declares status %d more than once", d.Name, resp.Status)
		}
		tests := make([]descriptor.Test, len(resp.Tests))
		for i, t := range resp.Tests {
			tests[i] = descriptor.Test{Name: t.Name, Vars: t.Vars}
		}
		d.Responses[resp.Status] = &descriptor.Response{
			Status:      resp.Status,
			Description: resp.Description,
			BodySketch:  resp.Body,
			BodyMD:      resp.BodyMD,
			IgnoreBody:  resp.IgnoreBody,
			Tests:       tests,
			SerialVars:  resp.SerialVars,
			Before:      toHooks(resp.Before),
			AfterAPI:    toHooks(resp.AfterAPI),
			AfterAll:    toHooks(resp.AfterAll),
			OnBeforeRun: resp.OnBeforeRun,
			OnAfterRun:  resp.OnAfterRun,
		}
	}
	return d, nil
}

// loadDescriptors reads every non-ignored *.yaml file directly under
// vhostDir (excluding manifest.yaml) and parses it as a list of
// descriptors, matching internal/scenario/v2/loader.go's LoadDir: walk,
// skip what's excluded, parse each remaining file, accumulate results.
func loadDescriptors(vhostDir, vhostName string, ignore *ignoreSet) ([]*descriptor.Descriptor, error) {
	entries, err := os.ReadDir(vhostDir)
	if err != nil {
		return nil, fmt.Errorf("loader: reading %s: %w", vhostDir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == manifestFile || ignore.Match(name) {
			continue
		}
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)

	var out []*descriptor.Descriptor
	for _, name := range files {
		path := filepath.Join(vhostDir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loader: reading %s: %w", path, err)
		}
		var entries []rawDescriptor
		if err := yaml.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("loader: parsing %s: %w", path, err)
		}
		for _, entry := range entries {
			if err := validate.Struct(entry); err != nil {
				return nil, fmt.Errorf("loader: %s: descriptor %q: %w", path, entry.Name, err)
			}
			d, err := entry.toDescriptor(vhostName)
			if err != nil {
				return nil, fmt.Errorf("loader: %s: %w", path, err)
			}
			out = append(out, d)
		}
	}
	return out, nil
}
