// Package loader implements directory-walking project discovery (spec.md
// §5, §6): the variable catalogue, one manifest and descriptor set per
// virtual host subdirectory, and .hdtignore exclusion (with "swagger-*"
// always excluded so a previously emitted document is never mistaken for
// a descriptor file on the next run).
//
// Grounded on internal/scenario/v2/loader.go's LoadScenario/LoadDir:
// read a directory, parse every YAML file found, and keep loading concerns
// (file format, directory layout) out of the domain types they populate.
// Load stops at the first file that cannot be read, parsed or validated
// and returns that one error; ExpandAll, by contrast, collects every
// descriptor that fails to expand before returning.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/wondertwin-ai/hdtest/internal/descriptor"
	"github.com/wondertwin-ai/hdtest/internal/hdterrors"
	"github.com/wondertwin-ai/hdtest/internal/variable"
	"github.com/wondertwin-ai/hdtest/internal/vhost"
)

const (
	variablesFile = "variables.yaml"
	manifestFile  = "manifest.yaml"
	ignoreFile    = ".hdtignore"
)

var validate = validator.New()

// Project is everything discovered under one -indir tree.
type Project struct {
	Catalogue   *variable.Catalogue
	VHosts      *vhost.Manifest
	Descriptors []*descriptor.Descriptor
}

// Load walks root and returns the fully parsed project. A subdirectory is
// treated as a virtual host only if it contains a manifest.yaml; any other
// subdirectory (and anything matched by .hdtignore) is skipped.
func Load(root string) (*Project, error) {
	ignore, err := loadIgnore(root)
	if err != nil {
		return nil, err
	}

	cat, err := loadCatalogue(filepath.Join(root, variablesFile))
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("loader: reading %s: %w", root, err)
	}
	var subdirs []string
	for _, e := range entries {
		if e.IsDir() && !ignore.Match(e.Name()) {
			subdirs = append(subdirs, e.Name())
		}
	}
	sort.Strings(subdirs)

	hosts := map[string]vhost.VHost{}
	var allDescriptors []*descriptor.Descriptor

	for _, name := range subdirs {
		vhostDir := filepath.Join(root, name)
		manifestPath := filepath.Join(vhostDir, manifestFile)
		if _, err := os.Stat(manifestPath); err != nil {
			continue
		}
		v, err := vhost.Load(manifestPath)
		if err != nil {
			return nil, err
		}
		hosts[name] = v

		descs, err := loadDescriptors(vhostDir, name, ignore)
		if err != nil {
			return nil, err
		}
		allDescriptors = append(allDescriptors, descs...)
	}

	return &Project{
		Catalogue:   cat,
		VHosts:      vhost.NewManifest(hosts),
		Descriptors: allDescriptors,
	}, nil
}

// ExpandAll resolves the project's variable catalogue and expands every
// loaded descriptor into its concrete APIs, in descriptor-name order for
// reproducible plans (spec.md §4.1, §8 "Deterministic ordering").
func (p *Project) ExpandAll() ([]*descriptor.ConcreteAPI, map[string]bool, error) {
	values, err := p.Catalogue.Resolve()
	if err != nil {
		return nil, nil, err
	}
	predefined := make(map[string]bool, len(values))
	for name := range values {
		predefined[name] = true
	}

	cat := CatalogueAdapter{Cat: p.Catalogue}
	descs := append([]*descriptor.Descriptor(nil), p.Descriptors...)
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })

	var all []*descriptor.ConcreteAPI
	var errs hdterrors.List
	for _, d := range descs {
		apis, err := descriptor.Expand(d, cat)
		if err != nil {
			errs.Add(hdterrors.Wrap(hdterrors.Compile, d.Name, err, "expanding descriptor %q", d.Name))
			continue
		}
		all = append(all, apis...)
	}
	if errs.HasErrors() {
		return nil, nil, &errs
	}
	descriptor.MarkReferenced(all)
	return all, predefined, nil
}
