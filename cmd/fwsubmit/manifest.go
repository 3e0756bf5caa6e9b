package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ericfisherdev/fwchecks/internal/domain/model"
)

// manifest is the YAML form of a submission. Command-line flags override
// every scalar field; binaries from flags are added to the manifest's.
type manifest struct {
	Workflow string            `yaml:"workflow"`
	Commit   string            `yaml:"commit"`
	Change   string            `yaml:"change"`
	Patchset string            `yaml:"patchset"`
	Project  string            `yaml:"project"`
	Branch   string            `yaml:"branch"`
	Comment  string            `yaml:"comment"`
	Binaries map[string]string `yaml:"binaries"`
}

func loadManifest(path string) (*manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	var m manifest
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// parseBinarySpecs parses "name=location" pairs.
func parseBinarySpecs(pairs []string) ([]model.BinarySpec, error) {
	specs := make([]model.BinarySpec, 0, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, location, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(location) == "" {
			return nil, fmt.Errorf("binary %q must be name=location", pair)
		}
		specs = append(specs, model.BinarySpec{Name: strings.TrimSpace(name), Location: strings.TrimSpace(location)})
	}
	return specs, nil
}

// splitBinaryList splits the comma separated FW_BINARIES value.
func splitBinaryList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// manifestBinaries returns the manifest's binaries sorted by name.
func (m *manifest) manifestBinaries() []model.BinarySpec {
	names := make([]string, 0, len(m.Binaries))
	for name := range m.Binaries {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]model.BinarySpec, 0, len(names))
	for _, name := range names {
		specs = append(specs, model.BinarySpec{Name: name, Location: m.Binaries[name]})
	}
	return specs
}
