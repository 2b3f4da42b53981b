package pipeline

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/runvars/pkg/compression"
	"github.com/ajitpratap0/runvars/pkg/errors"
	"github.com/ajitpratap0/runvars/pkg/json"
	"github.com/ajitpratap0/runvars/pkg/variables"
)

// Manifest is the document a producer hands over: raw runs plus an
// optional scan length for runs without a duration. A manifest file may
// also be a bare list of runs.
type Manifest struct {
	ScanLength float64            `json:"scan_length,omitempty" yaml:"scan_length,omitempty"`
	Runs       []variables.RawRun `json:"runs" yaml:"runs"`
}

// LoadManifests reads every file matching pattern, in lexical order, and
// concatenates their runs. The scan length of the first manifest that
// declares one wins.
func LoadManifests(pattern string) (*Manifest, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid manifest pattern")
	}
	if len(paths) == 0 {
		return nil, errors.Newf(errors.ErrorTypeFile, "no manifest matches %q", pattern)
	}
	sort.Strings(paths)

	out := &Manifest{}
	for _, path := range paths {
		m, err := LoadManifest(path)
		if err != nil {
			return nil, err
		}
		if out.ScanLength == 0 {
			out.ScanLength = m.ScanLength
		}
		out.Runs = append(out.Runs, m.Runs...)
	}
	return out, nil
}

// LoadManifest reads one JSON or YAML manifest. A compression suffix such
// as ".gz" or ".zst" is decoded transparently.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path) //nolint:gosec // G304: manifest path comes from the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open manifest")
	}
	defer f.Close()

	name, alg := compressionFromPath(path)
	r, err := compression.NewReader(f, alg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to decompress "+path)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read "+path)
	}

	var m *Manifest
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		m, err = decodeJSONManifest(data)
	case ".yaml", ".yml":
		m, err = decodeYAMLManifest(data)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "manifest %s: unknown extension (want .json, .yaml or .yml)", path)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeMalformedVariable, "manifest "+path).WithDetail("path", path)
	}
	return m, nil
}

func compressionFromPath(path string) (string, compression.Algorithm) {
	for _, alg := range compression.Algorithms {
		ext := alg.Extension()
		if ext != "" && strings.HasSuffix(strings.ToLower(path), ext) {
			return path[:len(path)-len(ext)], alg
		}
	}
	return path, compression.None
}

func decodeJSONManifest(data []byte) (*Manifest, error) {
	trimmed := bytes.TrimSpace(data)
	m := &Manifest{}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return m, json.DecodeStrict(bytes.NewReader(trimmed), &m.Runs)
	}
	return m, json.DecodeStrict(bytes.NewReader(trimmed), m)
}

func decodeYAMLManifest(data []byte) (*Manifest, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	m := &Manifest{}
	if len(doc.Content) == 0 {
		return m, nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.SequenceNode {
		return m, root.Decode(&m.Runs)
	}
	return m, root.Decode(m)
}
