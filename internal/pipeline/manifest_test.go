package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/runvars/pkg/compression"
	"github.com/ajitpratap0/runvars/pkg/errors"
	"github.com/ajitpratap0/runvars/pkg/json"
	"github.com/ajitpratap0/runvars/pkg/testutil"
)

func ds005Manifest(t *testing.T, subjects int) *Manifest {
	t.Helper()
	return &Manifest{ScanLength: testutil.DS005ScanLength, Runs: testutil.DS005(subjects)}
}

// writeManifest serializes m as JSON under a temp dir and returns its path.
func writeManifest(t *testing.T, name string, m *Manifest) string {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	return testutil.WriteFile(t, name, data)
}

func TestLoadManifest_JSON(t *testing.T) {
	path := writeManifest(t, "ds005.json", ds005Manifest(t, 1))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, testutil.DS005ScanLength, m.ScanLength)
	require.Len(t, m.Runs, testutil.DS005RunsPerSub)
	assert.Equal(t, "01", m.Runs[0].Entities["subject"])
	assert.Len(t, m.Runs[0].Variables, testutil.DS005Variables)
}

func TestLoadManifest_JSONList(t *testing.T) {
	data, err := json.Marshal(testutil.DS005(1))
	require.NoError(t, err)
	path := testutil.WriteFile(t, "runs.json", data)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Zero(t, m.ScanLength)
	assert.Len(t, m.Runs, testutil.DS005RunsPerSub)
}

func TestLoadManifest_YAML(t *testing.T) {
	data, err := yaml.Marshal(ds005Manifest(t, 1))
	require.NoError(t, err)
	path := testutil.WriteFile(t, "ds005.yaml", data)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, testutil.DS005ScanLength, m.ScanLength)
	require.Len(t, m.Runs, testutil.DS005RunsPerSub)
	assert.Equal(t, ds005Manifest(t, 1).Runs[2], m.Runs[2])

	list := testutil.WriteFile(t, "runs.yml", []byte(`
- entities: {subject: "02", run: "1"}
  duration: 12
  variables:
    - name: trial_type
      onset: [0, 4]
      duration: [2, 2]
      labels: [gamble, control]
`))
	m, err = LoadManifest(list)
	require.NoError(t, err)
	require.Len(t, m.Runs, 1)
	assert.Equal(t, 12.0, m.Runs[0].Duration)
	assert.Equal(t, []string{"gamble", "control"}, m.Runs[0].Variables[0].Labels)
}

func TestLoadManifest_Compressed(t *testing.T) {
	data, err := json.Marshal(ds005Manifest(t, 1))
	require.NoError(t, err)

	for _, alg := range []compression.Algorithm{compression.Gzip, compression.Zstd} {
		packed, err := compression.Compress(data, &compression.Config{Algorithm: alg, Level: compression.Default})
		require.NoError(t, err)
		path := testutil.WriteFile(t, "ds005.json"+alg.Extension(), packed)

		m, err := LoadManifest(path)
		require.NoError(t, err, alg)
		assert.Len(t, m.Runs, testutil.DS005RunsPerSub, alg)
	}
}

func TestLoadManifest_Errors(t *testing.T) {
	_, err := LoadManifest(testutil.WriteFile(t, "runs.toml", []byte("runs = []")))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = LoadManifest(testutil.WriteFile(t, "bad.json", []byte(`{"runs": [{"entities": 3}]}`)))
	assert.True(t, errors.IsType(err, errors.ErrorTypeMalformedVariable))

	_, err = LoadManifest(testutil.WriteFile(t, "unknown.json", []byte(`{"runs": [], "subjects": 16}`)))
	assert.Error(t, err, "unknown fields are rejected")

	_, err = LoadManifest(t.TempDir() + "/missing.json")
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestLoadManifests_Glob(t *testing.T) {
	dir := t.TempDir()
	first := &Manifest{Runs: testutil.DS005(1)}
	second := ds005Manifest(t, 2)
	second.Runs = second.Runs[testutil.DS005RunsPerSub:]

	for name, m := range map[string]*Manifest{"sub-02.json": second, "sub-01.json": first} {
		data, err := json.Marshal(m)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}

	m, err := LoadManifests(filepath.Join(dir, "sub-*.json"))
	require.NoError(t, err)
	require.Len(t, m.Runs, 2*testutil.DS005RunsPerSub)
	assert.Equal(t, "01", m.Runs[0].Entities["subject"])
	assert.Equal(t, "02", m.Runs[testutil.DS005RunsPerSub].Entities["subject"])
	assert.Equal(t, testutil.DS005ScanLength, m.ScanLength, "later manifests supply a missing scan length")

	_, err = LoadManifests(filepath.Join(dir, "sub-*.yaml"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}
