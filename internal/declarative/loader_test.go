package declarative

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalDoc = `apiVersion: duck-analytics/v1
kind: AggregationSchema
metadata:
  name: issues
spec:
  relation: issues
  dimensions:
    - identifier: state_id
      type: integer
  metrics:
    - kind: count
`

func TestParse_MultipleDocuments(t *testing.T) {
	data := minimalDoc + "---\n" + `apiVersion: duck-analytics/v1
kind: AggregationSchema
metadata:
  name: deployments
spec:
  relation: deployments
  metrics:
    - kind: count
`
	docs, err := Parse([]byte(data), "inline", LoadOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "issues", docs[0].Metadata.Name)
	assert.Equal(t, "deployments", docs[1].Metadata.Name)
	assert.Equal(t, "integer", docs[0].Spec.Dimensions[0].Type)
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	data := minimalDoc + "  colour: blue\n"

	_, err := Parse([]byte(data), "inline", LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")

	docs, err := Parse([]byte(data), "inline", LoadOptions{AllowUnknownFields: true})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestParse_WrongAPIVersion(t *testing.T) {
	_, err := Parse([]byte("apiVersion: v0\nkind: AggregationSchema\n"), "x.yaml", LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported apiVersion "v0"`)
}

func TestParse_WrongKind(t *testing.T) {
	_, err := Parse([]byte("apiVersion: duck-analytics/v1\nkind: Table\n"), "x.yaml", LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unexpected kind "Table"`)
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(nil, "empty.yaml", LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no documents")
}

func TestParse_BadYAML(t *testing.T) {
	_, err := Parse([]byte("apiVersion: [\n"), "bad.yaml", LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse bad.yaml")
}

func TestLoadFS_SortedAndFiltered(t *testing.T) {
	fsys := fstest.MapFS{
		"b.yaml":      {Data: []byte(minimalDoc)},
		"a/extra.yml": {Data: []byte(minimalDoc)},
		"README.md":   {Data: []byte("# not a schema")},
	}
	docs, err := LoadFS(fsys, LoadOptions{})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestLoadPaths_FileAndDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "issues.yaml")
	require.NoError(t, os.WriteFile(file, []byte(minimalDoc), 0o600))

	docs, err := LoadPaths([]string{file, dir}, LoadOptions{})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	_, err = LoadPaths([]string{filepath.Join(dir, "missing.yaml")}, LoadOptions{})
	require.Error(t, err)
}
