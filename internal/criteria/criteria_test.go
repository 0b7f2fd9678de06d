// File: internal/criteria/criteria_test.go
package criteria_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cafogleman/cb-response-surveyor/internal/criteria"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFromQuery(t *testing.T) {
	g := criteria.FromQuery("process_name:cmd.exe hostname:dc01")

	assert.Equal(t, "process_name:cmd.exe hostname:dc01", g.Program)
	assert.Equal(t, "process_name:cmd.exe hostname:dc01", g.RawQuery)
	assert.Equal(t, criteria.SourceQuery, g.Source)
	assert.Empty(t, g.FieldTerms)
}

// A definition file maps program name to field/terms; its base name becomes
// the source label for every program it defines.
func TestLoadDefinitionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "browsers.json")
	writeFile(t, path, `{
		"chrome": {"process_name": ["chrome.exe", "chrome_proxy.exe"]},
		"firefox": {"process_name": ["firefox.exe"], "digsig_publisher": ["Mozilla Corporation"]}
	}`)

	groups, err := criteria.LoadDefinitionFile(path)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	want := []criteria.Group{
		{
			Program:    "chrome",
			Source:     "browsers",
			FieldTerms: map[string][]string{"process_name": {"chrome.exe", "chrome_proxy.exe"}},
		},
		{
			Program: "firefox",
			Source:  "browsers",
			FieldTerms: map[string][]string{
				"process_name":     {"firefox.exe"},
				"digsig_publisher": {"Mozilla Corporation"},
			},
		},
	}
	assert.Empty(t, cmp.Diff(want, groups))
}

func TestLoadDefinitionFile_Missing(t *testing.T) {
	_, err := criteria.LoadDefinitionFile(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoadDefinitionFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	writeFile(t, path, `{"chrome": ["not", "a", "mapping"]}`)

	_, err := criteria.LoadDefinitionFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

// Fields iterate sorted so the queries a group produces are deterministic.
func TestGroup_Fields_Sorted(t *testing.T) {
	g := criteria.Group{FieldTerms: map[string][]string{
		"process_name": {"a"},
		"cmdline":      {"b"},
		"md5":          {"c"},
	}}

	assert.Equal(t, []string{"cmdline", "md5", "process_name"}, g.Fields())
}

// The directory walk picks up nested definition files and keeps each file's
// base name as its programs' source label; non-definition files are skipped.
func TestLoadDefinitionDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	writeFile(t, filepath.Join(dir, "browsers.json"), `{"chrome": {"process_name": ["chrome.exe"]}}`)
	writeFile(t, filepath.Join(dir, "nested", "ransomware.json"), `{"lockbit": {"md5": ["abc123"]}}`)
	writeFile(t, filepath.Join(dir, "README.txt"), "not a definition")

	groups, err := criteria.LoadDefinitionDir(dir)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	sources := map[string]string{}
	for _, g := range groups {
		sources[g.Program] = g.Source
	}
	assert.Equal(t, "browsers", sources["chrome"])
	assert.Equal(t, "ransomware", sources["lockbit"])
}

func TestLoadDefinitionDir_Missing(t *testing.T) {
	_, err := criteria.LoadDefinitionDir(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

// Each trimmed non-empty line is one pass-through group named after the IOC
// itself, carrying the bare ioctype:indicator query without parentheses.
func TestLoadIOCFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iocs.txt")
	writeFile(t, path, "1.2.3.4\n\n  5.6.7.8  \n")

	groups, err := criteria.LoadIOCFile(path, "ipaddr")
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "1.2.3.4", groups[0].Program)
	assert.Equal(t, criteria.SourceIOC, groups[0].Source)
	assert.Equal(t, "ipaddr:1.2.3.4", groups[0].RawQuery)
	assert.Empty(t, groups[0].FieldTerms)
	assert.Equal(t, "5.6.7.8", groups[1].Program)
	assert.Equal(t, "ipaddr:5.6.7.8", groups[1].RawQuery)
}

func TestLoadIOCFile_Missing(t *testing.T) {
	_, err := criteria.LoadIOCFile(filepath.Join(t.TempDir(), "nope.txt"), "ipaddr")
	require.Error(t, err)
}
