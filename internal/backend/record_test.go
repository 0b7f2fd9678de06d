// File: internal/backend/record_test.go
package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Verifies that endpoint and username case differences collapse to one entry.
func TestResultSet_Add_CaseFolding(t *testing.T) {
	s := NewResultSet()
	s.Add(Record{Endpoint: "WIN-DC01", Username: "CORP\\Admin", Path: "c:\\windows\\system32\\cmd.exe", Cmdline: "cmd.exe /c whoami"})
	s.Add(Record{Endpoint: "win-dc01", Username: "corp\\admin", Path: "c:\\windows\\system32\\cmd.exe", Cmdline: "cmd.exe /c whoami"})

	assert.Equal(t, 1, s.Len(), "records differing only in endpoint/username case should dedupe")

	rows := s.Rows()
	assert.Equal(t, "win-dc01", rows[0].Endpoint)
	assert.Equal(t, "corp\\admin", rows[0].Username)
}

// Path and command line are not case folded; they are distinct records.
func TestResultSet_Add_PathCaseIsSignificant(t *testing.T) {
	s := NewResultSet()
	s.Add(Record{Endpoint: "host", Username: "user", Path: "C:\\Temp\\a.exe", Cmdline: "a"})
	s.Add(Record{Endpoint: "host", Username: "user", Path: "c:\\temp\\a.exe", Cmdline: "a"})

	assert.Equal(t, 2, s.Len())
}

// Union is idempotent: merging the same set twice does not change the size.
func TestResultSet_Union_Idempotent(t *testing.T) {
	a := NewResultSet()
	a.Add(Record{Endpoint: "h1", Username: "u1", Path: "p1", Cmdline: "c1"})
	a.Add(Record{Endpoint: "h2", Username: "u2", Path: "p2", Cmdline: "c2"})

	b := NewResultSet()
	b.Add(Record{Endpoint: "h2", Username: "u2", Path: "p2", Cmdline: "c2"})
	b.Add(Record{Endpoint: "h3", Username: "u3", Path: "p3", Cmdline: "c3"})

	a.Union(b)
	assert.Equal(t, 3, a.Len())

	a.Union(b)
	assert.Equal(t, 3, a.Len(), "re-merging the same set must not grow the accumulator")
}

// Rows returns a stable sorted order independent of insertion order.
func TestResultSet_Rows_Deterministic(t *testing.T) {
	s := NewResultSet()
	s.Add(Record{Endpoint: "zulu", Username: "u", Path: "p", Cmdline: "c"})
	s.Add(Record{Endpoint: "alpha", Username: "u", Path: "p", Cmdline: "c"})
	s.Add(Record{Endpoint: "alpha", Username: "a", Path: "p", Cmdline: "c"})

	rows := s.Rows()
	assert.Equal(t, "alpha", rows[0].Endpoint)
	assert.Equal(t, "a", rows[0].Username)
	assert.Equal(t, "alpha", rows[1].Endpoint)
	assert.Equal(t, "u", rows[1].Username)
	assert.Equal(t, "zulu", rows[2].Endpoint)
}
