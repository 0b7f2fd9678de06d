// File: internal/criteria/criteria.go

// Package criteria normalizes the four survey input modes into named groups
// of search criteria. A group is one "program" being hunted for: a mapping
// from query field to the terms to OR together, plus the provenance labels
// that end up on every output row it produces.
package criteria

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/json-iterator/go"
)

// DefinitionExt is the extension definition files must carry.
const DefinitionExt = ".json"

// Source labels for the two modes that are not file-derived.
const (
	SourceQuery = "query"
	SourceIOC   = "ioc"
)

// Group is one named unit of search criteria.
type Group struct {
	// Program names what is being hunted (a malware family, an IOC literal,
	// or the raw query itself).
	Program string
	// Source labels the provenance of every row the group produces.
	Source string
	// RawQuery is set for single-query mode and for IOC lines; it is passed
	// through to the backend verbatim.
	RawQuery string
	// FieldTerms maps a query field to its ordered terms. Term order is
	// preserved from the input document.
	FieldTerms map[string][]string
}

// Fields returns the group's field names in sorted order so query
// construction is deterministic.
func (g Group) Fields() []string {
	fields := make([]string, 0, len(g.FieldTerms))
	for f := range g.FieldTerms {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// FromQuery wraps a raw backend query as a single pass-through group.
func FromQuery(query string) Group {
	return Group{
		Program:  query,
		Source:   SourceQuery,
		RawQuery: query,
	}
}

// LoadDefinitionFile parses one definition document of the form
// {program: {field: [terms...]}}. The file's base name, extension stripped,
// becomes the source label shared by all programs it defines.
func LoadDefinitionFile(path string) ([]Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file %s: %w", path, err)
	}

	var programs map[string]map[string][]string
	if err := json.Unmarshal(data, &programs); err != nil {
		return nil, fmt.Errorf("failed to parse definition file %s: %w", path, err)
	}

	source := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	groups := make([]Group, 0, len(programs))
	for program, fieldTerms := range programs {
		groups = append(groups, Group{
			Program:    program,
			Source:     source,
			FieldTerms: fieldTerms,
		})
	}
	// Map iteration order is random; sort so runs are reproducible.
	sort.Slice(groups, func(i, j int) bool { return groups[i].Program < groups[j].Program })
	return groups, nil
}

// LoadDefinitionDir walks a directory tree and loads every definition
// document in it. Files without the definition extension are ignored.
func LoadDefinitionDir(dir string) ([]Group, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("definition directory %s not found: %w", dir, err)
	}

	var groups []Group
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), DefinitionExt) {
			return nil
		}
		fileGroups, err := LoadDefinitionFile(path)
		if err != nil {
			return err
		}
		groups = append(groups, fileGroups...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// LoadIOCFile reads a line-oriented indicator file. Every non-empty trimmed
// line becomes its own pass-through query of the form ioctype:indicator,
// named after the indicator value. Single-term queries carry no grouping
// parentheses, unlike definition fields.
func LoadIOCFile(path, iocType string) ([]Group, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ioc file %s: %w", path, err)
	}
	defer f.Close()

	var groups []Group
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ioc := strings.TrimSpace(scanner.Text())
		if ioc == "" {
			continue
		}
		groups = append(groups, Group{
			Program:  ioc,
			Source:   SourceIOC,
			RawQuery: iocType + ":" + ioc,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ioc file %s: %w", path, err)
	}
	return groups, nil
}
