// File: internal/credentials/credentials.go

// Package credentials resolves named API profiles from the ini-style
// credential files the Carbon Black tooling ecosystem already uses
// (~/.carbonblack/credentials.response and credentials.cbc). The surveyor
// only ever passes a profile name through; the secrets live here.
package credentials

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/ini.v1"
)

// File names inside the credential directory, one per backend dialect.
const (
	ResponseFile = "credentials.response"
	CloudFile    = "credentials.cbc"
)

// Profile is one resolved credential set.
type Profile struct {
	// Name is the section the profile was read from.
	Name string
	// URL is the base server URL, e.g. https://cb.example.com.
	URL string
	// Token is the API token sent with every request.
	Token string
	// OrgKey identifies the organization. Cloud only.
	OrgKey string
	// SSLVerify disables certificate checking when false.
	SSLVerify bool
}

// Store loads profiles from a credential directory.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir, expanding a leading ~.
func NewStore(dir string) (*Store, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand credential dir %q: %w", dir, err)
	}
	return &Store{dir: expanded}, nil
}

// Load reads the named profile from the credential file for the requested
// dialect. A missing file, missing section, or a section without both url
// and token is an error; nothing here is recoverable at runtime.
func (s *Store) Load(file, name string) (*Profile, error) {
	path := filepath.Join(s.dir, file)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("credential file %s not found: %w", path, err)
	}

	creds, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credential file %s: %w", path, err)
	}

	section, err := creds.GetSection(name)
	if err != nil {
		return nil, fmt.Errorf("profile %q not found in %s", name, path)
	}

	profile := &Profile{
		Name:      name,
		URL:       section.Key("url").String(),
		Token:     section.Key("token").String(),
		OrgKey:    section.Key("org_key").String(),
		SSLVerify: section.Key("ssl_verify").MustBool(true),
	}

	if profile.URL == "" || profile.Token == "" {
		return nil, fmt.Errorf("profile %q in %s is missing url or token", name, path)
	}
	return profile, nil
}

// LoadResponse resolves a profile for the on-prem Response dialect.
func (s *Store) LoadResponse(name string) (*Profile, error) {
	return s.Load(ResponseFile, name)
}

// LoadCloud resolves a profile for the Carbon Black Cloud dialect. Cloud
// API routes are org-scoped, so org_key is mandatory there.
func (s *Store) LoadCloud(name string) (*Profile, error) {
	profile, err := s.Load(CloudFile, name)
	if err != nil {
		return nil, err
	}
	if profile.OrgKey == "" {
		return nil, fmt.Errorf("profile %q is missing org_key (required for cloud)", name)
	}
	return profile, nil
}
