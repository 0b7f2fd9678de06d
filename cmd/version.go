// File: cmd/version.go
package cmd

// Version is the application version.
// Intended to be set at build time using ldflags, e.g.
// go build -ldflags "-X github.com/cafogleman/cb-response-surveyor/cmd.Version=1.0.0"
var Version = "1.0"
