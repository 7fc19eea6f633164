// Package version exposes build identification, overridable at link time with
// -ldflags "-X github.com/farcloser/cadence/version.version=...".
package version

//nolint:gochecknoglobals // set by the linker
var (
	name    = "cadence"
	version = "dev"
	commit  = "unknown"
)

// Name returns the binary name.
func Name() string {
	return name
}

// Version returns the release version.
func Version() string {
	return version
}

// Commit returns the VCS revision the binary was built from.
func Commit() string {
	return commit
}
