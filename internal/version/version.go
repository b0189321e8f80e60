// Package version exposes the build version stamped in at link time.
package version

var (
	// Version is overridden via -ldflags "-X github.com/casimir/freon/internal/version.Version=...".
	Version = "0.4.0-dev"
)

// UserAgent identifies the gateway to upstream wallabag servers.
func UserAgent() string {
	return "freon/" + Version
}
