// Package buildinfo carries version metadata baked in at link time via
// -ldflags "-X formbridge/internal/buildinfo.Version=...".
package buildinfo

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

// Info returns the build metadata reported by the health endpoint.
func Info() map[string]string {
	return map[string]string{
		"version":  Version,
		"commit":   Commit,
		"built_at": BuiltAt,
	}
}
