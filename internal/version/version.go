package version

// Version is the build version, overridable at link time with
// -ldflags "-X svgforge-go/internal/version.Version=...".
var Version = "dev"
