package version

// Version is the build version, overridden at link time with
// -ldflags "-X github.com/vidfetch/vidfetch/internal/version.Version=...".
var Version = "dev"
