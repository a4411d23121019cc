package version

// Version is the release identifier, overridable at build time via
// -ldflags "-X locex/pkg/version.Version=...".
var Version = "0.1.0"
