package latentscope

// Version is the release of the library and the latentscope binary.
// Overridden at build time with -ldflags "-X github.com/aretw0/latentscope.Version=...".
var Version = "0.1.0"
