package toolchain

import (
	"context"
	"os"
	"runtime"
)

// Architectures covered by the OCaml 5.3 GC defect.
var affectedArches = map[string]bool{
	"aarch64": true,
	"ppc64le": true,
	"arm64":   true,
}

// AffectedArchitecture reports whether arch is in the fixed set of
// architectures covered by the OCaml 5.3 GC defect.
func AffectedArchitecture(arch string) bool {
	return affectedArches[arch]
}

// NormalizeArch maps a Go architecture name to the uname-style spelling the
// OCaml toolchain and package recipes use. Unknown names pass through.
func NormalizeArch(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "i686"
	}
	return goarch
}

// DetectArch resolves the target architecture for a run. An explicit
// override wins, then the TARGET_ARCH environment variable, then the
// normalized architecture of the running binary.
func DetectArch(override string) string {
	if override != "" {
		return override
	}
	if env := os.Getenv("TARGET_ARCH"); env != "" {
		return env
	}
	return NormalizeArch(runtime.GOARCH)
}

// VersionProbe queries the toolchain for its raw version string.
type VersionProbe func(ctx context.Context) (string, error)

// DetectVersion resolves the toolchain version string for a run. An
// explicit override wins, then the OCAML_VERSION environment variable,
// then the probe. The returned string is raw and may be unparseable;
// policy decisions downstream are responsible for failing closed.
func DetectVersion(ctx context.Context, override string, probe VersionProbe) (string, error) {
	if override != "" {
		return override, nil
	}
	if env := os.Getenv("OCAML_VERSION"); env != "" {
		return env, nil
	}
	return probe(ctx)
}
