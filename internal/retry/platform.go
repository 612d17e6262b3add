package retry

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/vvka-141/mssqlretry/pkg/mssqlretry"
)

// Platform identifies the operating system the client transport runs on.
// Classification of code 0 depends on it.
type Platform string

const (
	PlatformWindows Platform = "windows"
	PlatformLinux   Platform = "linux"
	PlatformDarwin  Platform = "darwin"
)

// Platforms lists the client platforms the classifier distinguishes.
func Platforms() []Platform {
	return []Platform{PlatformWindows, PlatformLinux, PlatformDarwin}
}

// ParsePlatform matches name case-insensitively against Platforms.
func ParsePlatform(name string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Platforms() {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q (want windows, linux or darwin): %w", name, mssqlretry.ErrInvalidConfig)
}

// CurrentPlatform returns the platform of the running process.
func CurrentPlatform() Platform {
	return Platform(runtime.GOOS)
}

// IsPrimary reports whether the transport on this platform reports the real
// cause of a severed connection. Elsewhere every severed connection surfaces
// as code 0.
func (p Platform) IsPrimary() bool {
	return p == PlatformWindows
}

func (p Platform) String() string {
	if p == "" {
		return "unknown"
	}
	return string(p)
}
