// ABOUTME: Build and product identification
// ABOUTME: Version is overridden at link time with -ldflags "-X"
package version

import "fmt"

// Version is the release version, set with
// -ldflags "-X github.com/Resonate-Protocol/multiplay/internal/version.Version=v1.2.3"
var Version = "dev"

const (
	// Product is the user-facing product name
	Product = "Multiplay"
	// Manufacturer identifies the maintainers
	Manufacturer = "Resonate Protocol"
)

// String returns the product and version on one line
func String() string {
	return fmt.Sprintf("%s %s (%s)", Product, Version, Manufacturer)
}
