// ABOUTME: Version information for the caption client and server
// ABOUTME: Reported in the hello handshake and the -version flag
package version

const (
	// Version is the software version
	Version = "0.3.0"

	// Product is the product name advertised to servers
	Product = "Resonate Captions"

	// Manufacturer is the manufacturer name
	Manufacturer = "Resonate"
)
