// Package data holds the fixture inventories served by the fixture-backed
// connectors.
package data

import _ "embed"

//go:embed garuda.json
var GarudaData []byte
