// Package coreproto embeds the core display protocol description so tools
// and tests have a catalog without a protocol search.
package coreproto

import (
	_ "embed"
	"sync"

	"github.com/danmuck/wlctl/internal/protocol/schema"
)

// Path is the pseudo-path compile errors report for the embedded document.
const Path = "coreproto/wayland.xml"

//go:embed wayland.xml
var document []byte

var (
	once    sync.Once
	catalog *schema.Catalog
	err     error
)

// Document returns the embedded core description.
func Document() schema.Document {
	return schema.Document{Path: Path, Data: document}
}

// Catalog compiles the embedded description once and shares the result.
func Catalog() (*schema.Catalog, error) {
	once.Do(func() {
		catalog, err = schema.Compile(Document())
	})
	return catalog, err
}
