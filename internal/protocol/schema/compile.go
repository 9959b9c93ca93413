package schema

import (
	"os"

	"github.com/rs/zerolog/log"
)

// Compile parses every document, registers all interfaces, then resolves
// cross references. Any failing document fails the whole compilation.
func Compile(docs ...Document) (*Catalog, error) {
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}
	protocols := make([]*Protocol, 0, len(docs))
	for _, doc := range docs {
		p, err := ParseDocument(doc)
		if err != nil {
			log.Error().Msgf("schema.Compile parse failed path=%q err=%v", doc.Path, err)
			return nil, err
		}
		protocols = append(protocols, p)
	}

	cat := newCatalog()
	for _, p := range protocols {
		for _, iface := range p.Interfaces {
			if err := cat.add(iface); err != nil {
				return nil, compileErr(p.Path, err)
			}
		}
	}
	for _, p := range protocols {
		if err := cat.resolve(p); err != nil {
			log.Error().Msgf("schema.Compile resolve failed path=%q err=%v", p.Path, err)
			return nil, compileErr(p.Path, err)
		}
	}
	cat.seal(protocols)
	log.Debug().Msgf("schema.Compile ok documents=%d interfaces=%d", len(protocols), cat.Len())
	return cat, nil
}

// CompileFiles reads each path and compiles them together.
func CompileFiles(paths ...string) (*Catalog, error) {
	docs := make([]Document, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, compileErr(path, err)
		}
		docs = append(docs, Document{Path: path, Data: data})
	}
	return Compile(docs...)
}
