// Package discovery locates protocol description files on disk and
// compiles them into a catalog.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/danmuck/wlctl/internal/protocol/coreproto"
	"github.com/danmuck/wlctl/internal/protocol/schema"
	"github.com/rs/zerolog/log"
)

const (
	EnvProtocolsPath = "WAYLAND_PROTOCOLS_PATH"
	EnvDataHome      = "XDG_DATA_HOME"
	EnvDataDirs      = "XDG_DATA_DIRS"

	coreDir       = "wayland"
	extensionsDir = "wayland-protocols"
	coreFile      = "wayland.xml"
)

// Env is the search configuration, read once.
type Env struct {
	ProtocolsPath string
	DataHome      string
	DataDirs      string
	// Fallback is the system data directory used when nothing else
	// matches.
	Fallback string
}

// EnvFromLookup reads the search variables through lookup, normally
// os.LookupEnv.
func EnvFromLookup(lookup func(string) (string, bool)) Env {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(k string) string {
		v, _ := lookup(k)
		return strings.TrimSpace(v)
	}
	return Env{
		ProtocolsPath: get(EnvProtocolsPath),
		DataHome:      get(EnvDataHome),
		DataDirs:      get(EnvDataDirs),
		Fallback:      "/usr/share",
	}
}

// SearchDirs resolves directories in priority order: the explicit path
// list, then the data home pair, then the first data dir holding the pair,
// then the fallback pair. Only the first matching source is used.
func SearchDirs(env Env) []string {
	if env.ProtocolsPath != "" {
		return splitList(env.ProtocolsPath)
	}
	if env.DataHome != "" && hasPair(env.DataHome) {
		return pair(env.DataHome)
	}
	for _, base := range splitList(env.DataDirs) {
		if hasPair(base) {
			return pair(base)
		}
	}
	if env.Fallback != "" && isDir(env.Fallback) {
		return pair(env.Fallback)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ":") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func pair(base string) []string {
	return []string{filepath.Join(base, coreDir), filepath.Join(base, extensionsDir)}
}

func hasPair(base string) bool {
	return isDir(filepath.Join(base, coreDir)) && isDir(filepath.Join(base, extensionsDir))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ProtocolFiles walks dirs recursively for files with an xml extension,
// matched case-insensitively. Missing directories are skipped. The result
// is sorted and free of duplicates.
func ProtocolFiles(dirs []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == dir && errors.Is(err, fs.ErrNotExist) {
					return fs.SkipDir
				}
				return err
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".xml") {
				return nil
			}
			if !seen[path] {
				seen[path] = true
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("discovery: walk %s: %w", dir, err)
		}
	}
	sort.Strings(out)
	log.Debug().Msgf("discovery.ProtocolFiles dirs=%d files=%d", len(dirs), len(out))
	return out, nil
}

// Catalog compiles files into one catalog. The embedded core description
// is added unless one of files is itself the core document, so extension
// protocols always resolve core references.
func Catalog(files []string) (*schema.Catalog, error) {
	if len(files) == 0 {
		return coreproto.Catalog()
	}
	docs := make([]schema.Document, 0, len(files)+1)
	haveCore := false
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &schema.CompileError{Path: path, Err: err}
		}
		if filepath.Base(path) == coreFile {
			haveCore = true
		}
		docs = append(docs, schema.Document{Path: path, Data: data})
	}
	if !haveCore {
		docs = append(docs, coreproto.Document())
	}
	return schema.Compile(docs...)
}

// Load compiles the protocol files under paths, or under SearchDirs(env)
// when paths is empty, and returns the catalog with the files it used.
func Load(paths []string, env Env) (*schema.Catalog, []string, error) {
	if len(paths) == 0 {
		paths = SearchDirs(env)
	}
	files, err := ProtocolFiles(paths)
	if err != nil {
		return nil, nil, err
	}
	cat, err := Catalog(files)
	if err != nil {
		return nil, nil, err
	}
	return cat, files, nil
}
