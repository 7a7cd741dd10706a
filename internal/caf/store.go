// Package caf reads the directory of CAF files (Código de Autorización de
// Folios) and exposes the numeric ranges they authorize.
//
// The directory is re-listed on every call: a separate collaborator (the
// solicitar-folios endpoint) deposits new CAF files at any time. Only the
// per-file parse is memoized, keyed on path+mtime+size, so an unchanged file
// is never re-read while a replaced one misses the cache by key.
package caf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ErrStoreUnavailable means the CAF directory itself could not be listed.
// An empty directory is a valid empty state, not this error.
var ErrStoreUnavailable = errors.New("caf: directorio de CAF no disponible")

var (
	rngRe = regexp.MustCompile(`<RNG>\s*<D>(\d+)</D>\s*<H>(\d+)</H>\s*</RNG>`)
	faRe  = regexp.MustCompile(`<FA>(.*?)</FA>`)
	idkRe = regexp.MustCompile(`<IDK>(\d+)</IDK>`)
)

// Rango is one authorized folio range, immutable once loaded.
type Rango struct {
	Archivo string // file name, identity of the CAF
	Ruta    string // absolute path, needed by the SII gateway calls
	Desde   int64
	Hasta   int64
}

// Total returns the span of the range.
func (r Rango) Total() int64 { return r.Hasta - r.Desde + 1 }

// Contiene reports whether folio falls inside the range.
func (r Rango) Contiene(folio int64) bool { return folio >= r.Desde && folio <= r.Hasta }

// Resolucion holds the SII resolution metadata embedded in a CAF.
type Resolucion struct {
	FechaResolucion  string `json:"FechaResolucion"`
	NumeroResolucion int    `json:"NumeroResolucion"`
}

// Store reads CAF files from a directory.
type Store struct {
	dir   string
	cache *gocache.Cache
}

// NewStore creates a Store over dir. Parsed files are memoized for an hour;
// the key includes mtime and size so a rewritten file is re-parsed immediately.
func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		cache: gocache.New(time.Hour, 2*time.Hour),
	}
}

// Dir returns the directory this store reads from.
func (s *Store) Dir() string { return s.dir }

// cacheEntry is what we memoize per file: the parsed range, or nil when the
// file has no parseable range marker (so malformed files are skipped cheaply).
type cacheEntry struct {
	rango *Rango
}

// Rangos lists the directory and returns every parseable CAF range, ascending
// by Desde. Files without the .xml extension or without a range marker are
// silently skipped. Returns ErrStoreUnavailable only when the directory cannot
// be listed.
func (s *Store) Rangos() ([]Rango, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var rangos []Rango
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".xml") {
			continue
		}
		ruta := filepath.Join(s.dir, e.Name())
		r, err := s.parseFile(ruta, e.Name())
		if err != nil || r == nil {
			continue // malformed or irrelevant file, not an error
		}
		rangos = append(rangos, *r)
	}

	sort.Slice(rangos, func(i, j int) bool { return rangos[i].Desde < rangos[j].Desde })
	return rangos, nil
}

func (s *Store) parseFile(ruta, nombre string) (*Rango, error) {
	info, err := os.Stat(ruta)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s|%d|%d", ruta, info.ModTime().UnixNano(), info.Size())

	if v, ok := s.cache.Get(key); ok {
		return v.(cacheEntry).rango, nil
	}

	data, err := os.ReadFile(ruta)
	if err != nil {
		return nil, err
	}

	var rango *Rango
	if m := rngRe.FindSubmatch(data); m != nil {
		desde, errD := strconv.ParseInt(strings.TrimSpace(string(m[1])), 10, 64)
		hasta, errH := strconv.ParseInt(strings.TrimSpace(string(m[2])), 10, 64)
		if errD == nil && errH == nil {
			rango = &Rango{Archivo: nombre, Ruta: ruta, Desde: desde, Hasta: hasta}
		}
	}

	s.cache.SetDefault(key, cacheEntry{rango: rango})
	return rango, nil
}

// DatosResolucion extracts the resolution date (<FA>) and number (<IDK>) from
// a CAF file.
func (s *Store) DatosResolucion(ruta string) (*Resolucion, error) {
	data, err := os.ReadFile(ruta)
	if err != nil {
		return nil, fmt.Errorf("caf: leer %s: %w", ruta, err)
	}
	fa := faRe.FindSubmatch(data)
	idk := idkRe.FindSubmatch(data)
	if fa == nil || idk == nil {
		return nil, fmt.Errorf("caf: CAF invalido o incompleto en %s", ruta)
	}
	num, err := strconv.Atoi(string(idk[1]))
	if err != nil {
		return nil, fmt.Errorf("caf: IDK no numerico en %s", ruta)
	}
	return &Resolucion{FechaResolucion: string(fa[1]), NumeroResolucion: num}, nil
}

// Guardar writes a freshly received CAF document into the directory under a
// timestamped name and returns the path.
func (s *Store) Guardar(contenido []byte) (string, error) {
	nombre := "caf_" + time.Now().UTC().Format("20060102T150405") + ".xml"
	ruta := filepath.Join(s.dir, nombre)
	if err := os.WriteFile(ruta, contenido, 0644); err != nil {
		return "", fmt.Errorf("caf: guardar %s: %w", ruta, err)
	}
	return ruta, nil
}
