// Package refstore serves reference diagram images by id from a directory,
// with an LRU cache of decoded images and their precomputed fingerprints.
package refstore

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	disintegration "github.com/disintegration/imaging"
	lru "github.com/hashicorp/golang-lru/v2"

	layoutimg "github.com/docrobotics/layouttune/internal/imaging"
)

// ErrNotFound is returned when no reference image exists for an id.
var ErrNotFound = errors.New("reference image not found")

// Meta carries the precomputed fingerprint of a reference image, so
// similarity pre-checks never need to re-decode the file.
type Meta struct {
	ID     string `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Hash   uint64 `json:"hash"`
}

type entry struct {
	img  image.Image
	meta Meta
}

// Store resolves reference images by id. Ids map to <dir>/<id>.png; decoded
// images and their metadata are kept in a bounded LRU cache.
type Store struct {
	mu    sync.Mutex
	dir   string
	cache *lru.Cache[string, entry]
}

// NewStore creates a store over the given directory. cacheSize bounds the
// number of decoded images held in memory.
func NewStore(dir string, cacheSize int) (*Store, error) {
	if cacheSize < 1 {
		cacheSize = 1
	}
	cache, err := lru.New[string, entry](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, cache: cache}, nil
}

// Get returns the decoded reference image and its metadata.
func (s *Store) Get(id string) (image.Image, Meta, error) {
	if err := validID(id); err != nil {
		return nil, Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.cache.Get(id); ok {
		return e.img, e.meta, nil
	}

	img, err := disintegration.Open(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Meta{}, fmt.Errorf("reference %q: %w", id, ErrNotFound)
		}
		return nil, Meta{}, fmt.Errorf("decoding reference %q: %w", id, err)
	}

	e := entry{img: img, meta: metaFor(id, img)}
	s.cache.Add(id, e)
	return e.img, e.meta, nil
}

// Stat returns the metadata for a reference image without handing out the
// decoded pixels.
func (s *Store) Stat(id string) (Meta, error) {
	_, meta, err := s.Get(id)
	return meta, err
}

// Put saves an image under the given id and primes the cache with it.
func (s *Store) Put(id string, img image.Image) (Meta, error) {
	if err := validID(id); err != nil {
		return Meta{}, err
	}
	if img == nil || img.Bounds().Empty() {
		return Meta{}, fmt.Errorf("reference %q: empty image", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := disintegration.Save(img, s.path(id)); err != nil {
		return Meta{}, fmt.Errorf("saving reference %q: %w", id, err)
	}

	e := entry{img: img, meta: metaFor(id, img)}
	s.cache.Add(id, e)
	return e.meta, nil
}

// Remove deletes the stored image and evicts it from the cache. Removing an
// unknown id is not an error.
func (s *Store) Remove(id string) error {
	if err := validID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(id)
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing reference %q: %w", id, err)
	}
	return nil
}

// List returns the ids of all stored reference images, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".png") {
			ids = append(ids, strings.TrimSuffix(name, ".png"))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".png")
}

func metaFor(id string, img image.Image) Meta {
	b := img.Bounds()
	return Meta{
		ID:     id,
		Width:  b.Dx(),
		Height: b.Dy(),
		Hash:   layoutimg.PerceptualHash(img),
	}
}

// Ids become file names, so path separators and traversal are rejected.
func validID(id string) error {
	if id == "" {
		return errors.New("reference id is empty")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("reference id %q contains path elements", id)
	}
	return nil
}
