package artwork

import (
	"errors"
	"fmt"
	"image/jpeg"
	"io/fs"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/20after4/configdir"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

const DefaultMaxDiskCacheBytes = 20 * 1_048_576

// DiskStore writes decoded artwork into a cache directory so that surfaces
// which only accept a URL (MPRIS artUrl, notification image-path) can
// reference it.
type DiskStore struct {
	dir      string
	maxBytes int64

	mu                         sync.Mutex
	filesWrittenSinceLastPrune bool
}

func NewDiskStore(dir string, maxBytes int64) (*DiskStore, error) {
	if dir == "" {
		return nil, errors.New("no artwork cache dir")
	}
	if err := configdir.MakePath(dir); err != nil {
		return nil, fmt.Errorf("failed to create artwork cache dir: %w", err)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDiskCacheBytes
	}
	return &DiskStore{dir: dir, maxBytes: maxBytes}, nil
}

// Path returns the on-disk location of a, writing it first if needed.
func (d *DiskStore) Path(a *Artwork) (string, error) {
	if a == nil || a.Image == nil {
		return "", ErrEmptyPayload
	}
	path := d.filePathFor(a.Ref)

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := os.Stat(path); err == nil {
		// modTime doubles as last access for pruning
		now := time.Now()
		_ = os.Chtimes(path, now, now)
		return path, nil
	}
	if err := d.writeJpeg(a, path); err != nil {
		return "", err
	}
	return path, nil
}

// URL returns a file:// URL for a, writing it first if needed.
func (d *DiskStore) URL(a *Artwork) (string, error) {
	path, err := d.Path(a)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: path}).String(), nil
}

func (d *DiskStore) filePathFor(ref string) string {
	name := uuid.NewSHA1(uuid.NameSpaceURL, []byte(ref)).String()
	return filepath.Join(d.dir, name+".jpg")
}

// must be called with mu held
func (d *DiskStore) writeJpeg(a *Artwork, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to cache artwork: %w", err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, a.Image, &jpeg.Options{Quality: 90}); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to encode artwork: %w", err)
	}
	d.filesWrittenSinceLastPrune = true
	return nil
}

// Prune deletes the least recently used files until the directory is
// under its size limit. It is a no-op if nothing was written since the last run.
func (d *DiskStore) Prune() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.filesWrittenSinceLastPrune {
		return
	}

	type fileInfo struct {
		path    string
		size    int64
		modTime int64
	}
	var all []fileInfo
	var totalSize int64
	filepath.WalkDir(d.dir, func(path string, de fs.DirEntry, err error) error {
		if err != nil || de.IsDir() || !strings.HasSuffix(path, ".jpg") {
			return nil
		}
		if info, err := de.Info(); err == nil {
			all = append(all, fileInfo{path: path, size: info.Size(), modTime: info.ModTime().UnixMilli()})
			totalSize += info.Size()
		}
		return nil
	})

	if totalSize > d.maxBytes {
		sort.Slice(all, func(i, j int) bool {
			return all[i].modTime < all[j].modTime
		})
		var freed int64
		for i := 0; i < len(all) && totalSize > d.maxBytes; i++ {
			if err := os.Remove(all[i].path); err == nil {
				totalSize -= all[i].size
				freed += all[i].size
			}
		}
		log.Printf("Pruned %s of cached artwork", humanize.Bytes(uint64(freed)))
	}
	d.filesWrittenSinceLastPrune = false
}
