// Package buildcache guards the build-cache directory shared by all
// compiler invocations. Any number of orchestrators may hold the cache at
// once as long as they agree on the fact schema it was created for.
package buildcache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrIncompatibleCache is returned when the cache was stamped with a
// different fact schema fingerprint.
var ErrIncompatibleCache = errors.New("build cache belongs to a different fact schema")

// ErrCacheInUse is returned by Clear while the cache is held.
var ErrCacheInUse = errors.New("build cache is in use")

const (
	lockName  = ".factcorpus.lock"
	stampName = ".factcorpus-schema"
)

// Cache is a held build-cache directory.
type Cache struct {
	dir         string
	fingerprint string
	lock        *os.File
}

// Acquire creates dir if needed and takes a shared hold on it. The first
// holder stamps the fingerprint; later holders must present the same one.
func Acquire(dir, fingerprint string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating build cache: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving build cache: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(abs, lockName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening build cache lock: %w", err)
	}
	c := &Cache{dir: abs, fingerprint: fingerprint, lock: f}
	if err := c.claim(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) claim() error {
	if err := lockShared(c.lock); err != nil {
		return fmt.Errorf("locking build cache: %w", err)
	}
	stamp, ok, err := c.readStamp()
	if err != nil {
		return err
	}
	if !ok {
		if stamp, err = c.stamp(); err != nil {
			return err
		}
	}
	if stamp != c.fingerprint {
		return fmt.Errorf("%w: %s has %s, want %s", ErrIncompatibleCache, c.dir, stamp, c.fingerprint)
	}
	return nil
}

// stamp publishes the fingerprint with a hard link, which fails if another
// holder stamped the cache first; in that case the winner's stamp is
// returned.
func (c *Cache) stamp() (string, error) {
	tmp, err := os.CreateTemp(c.dir, stampName+".*")
	if err != nil {
		return "", fmt.Errorf("stamping build cache: %w", err)
	}
	defer os.Remove(tmp.Name())
	_, err = tmp.WriteString(c.fingerprint + "\n")
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("stamping build cache: %w", err)
	}

	err = os.Link(tmp.Name(), filepath.Join(c.dir, stampName))
	switch {
	case err == nil:
		return c.fingerprint, nil
	case errors.Is(err, os.ErrExist):
		stamp, _, rerr := c.readStamp()
		return stamp, rerr
	default:
		return "", fmt.Errorf("stamping build cache: %w", err)
	}
}

func (c *Cache) readStamp() (string, bool, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, stampName))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading build cache stamp: %w", err)
	}
	return strings.TrimSpace(string(data)), true, nil
}

// Dir returns the absolute cache directory.
func (c *Cache) Dir() string { return c.dir }

// Fingerprint returns the schema fingerprint the cache is stamped with.
func (c *Cache) Fingerprint() string { return c.fingerprint }

// Clear removes everything in the cache directory, including its stamp.
// It fails with ErrCacheInUse while any holder has the cache acquired.
func Clear(dir string) error {
	f, err := os.OpenFile(filepath.Join(dir, lockName), os.O_CREATE|os.O_RDWR, 0o644)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening build cache lock: %w", err)
	}
	defer f.Close()
	if err := tryLockExclusive(f); err != nil {
		return err
	}
	defer unlock(f)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading build cache: %w", err)
	}
	for _, e := range entries {
		if e.Name() == lockName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("clearing build cache: %w", err)
		}
	}
	return nil
}

// Release drops the hold. It is safe to call more than once.
func (c *Cache) Release() error {
	if c.lock == nil {
		return nil
	}
	err := unlock(c.lock)
	if cerr := c.lock.Close(); err == nil {
		err = cerr
	}
	c.lock = nil
	return err
}
