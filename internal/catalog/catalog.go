// Package catalog maps dataset keys to files under the storage root.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"strategist/internal/frame"
	"strategist/internal/market"
	"strategist/internal/storage"
	"strategist/logger"
)

// ErrDatasetNotFound is returned for a valid key without a backing file.
var ErrDatasetNotFound = errors.New("dataset not found")

// NotFoundError names the key and the path that was checked.
type NotFoundError struct {
	Key  market.DatasetKey
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("dataset not found: %s (expected at %s)", e.Key, e.Path)
}

func (e *NotFoundError) Unwrap() error { return ErrDatasetNotFound }

// Location is where a dataset lives.
type Location struct {
	Key    market.DatasetKey
	Path   string // relative to the store root
	URI    string
	Format frame.Format
	Info   storage.Info
}

// Catalog resolves keys over a fixed naming convention.
type Catalog struct {
	store  storage.Store
	format frame.Format
	log    *logger.Log
}

// New returns a catalog reading files of the given format from store.
func New(store storage.Store, format frame.Format) *Catalog {
	if format == "" {
		format = frame.FormatParquet
	}
	return &Catalog{store: store, format: format, log: logger.GetLogger()}
}

func (c *Catalog) Store() storage.Store { return c.store }
func (c *Catalog) Format() frame.Format { return c.format }

// PathFor is SYMBOL/TIMEFRAME/SYMBOL_TIMEFRAME.ext.
func (c *Catalog) PathFor(key market.DatasetKey) string {
	name := fmt.Sprintf("%s_%s.%s", key.Symbol, key.Timeframe, c.format.Extension())
	return path.Join(string(key.Symbol), string(key.Timeframe), name)
}

// Resolve parses symbol and timeframe and checks the file exists. Unknown
// identifiers are rejected before the store is touched.
func (c *Catalog) Resolve(ctx context.Context, symbol, timeframe string) (Location, error) {
	key, err := market.ParseKey(symbol, timeframe)
	if err != nil {
		return Location{}, err
	}
	return c.ResolveKey(ctx, key)
}

func (c *Catalog) ResolveKey(ctx context.Context, key market.DatasetKey) (Location, error) {
	key, err := market.ParseKey(string(key.Symbol), string(key.Timeframe))
	if err != nil {
		return Location{}, err
	}
	p := c.PathFor(key)
	info, err := c.store.Stat(ctx, p)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return Location{}, &NotFoundError{Key: key, Path: c.uri(p)}
		}
		return Location{}, fmt.Errorf("stat %s: %w", c.uri(p), err)
	}
	return Location{Key: key, Path: p, URI: c.uri(p), Format: c.format, Info: info}, nil
}

// ListAvailable returns the keys whose files exist, in catalog order. Files
// that do not follow the naming convention are skipped.
func (c *Catalog) ListAvailable(ctx context.Context) ([]market.DatasetKey, error) {
	paths, err := c.store.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.store.Root(), err)
	}
	seen := make(map[market.DatasetKey]bool)
	var keys []market.DatasetKey
	for _, p := range paths {
		key, ok := c.KeyFor(p)
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	market.SortKeys(keys)
	c.log.WithComponent("catalog").WithFields(logger.Fields{
		"root":     c.store.Root(),
		"files":    len(paths),
		"datasets": len(keys),
	}).Debug("inventory listed")
	return keys, nil
}

// KeyFor maps a store path back to its key when it is exactly the path the
// catalog would resolve for that key.
func (c *Catalog) KeyFor(p string) (market.DatasetKey, bool) {
	parts := strings.Split(p, "/")
	if len(parts) != 3 {
		return market.DatasetKey{}, false
	}
	sym, tf := market.Symbol(parts[0]), market.Timeframe(parts[1])
	key := market.DatasetKey{Symbol: sym, Timeframe: tf}
	if !key.Valid() || c.PathFor(key) != p {
		return market.DatasetKey{}, false
	}
	return key, true
}

func (c *Catalog) uri(p string) string {
	return strings.TrimSuffix(c.store.Root(), "/") + "/" + p
}
