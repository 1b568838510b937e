package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
)

// Local serves files below a directory.
type Local struct {
	root string
	mode FingerprintMode
}

// NewLocal returns a store rooted at dir.
func NewLocal(dir string, mode FingerprintMode) *Local {
	if mode == "" {
		mode = FingerprintContent
	}
	return &Local{root: filepath.Clean(dir), mode: mode}
}

func (l *Local) Root() string { return l.root }

// Abs maps a store path to the file system path.
func (l *Local) Abs(p string) string {
	return filepath.Join(l.root, filepath.FromSlash(path.Clean("/" + p)))
}

func (l *Local) Stat(ctx context.Context, p string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	abs := l.Abs(p)
	st, err := os.Stat(abs)
	if err != nil {
		return Info{}, wrapNotExist(p, err)
	}
	if st.IsDir() {
		return Info{}, fmt.Errorf("%w: %s is a directory", ErrNotExist, p)
	}
	info := Info{Path: p, Size: st.Size(), ModTime: st.ModTime()}
	switch l.mode {
	case FingerprintStat:
		info.Fingerprint = strconv.FormatInt(st.Size(), 10) + "-" + strconv.FormatInt(st.ModTime().UnixNano(), 10)
	default:
		data, err := os.ReadFile(abs)
		if err != nil {
			return Info{}, wrapNotExist(p, err)
		}
		info.Fingerprint = contentFingerprint(data)
	}
	return info, nil
}

func (l *Local) ReadFile(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.Abs(p))
	if err != nil {
		return nil, wrapNotExist(p, err)
	}
	return data, nil
}

// List walks the directory below prefix and returns file paths relative to
// the root, sorted.
func (l *Local) List(ctx context.Context, prefix string) ([]string, error) {
	base := l.Abs(prefix)
	var out []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", base, err)
	}
	sort.Strings(out)
	return out, nil
}

func wrapNotExist(p string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotExist, p)
	}
	return err
}

func contentFingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
