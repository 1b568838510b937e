// Package storage abstracts the dataset root so the catalog and loader work
// the same over a local directory or an S3 prefix.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotExist is wrapped by Stat and ReadFile when the object is missing.
var ErrNotExist = errors.New("object does not exist")

// Info describes a stored object. Fingerprint changes whenever the content
// changes.
type Info struct {
	Path        string
	Size        int64
	ModTime     time.Time
	Fingerprint string
}

// Store is read-only access to dataset files addressed by slash-separated
// paths relative to the root.
type Store interface {
	Stat(ctx context.Context, path string) (Info, error)
	ReadFile(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Root() string
}

// FingerprintMode selects how local files are fingerprinted.
type FingerprintMode string

const (
	// FingerprintContent hashes the file bytes with SHA-256.
	FingerprintContent FingerprintMode = "content"
	// FingerprintStat uses size and modification time. It skips hashing but
	// misses a same-size rewrite that keeps the old mtime (cp -p, rsync -t).
	FingerprintStat FingerprintMode = "stat"
)

// ParseFingerprintMode accepts "content" (default when empty) or "stat".
func ParseFingerprintMode(s string) (FingerprintMode, error) {
	switch FingerprintMode(strings.ToLower(strings.TrimSpace(s))) {
	case FingerprintContent, "":
		return FingerprintContent, nil
	case FingerprintStat:
		return FingerprintStat, nil
	default:
		return "", fmt.Errorf("invalid fingerprint mode %q (use: content, stat)", s)
	}
}

// IsS3 reports whether root addresses an S3 location.
func IsS3(root string) bool {
	return strings.HasPrefix(strings.ToLower(root), "s3://")
}

// ParseS3URL splits s3://bucket/prefix into its parts. The prefix never has
// leading or trailing slashes.
func ParseS3URL(raw string) (bucket, prefix string, err error) {
	if !IsS3(raw) {
		return "", "", fmt.Errorf("not an s3 url: %q", raw)
	}
	rest := raw[len("s3://"):]
	bucket, prefix, _ = strings.Cut(rest, "/")
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return "", "", fmt.Errorf("s3 url %q has no bucket", raw)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}
