// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package alto

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/spf13/afero"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSScheme prefixes Google Cloud Storage locations.
const GCSScheme = "gs://"

// Store is a tree of documents addressed by slash-separated names relative
// to the store root.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Store interface {
	// List returns every document name, sorted.
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) ([]byte, error)

	// Write creates or replaces name, creating parents as needed.
	Write(ctx context.Context, name string, data []byte) error
	Close() error

	// String describes the store location for logs.
	String() string
}

// OpenStore opens the store at location: a gs://bucket/prefix URI or a
// directory on fsys. opts are passed to the storage client.
func OpenStore(ctx context.Context, location string, fsys afero.Fs, opts ...option.ClientOption) (Store, error) {
	if !strings.HasPrefix(location, GCSScheme) {
		return NewFSStore(fsys, location), nil
	}
	bucket, prefix, err := ParseGCSURI(location)
	if err != nil {
		return nil, err
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return NewGCSStore(client, bucket, prefix), nil
}

// ParseGCSURI splits gs://bucket/prefix. The prefix is returned without a
// trailing slash and may be empty.
func ParseGCSURI(uri string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(uri, GCSScheme)
	if !ok {
		return "", "", fmt.Errorf("not a %s URI: %q", GCSScheme, uri)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in %q", uri)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// =============================================================================
// Filesystem store
// =============================================================================

// FSStore keeps documents under a directory of an afero filesystem.
type FSStore struct {
	fs   afero.Fs
	root string
}

// NewFSStore creates an FSStore rooted at root. A nil fsys uses the OS
// filesystem.
func NewFSStore(fsys afero.Fs, root string) *FSStore {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FSStore{fs: fsys, root: filepath.Clean(root)}
}

// Root returns the store directory.
func (s *FSStore) Root() string { return s.root }

// List implements Store.
func (s *FSStore) List(ctx context.Context) ([]string, error) {
	var names []string
	err := afero.Walk(s.fs, s.root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.root, err)
	}
	sort.Strings(names)
	return names, nil
}

// Read implements Store.
func (s *FSStore) Read(_ context.Context, name string) ([]byte, error) {
	return afero.ReadFile(s.fs, s.path(name))
}

// Write implements Store.
func (s *FSStore) Write(_ context.Context, name string, data []byte) error {
	p := s.path(name)
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", name, err)
	}
	return afero.WriteFile(s.fs, p, data, 0o644)
}

// Close implements Store.
func (s *FSStore) Close() error { return nil }

func (s *FSStore) String() string { return s.root }

func (s *FSStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// =============================================================================
// Cloud Storage store
// =============================================================================

// GCSStore keeps documents as objects under a bucket prefix.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore creates a GCSStore. The store owns client and closes it.
func NewGCSStore(client *storage.Client, bucket, prefix string) *GCSStore {
	return &GCSStore{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// List implements Store.
func (s *GCSStore) List(ctx context.Context) ([]string, error) {
	q := &storage.Query{}
	if s.prefix != "" {
		q.Prefix = s.prefix + "/"
	}

	var names []string
	it := s.client.Bucket(s.bucket).Objects(ctx, q)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", s, err)
		}
		// Folder placeholders end in a slash.
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		names = append(names, strings.TrimPrefix(attrs.Name, q.Prefix))
	}
	sort.Strings(names)
	return names, nil
}

// Read implements Store.
func (s *GCSStore) Read(ctx context.Context, name string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.object(name)).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.object(name), err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Write implements Store.
func (s *GCSStore) Write(ctx context.Context, name string, data []byte) error {
	w := s.client.Bucket(s.bucket).Object(s.object(name)).NewWriter(ctx)
	w.ContentType = "application/xml"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing %s: %w", s.object(name), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", s.object(name), err)
	}
	return nil
}

// Close implements Store.
func (s *GCSStore) Close() error { return s.client.Close() }

func (s *GCSStore) String() string {
	if s.prefix == "" {
		return GCSScheme + s.bucket
	}
	return GCSScheme + s.bucket + "/" + s.prefix
}

func (s *GCSStore) object(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}
