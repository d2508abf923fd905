// Package vfs is the path-addressed virtual filesystem. Entries are persisted
// in a storage.Store keyed by absolute path and mirrored into an in-memory
// index once a write has committed.
//
// The store is the source of truth. A just-created entry is only guaranteed to
// be visible to other callers after the create call has returned.
package vfs

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"rosh/internal/logger"
	"rosh/internal/storage"
)

type FS struct {
	mu    sync.RWMutex
	index map[string]Entry
	store storage.Store
	now   func() time.Time
	log   *slog.Logger
}

type Option func(*FS)

// WithClock overrides the wall clock used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(fs *FS) { fs.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(fs *FS) { fs.log = l }
}

func New(opts ...Option) *FS {
	fs := &FS{
		index: make(map[string]Entry),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(fs)
	}
	if fs.log == nil {
		fs.log = logger.For("vfs")
	}
	return fs
}

// Init attaches the store and warms the index from it.
func (fs *FS) Init(ctx context.Context, store storage.Store) error {
	lo, hi := storage.PrefixRange("/")
	recs, err := store.Range(ctx, lo, hi)
	if err != nil {
		return wrapIO("init", "/", err)
	}

	index := make(map[string]Entry, len(recs))
	for _, rec := range recs {
		e, err := decodeEntry(rec.Doc)
		if err != nil {
			fs.log.Warn("skipping undecodable entry",
				slog.String("path", rec.Key),
				slog.Any("error", err))
			continue
		}
		index[e.Path] = e
	}

	fs.mu.Lock()
	fs.store = store
	fs.index = index
	fs.mu.Unlock()

	fs.log.Info("vfs storage initialized", slog.Int("entries", len(index)))
	return nil
}

// Close releases the store. Later calls fail with ErrStorageUninitialized.
func (fs *FS) Close() error {
	fs.mu.Lock()
	st := fs.store
	fs.store = nil
	fs.mu.Unlock()
	if st == nil {
		return nil
	}
	return st.Close()
}

func (fs *FS) backend() (storage.Store, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.store == nil {
		return nil, ErrStorageUninitialized
	}
	return fs.store, nil
}

// Exists reports whether an entry is stored at p. A valid path that was never
// created is not an error.
func (fs *FS) Exists(ctx context.Context, p string) (bool, error) {
	if !IsFolderPath(p) {
		fs.log.Debug("invalid path", slog.String("path", p))
		return false, pathErr("exists", p, ErrInvalidPath)
	}
	st, err := fs.backend()
	if err != nil {
		return false, pathErr("exists", p, err)
	}
	_, ok, err := st.Get(ctx, normalize(p))
	if err != nil {
		return false, wrapIO("exists", p, err)
	}
	fs.log.Debug("exists", slog.String("path", p), slog.Bool("exists", ok))
	return ok, nil
}

// ReadFolder lists every entry whose path falls in [p, p+MaxSentinel), in path
// order. An invalid path yields an empty listing rather than an error.
func (fs *FS) ReadFolder(ctx context.Context, p string) ([]Entry, error) {
	if !IsFolderPath(p) {
		fs.log.Debug("read folder on invalid path", slog.String("path", p))
		return nil, nil
	}
	st, err := fs.backend()
	if err != nil {
		return nil, pathErr("readdir", p, err)
	}
	lo, hi := storage.PrefixRange(p)
	recs, err := st.Range(ctx, lo, hi)
	if err != nil {
		return nil, wrapIO("readdir", p, err)
	}

	entries := make([]Entry, 0, len(recs))
	for _, rec := range recs {
		e, err := decodeEntry(rec.Doc)
		if err != nil {
			return nil, wrapIO("readdir", rec.Key, err)
		}
		entries = append(entries, e)
	}
	fs.log.Debug("folder read", slog.String("path", p), slog.Int("entries", len(entries)))
	return entries, nil
}

// Stat returns the entry at p. The root always exists as a synthetic folder.
func (fs *FS) Stat(ctx context.Context, p string) (Entry, error) {
	if !IsFolderPath(p) {
		return Entry{}, pathErr("stat", p, ErrInvalidPath)
	}
	if !IsAbsolutePath(p) {
		return Entry{}, pathErr("stat", p, ErrInvalidPath)
	}
	p = normalize(p)
	if p == "/" {
		return Entry{Path: "/", Kind: KindFolder, Metadata: Metadata{Name: "/"}}, nil
	}
	st, err := fs.backend()
	if err != nil {
		return Entry{}, pathErr("stat", p, err)
	}
	rec, ok, err := st.Get(ctx, p)
	if err != nil {
		return Entry{}, wrapIO("stat", p, err)
	}
	if !ok {
		return Entry{}, pathErr("stat", p, ErrNotFound)
	}
	e, err := decodeEntry(rec.Doc)
	if err != nil {
		return Entry{}, wrapIO("stat", p, err)
	}
	return e, nil
}

func (fs *FS) CreateFolder(ctx context.Context, p string) (Entry, error) {
	return fs.CreateFolderRelative(ctx, "/", p)
}

// CreateFolderRelative joins p onto base when p is relative and delegates to
// CreateFolderAbsolute.
func (fs *FS) CreateFolderRelative(ctx context.Context, base, p string) (Entry, error) {
	return fs.CreateFolderAbsolute(ctx, Join(base, p))
}

// CreateFolderAbsolute validates p in order (grammar, absolute, not existing,
// not root, parent exists) and only then writes the folder in a single
// transaction. A failed check writes nothing.
func (fs *FS) CreateFolderAbsolute(ctx context.Context, p string) (Entry, error) {
	return fs.create(ctx, "mkdir", p, KindFolder, nil)
}

// CreateFile creates a file entry under the same rules as a folder; the parent
// must also be a folder.
func (fs *FS) CreateFile(ctx context.Context, p string, contents []byte) (Entry, error) {
	return fs.create(ctx, "create", p, KindFile, contents)
}

// Touch bumps the modification time of the entry at p, creating an empty file
// when nothing is there.
func (fs *FS) Touch(ctx context.Context, p string) (Entry, error) {
	e, err := fs.Stat(ctx, p)
	if errors.Is(err, ErrNotFound) {
		return fs.CreateFile(ctx, p, nil)
	}
	if err != nil {
		return Entry{}, err
	}
	if e.Path == "/" {
		return e, nil
	}

	e.Metadata.ModifiedAt = fs.now().UnixMilli()
	if err := fs.commit(ctx, "touch", e, true); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (fs *FS) create(ctx context.Context, op, p string, kind Kind, contents []byte) (Entry, error) {
	if !IsFolderPath(p) {
		fs.log.Debug("invalid name", slog.String("op", op), slog.String("path", p))
		return Entry{}, pathErr(op, p, ErrInvalidPath)
	}
	if !IsAbsolutePath(p) {
		fs.log.Debug("path must be absolute", slog.String("op", op), slog.String("path", p))
		return Entry{}, pathErr(op, p, ErrInvalidPath)
	}
	p = normalize(p)

	exists, err := fs.Exists(ctx, p)
	if err != nil {
		return Entry{}, err
	}
	if exists {
		return Entry{}, pathErr(op, p, ErrAlreadyExists)
	}

	parts := split(p)
	if len(parts) == 0 {
		fs.log.Debug("cannot create root", slog.String("path", p))
		return Entry{}, pathErr(op, p, ErrInvalidPath)
	}

	parent := parentOf(parts)
	if parent != "/" {
		pe, err := fs.Stat(ctx, parent)
		if errors.Is(err, ErrNotFound) {
			fs.log.Debug("parent missing", slog.String("path", p), slog.String("parent", parent))
			return Entry{}, pathErr(op, p, ErrParentNotFound)
		}
		if err != nil {
			return Entry{}, err
		}
		if !pe.IsFolder() {
			return Entry{}, pathErr(op, p, ErrNotFolder)
		}
	}

	now := fs.now().UnixMilli()
	name := parts[len(parts)-1]
	e := Entry{
		UID:  uuid.NewString(),
		Path: p,
		Kind: kind,
		Metadata: Metadata{
			Name:       name,
			CreatedAt:  now,
			ModifiedAt: now,
			IsHidden:   isHiddenName(name),
		},
	}
	if kind == KindFile {
		e.Contents = slices.Clone(contents)
		sum := blake3.Sum256(contents)
		e.Digest = hex.EncodeToString(sum[:])
	}

	if err := fs.commit(ctx, op, e, false); err != nil {
		return Entry{}, err
	}
	fs.log.Debug("entry created", slog.String("path", p), slog.String("kind", kind.String()))
	return e, nil
}

// commit persists e in one transaction and mirrors it into the index after
// the commit succeeds.
func (fs *FS) commit(ctx context.Context, op string, e Entry, update bool) error {
	st, err := fs.backend()
	if err != nil {
		return pathErr(op, e.Path, err)
	}
	doc, err := e.encode()
	if err != nil {
		return wrapIO(op, e.Path, err)
	}

	tx, err := st.Begin(ctx)
	if err != nil {
		return wrapIO(op, e.Path, err)
	}
	rec := storage.Record{Key: e.Path, UID: e.UID, Doc: doc}
	if update {
		err = tx.Update(ctx, rec)
	} else {
		err = tx.Add(ctx, rec)
	}
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, storage.ErrDuplicate) {
			return pathErr(op, e.Path, ErrAlreadyExists)
		}
		if errors.Is(err, storage.ErrMissing) {
			return pathErr(op, e.Path, ErrNotFound)
		}
		return wrapIO(op, e.Path, err)
	}
	if err := tx.Commit(); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return pathErr(op, e.Path, ErrAlreadyExists)
		}
		return wrapIO(op, e.Path, err)
	}

	fs.mu.Lock()
	fs.index[e.Path] = e
	fs.mu.Unlock()
	return nil
}

// Cached returns the index mirror's copy of the entry at p.
func (fs *FS) Cached(p string) (Entry, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	e, ok := fs.index[normalize(p)]
	return e, ok
}

// Indexed lists the paths held by the index mirror in order.
func (fs *FS) Indexed() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	paths := make([]string, 0, len(fs.index))
	for p := range fs.index {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

func (fs *FS) Len() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.index)
}
