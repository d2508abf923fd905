package vfs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosh/internal/storage"
)

// fakeClock hands out increasing times one second apart.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newFS(t *testing.T) (*FS, *storage.Memory) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	fs := New(WithClock(clock.Now))
	store := storage.NewMemory()
	require.NoError(t, fs.Init(context.Background(), store))
	return fs, store
}

func TestIsFolderPath(t *testing.T) {
	type testCase struct {
		path string
		want bool
	}

	testCases := []testCase{
		{path: "/", want: true},
		{path: "/docs", want: true},
		{path: "/docs/notes", want: true},
		{path: "/docs/", want: true},
		{path: "docs/notes", want: true},
		{path: ".hidden", want: true},
		{path: "/with space/ok", want: true},
		{path: "//docs", want: false},
		{path: "/docs//notes", want: false},
		{path: "/nul\x00byte", want: false},
		{path: "/tab\there", want: false},
		{path: `/back\slash`, want: false},
		{path: "/docs/../etc", want: false},
		{path: "./docs", want: false},
		{path: "/emoji/\U0001F600", want: true},
		{path: "/latin/\u00e9t\u00e9", want: true},
		{path: "/a\xff", want: false},
		{path: "/sentinel/\U0010FFFF", want: false},
		{path: "/" + strings.Repeat("a", MaxPathLen), want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.want, IsFolderPath(tc.path))
		})
	}
}

func TestIsAbsolutePath(t *testing.T) {
	assert.True(t, IsAbsolutePath("/"))
	assert.True(t, IsAbsolutePath("/a"))
	assert.False(t, IsAbsolutePath("a"))
	assert.False(t, IsAbsolutePath(""))
}

func TestResolve(t *testing.T) {
	type testCase struct {
		base, path, want string
	}

	testCases := []testCase{
		{base: "/", path: "docs", want: "/docs"},
		{base: "/docs", path: "notes", want: "/docs/notes"},
		{base: "/docs/notes", path: "..", want: "/docs"},
		{base: "/docs", path: "/etc/", want: "/etc"},
		{base: "/docs", path: "", want: "/docs"},
		{base: "", path: "a", want: "/a"},
		{base: "/", path: "../..", want: "/"},
	}

	for _, tc := range testCases {
		t.Run(tc.base+"+"+tc.path, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(tc.base, tc.path))
		})
	}
}

func TestExists(t *testing.T) {
	fs, _ := newFS(t)
	ctx := context.Background()

	ok, err := fs.Exists(ctx, "/never/created")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = fs.Exists(ctx, "/bad\x00path")
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = fs.CreateFolder(ctx, "/docs")
	require.NoError(t, err)

	for _, p := range []string{"/docs", "/docs/"} {
		ok, err = fs.Exists(ctx, p)
		require.NoError(t, err)
		assert.True(t, ok, p)
	}
}

func TestCreateFolderAbsolute(t *testing.T) {
	fs, store := newFS(t)
	ctx := context.Background()

	_, err := fs.CreateFolderAbsolute(ctx, "/a/b")
	require.ErrorIs(t, err, ErrParentNotFound)
	assert.Equal(t, 0, store.Len())

	a, err := fs.CreateFolderAbsolute(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, "/a", a.Path)
	assert.Equal(t, "a", a.Metadata.Name)
	assert.Equal(t, KindFolder, a.Kind)
	assert.NotEmpty(t, a.UID)

	b, err := fs.CreateFolderAbsolute(ctx, "/a/b")
	require.NoError(t, err)
	assert.Equal(t, b.Metadata.CreatedAt, b.Metadata.ModifiedAt)
	assert.Equal(t, 2, store.Len())

	_, err = fs.CreateFolderAbsolute(ctx, "/a/b")
	require.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, 2, store.Len())

	var pe *PathError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "mkdir", pe.Op)
	assert.Equal(t, "/a/b", pe.Path)
}

func TestCreateFolderAbsolute_Validation(t *testing.T) {
	type testCase struct {
		name    string
		path    string
		wantErr error
	}

	testCases := []testCase{
		{name: "grammar", path: "/a//b", wantErr: ErrInvalidPath},
		{name: "relative", path: "a", wantErr: ErrInvalidPath},
		{name: "root", path: "/", wantErr: ErrInvalidPath},
		{name: "nul", path: "/a\x00", wantErr: ErrInvalidPath},
		{name: "missing parent", path: "/x/y/z", wantErr: ErrParentNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs, store := newFS(t)
			_, err := fs.CreateFolderAbsolute(context.Background(), tc.path)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, 0, store.Len())
			assert.Equal(t, 0, fs.Len())
		})
	}
}

func TestCreateFolderRelative(t *testing.T) {
	fs, _ := newFS(t)
	ctx := context.Background()

	_, err := fs.CreateFolder(ctx, "docs")
	require.NoError(t, err)

	e, err := fs.CreateFolderRelative(ctx, "/docs", "notes")
	require.NoError(t, err)
	assert.Equal(t, "/docs/notes", e.Path)

	e, err = fs.CreateFolderRelative(ctx, "/docs/notes", "/top")
	require.NoError(t, err)
	assert.Equal(t, "/top", e.Path)

	_, err = fs.CreateFolderRelative(ctx, "/docs", "../escape")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestCreateFolder_HiddenNames(t *testing.T) {
	fs, _ := newFS(t)
	e, err := fs.CreateFolder(context.Background(), "/.config")
	require.NoError(t, err)
	assert.True(t, e.Metadata.IsHidden)
}

func TestReadFolder(t *testing.T) {
	fs, _ := newFS(t)
	ctx := context.Background()

	for _, p := range []string{"/docs", "/docs/notes", "/docs2", "/music"} {
		_, err := fs.CreateFolder(ctx, p)
		require.NoError(t, err)
	}

	entries, err := fs.ReadFolder(ctx, "/docs")
	require.NoError(t, err)
	var paths []string
	for _, e := range entries {
		assert.True(t, strings.HasPrefix(e.Path, "/docs"), e.Path)
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{"/docs", "/docs/notes", "/docs2"}, paths)

	_, err = fs.CreateFolder(ctx, "/docs/zeta")
	require.NoError(t, err)
	entries, err = fs.ReadFolder(ctx, "/docs")
	require.NoError(t, err)
	assert.Len(t, entries, 4)
	assert.Equal(t, "/docs/zeta", entries[2].Path)

	entries, err = fs.ReadFolder(ctx, "/bad//path")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadFolder_RunesOutsideBMP(t *testing.T) {
	fs, store := newFS(t)
	ctx := context.Background()

	for _, p := range []string{"/docs", "/docs/\U0001F600", "/docs/\uFFFD", "/docs/z"} {
		_, err := fs.CreateFolder(ctx, p)
		require.NoError(t, err)
	}

	ok, err := fs.Exists(ctx, "/docs/\U0001F600")
	require.NoError(t, err)
	require.True(t, ok)

	entries, err := fs.ReadFolder(ctx, "/docs/")
	require.NoError(t, err)
	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{"/docs/z", "/docs/\uFFFD", "/docs/\U0001F600"}, paths)

	warmed := New()
	require.NoError(t, warmed.Init(ctx, store))
	_, ok = warmed.Cached("/docs/\U0001F600")
	assert.True(t, ok)
	assert.Equal(t, 4, warmed.Len())
}

func TestInvalidUTF8IsRejected(t *testing.T) {
	fs, store := newFS(t)
	ctx := context.Background()

	_, err := fs.CreateFolder(ctx, "/a\xff")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = fs.CreateFile(ctx, "/b\xfe", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = fs.Exists(ctx, "/a\xff")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = fs.Touch(ctx, "/a\xff")
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.Zero(t, store.Len())
}

func TestLogsCarryComponent(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	fs := New()
	require.NoError(t, fs.Init(context.Background(), storage.NewMemory()))
	assert.Contains(t, buf.String(), `"component":"vfs"`)
	assert.Contains(t, buf.String(), "vfs storage initialized")

	var own bytes.Buffer
	buf.Reset()
	fs = New(WithLogger(slog.New(slog.NewJSONHandler(&own, nil))))
	require.NoError(t, fs.Init(context.Background(), storage.NewMemory()))
	assert.Contains(t, own.String(), "vfs storage initialized")
	assert.Empty(t, buf.String())
}

func TestStat(t *testing.T) {
	fs, _ := newFS(t)
	ctx := context.Background()

	root, err := fs.Stat(ctx, "/")
	require.NoError(t, err)
	assert.True(t, root.IsFolder())

	_, err = fs.Stat(ctx, "/missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = fs.Stat(ctx, "relative")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestCreateFile(t *testing.T) {
	fs, _ := newFS(t)
	ctx := context.Background()

	f, err := fs.CreateFile(ctx, "/readme", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, KindFile, f.Kind)
	assert.Equal(t, []byte("hello"), f.Contents)
	assert.Len(t, f.Digest, 64)

	other, err := fs.CreateFile(ctx, "/other", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, f.Digest, other.Digest)

	_, err = fs.CreateFile(ctx, "/readme/child", nil)
	assert.ErrorIs(t, err, ErrNotFolder)

	_, err = fs.CreateFolder(ctx, "/readme/dir")
	assert.ErrorIs(t, err, ErrNotFolder)

	stored, err := fs.Stat(ctx, "/readme")
	require.NoError(t, err)
	assert.Equal(t, f, stored)
}

func TestTouch(t *testing.T) {
	fs, _ := newFS(t)
	ctx := context.Background()

	created, err := fs.Touch(ctx, "/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, KindFile, created.Kind)

	touched, err := fs.Touch(ctx, "/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, created.UID, touched.UID)
	assert.Equal(t, created.Metadata.CreatedAt, touched.Metadata.CreatedAt)
	assert.Greater(t, touched.Metadata.ModifiedAt, created.Metadata.ModifiedAt)

	cached, ok := fs.Cached("/notes.txt")
	require.True(t, ok)
	assert.Equal(t, touched.Metadata.ModifiedAt, cached.Metadata.ModifiedAt)

	_, err = fs.Touch(ctx, "/")
	assert.NoError(t, err)
}

func TestIndexMirrorsAfterCommit(t *testing.T) {
	fs := New()
	store := storage.NewMemory()
	require.NoError(t, fs.Init(context.Background(), store))
	store.Latency = 20 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		_, err := fs.CreateFolder(context.Background(), "/slow")
		done <- err
	}()

	time.Sleep(5 * time.Millisecond)
	_, ok := fs.Cached("/slow")
	assert.False(t, ok)

	require.NoError(t, <-done)
	_, ok = fs.Cached("/slow")
	assert.True(t, ok)
	assert.Equal(t, []string{"/slow"}, fs.Indexed())
}

func TestInitWarmsIndex(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	first := New()
	require.NoError(t, first.Init(ctx, store))
	_, err := first.CreateFolder(ctx, "/kept")
	require.NoError(t, err)

	second := New()
	require.NoError(t, second.Init(ctx, store))
	assert.Equal(t, []string{"/kept"}, second.Indexed())
}

func TestUninitialized(t *testing.T) {
	fs := New()
	ctx := context.Background()

	_, err := fs.Exists(ctx, "/a")
	assert.ErrorIs(t, err, ErrStorageUninitialized)

	_, err = fs.ReadFolder(ctx, "/")
	assert.ErrorIs(t, err, ErrStorageUninitialized)

	_, err = fs.CreateFolder(ctx, "/a")
	assert.ErrorIs(t, err, ErrStorageUninitialized)

	fs2, _ := newFS(t)
	require.NoError(t, fs2.Close())
	_, err = fs2.Exists(ctx, "/a")
	assert.ErrorIs(t, err, ErrStorageUninitialized)
}

type brokenStore struct {
	*storage.Memory
}

var errDisk = errors.New("disk on fire")

func (*brokenStore) Get(context.Context, string) (storage.Record, bool, error) {
	return storage.Record{}, false, errDisk
}

func (*brokenStore) Range(context.Context, string, string) ([]storage.Record, error) {
	return nil, nil
}

func TestStorageFailureIsIOError(t *testing.T) {
	fs := New()
	require.NoError(t, fs.Init(context.Background(), &brokenStore{Memory: storage.NewMemory()}))

	_, err := fs.Exists(context.Background(), "/a")
	require.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, errDisk)

	_, err = fs.CreateFolder(context.Background(), "/a")
	assert.ErrorIs(t, err, ErrIO)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "parent folder not found", Describe(pathErr("mkdir", "/a/b", ErrParentNotFound)))
	assert.Equal(t, "already exists", Describe(ErrAlreadyExists))
	assert.Equal(t, "io error: disk on fire", Describe(wrapIO("exists", "/a", errDisk)))
}
