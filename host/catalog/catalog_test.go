package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-pluginhost/dsp/buffer"
	"github.com/cwbudde/algo-pluginhost/host/plugin"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fileDescriptor(path string) plugin.Descriptor {
	return plugin.Descriptor{Name: filepath.Base(path), Format: "fake", Path: path, NumInputs: 2, NumOutputs: 2}
}

// fakeFormat discovers one descriptor per candidate; candidates listed in
// broken fail to describe. block, when set, is received from before each
// Describe call.
type fakeFormat struct {
	candidates []string
	broken     map[string]bool
	block      chan struct{}

	mu        sync.Mutex
	described []string
	searched  []string
}

func (f *fakeFormat) Name() string { return "fake" }

func (f *fakeFormat) Instantiate(plugin.Descriptor, float64, int) (plugin.Plugin, error) {
	return nil, errors.New("not loadable")
}

func (f *fakeFormat) DefaultSearchPaths() []string { return []string{"/default"} }

func (f *fakeFormat) FindCandidates(paths []string) []string {
	f.mu.Lock()
	f.searched = paths
	f.mu.Unlock()

	return f.candidates
}

func (f *fakeFormat) Describe(candidate string) ([]plugin.Descriptor, error) {
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	f.described = append(f.described, candidate)
	f.mu.Unlock()

	if f.broken[candidate] {
		return nil, errors.New("bad binary")
	}

	return []plugin.Descriptor{fileDescriptor(candidate)}, nil
}

func (f *fakeFormat) describedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.described)
}

// plainFormat cannot be discovered.
type plainFormat struct{}

func (plainFormat) Name() string { return "plain" }

func (plainFormat) Instantiate(plugin.Descriptor, float64, int) (plugin.Plugin, error) {
	return nopPlugin{}, nil
}

type nopPlugin struct{}

func (nopPlugin) Prepare(float64, int)                             {}
func (nopPlugin) Release()                                         {}
func (nopPlugin) NumInputChannels() int                            { return 2 }
func (nopPlugin) NumOutputChannels() int                           { return 2 }
func (nopPlugin) ProcessBlock(*buffer.Buffer, *plugin.EventBuffer) {}
func (nopPlugin) Close() error                                     { return nil }

func registryWith(t *testing.T, formats ...plugin.Format) *plugin.Registry {
	t.Helper()

	r := plugin.NewRegistry()
	for _, f := range formats {
		require.NoError(t, r.Register(f))
	}

	return r
}

func TestKnownList(t *testing.T) {
	t.Parallel()

	k := NewKnownList()

	a := fileDescriptor("/p/a.so")
	b := fileDescriptor("/p/b.so")

	assert.True(t, k.Add(a))
	assert.True(t, k.Add(b))

	updated := a
	updated.Version = "2.0"
	assert.False(t, k.Add(updated), "same identifier must replace")

	require.Equal(t, 2, k.Len())

	got, ok := k.Lookup(a.Identifier())
	require.True(t, ok)
	assert.Equal(t, "2.0", got.Version)

	assert.True(t, k.HasPath("/p/b.so"))
	assert.False(t, k.HasPath("/p/c.so"))
	assert.False(t, k.HasPath(""))

	assert.Len(t, k.Find("B.SO"), 1)
	assert.Len(t, k.Find(""), 2)

	assert.True(t, k.Remove(a.Identifier()))
	assert.False(t, k.Remove(a.Identifier()))

	got, ok = k.Lookup(b.Identifier())
	require.True(t, ok, "index must be rebuilt after Remove")
	assert.Equal(t, b, got)
	assert.Equal(t, []plugin.Descriptor{b}, k.Descriptors())
}

func TestKnownListSaveLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "plugins.yaml")

	k := NewKnownList()
	k.Add(fileDescriptor("/p/a.so"))
	k.Add(plugin.Descriptor{Name: "Gain", Format: "builtin", UID: "gain", Version: "1.0.0", Category: "Utility"})

	require.NoError(t, k.Save(path))

	loaded, err := LoadKnownList(path)
	require.NoError(t, err)
	assert.Equal(t, k.Descriptors(), loaded.Descriptors())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestLoadKnownList(t *testing.T) {
	t.Parallel()

	t.Run("missing file is empty", func(t *testing.T) {
		t.Parallel()

		k, err := LoadKnownList(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Zero(t, k.Len())
	})

	t.Run("invalid entries dropped", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "plugins.yaml")
		data := "version: 1\nplugins:\n  - name: ok\n    format: builtin\n    uid: gain\n  - name: no format\n    uid: x\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		k, err := LoadKnownList(path)
		require.NoError(t, err)
		require.Equal(t, 1, k.Len())
		assert.Equal(t, "ok", k.Descriptors()[0].Name)
	})

	t.Run("garbage and newer versions", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()

		garbage := filepath.Join(dir, "garbage.yaml")
		require.NoError(t, os.WriteFile(garbage, []byte("plugins: [[["), 0o644))

		_, err := LoadKnownList(garbage)
		assert.Error(t, err)

		newer := filepath.Join(dir, "newer.yaml")
		require.NoError(t, os.WriteFile(newer, []byte("version: 99\n"), 0o644))

		_, err = LoadKnownList(newer)
		assert.ErrorContains(t, err, "unsupported version")
	})
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	t.Setenv("HOME", "/tmp/home")

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, filepath.Join(appDirName, knownListFile)), path)
}

func TestScannerScan(t *testing.T) {
	t.Parallel()

	f := &fakeFormat{
		candidates: []string{"/p/a.so", "/p/bad.so", "/p/b.so"},
		broken:     map[string]bool{"/p/bad.so": true},
	}

	known := NewKnownList()
	s := NewScanner(registryWith(t, plainFormat{}, f), known, WithLogger(quietLogger()))

	c, err := s.Scan(context.Background(), map[string][]string{"fake": {"/p"}})
	require.NoError(t, err)

	assert.False(t, c.Cancelled)
	assert.Equal(t, []plugin.Descriptor{fileDescriptor("/p/a.so"), fileDescriptor("/p/b.so")}, c.Found)
	require.Len(t, c.Failed, 1)
	assert.Equal(t, "/p/bad.so", c.Failed[0].Candidate)
	assert.Equal(t, []string{"/p"}, f.searched)
	assert.Equal(t, 2, known.Len())
	assert.False(t, s.Scanning())
}

func TestScannerDefaultPathsAndSkip(t *testing.T) {
	t.Parallel()

	f := &fakeFormat{candidates: []string{"/p/a.so", "/p/b.so"}}

	known := NewKnownList()
	known.Add(fileDescriptor("/p/a.so"))

	s := NewScanner(registryWith(t, f), known, WithLogger(quietLogger()))

	c, err := s.Scan(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"/default"}, f.searched)
	assert.Equal(t, 1, c.Skipped)
	assert.Len(t, c.Found, 1)

	rescan := NewScanner(registryWith(t, f), known, WithLogger(quietLogger()), WithRescan(true))

	c, err = rescan.Scan(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, c.Skipped)
	assert.Len(t, c.Found, 2)
}

func TestScannerSingleScan(t *testing.T) {
	t.Parallel()

	f := &fakeFormat{candidates: []string{"/p/a.so"}, block: make(chan struct{})}
	s := NewScanner(registryWith(t, f), NewKnownList(), WithLogger(quietLogger()))

	done, err := s.Start(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, s.Scanning())

	_, err = s.Start(context.Background(), nil)
	require.ErrorIs(t, err, ErrScanInProgress)

	close(f.block)

	c, ok := <-done
	require.True(t, ok)
	assert.Len(t, c.Found, 1)

	_, ok = <-done
	assert.False(t, ok, "completion channel must be closed")

	_, err = s.Scan(context.Background(), nil)
	assert.NoError(t, err, "a finished scanner can scan again")
}

func TestScannerStop(t *testing.T) {
	t.Parallel()

	f := &fakeFormat{
		candidates: []string{"/p/1.so", "/p/2.so", "/p/3.so", "/p/4.so"},
		block:      make(chan struct{}),
	}
	s := NewScanner(registryWith(t, f), NewKnownList(), WithLogger(quietLogger()))

	done, err := s.Start(context.Background(), nil)
	require.NoError(t, err)

	// Let the first candidate through, then stop while the second is pending.
	f.block <- struct{}{}
	s.Stop()
	close(f.block)

	select {
	case c := <-done:
		assert.True(t, c.Cancelled)
		assert.LessOrEqual(t, f.describedCount(), 2, "scan must halt within one step")
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not stop")
	}
}

func TestScannerReportsScanningUntilDelivered(t *testing.T) {
	t.Parallel()

	f := &fakeFormat{candidates: []string{"/p/a.so"}, block: make(chan struct{})}
	s := NewScanner(registryWith(t, f), NewKnownList(), WithLogger(quietLogger()))

	done, err := s.Start(context.Background(), nil)
	require.NoError(t, err)

	close(f.block)

	require.Eventually(t, func() bool { return len(done) == 1 }, 5*time.Second, time.Millisecond)

	c := <-done
	assert.Len(t, c.Found, 1)

	_, ok := <-done
	require.False(t, ok)
	assert.False(t, s.Scanning(), "closed channel means the scanner is idle")
}

func TestScannerStopBeforeStartIsDiscarded(t *testing.T) {
	t.Parallel()

	f := &fakeFormat{candidates: []string{"/p/a.so", "/p/b.so"}}
	s := NewScanner(registryWith(t, f), NewKnownList(), WithLogger(quietLogger()))

	s.Stop()

	c, err := s.Scan(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, c.Cancelled)
	assert.Len(t, c.Found, 2)
	assert.False(t, s.Scanning())
}

func TestScannerContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeFormat{candidates: []string{"/p/a.so"}}
	s := NewScanner(registryWith(t, f), NewKnownList(), WithLogger(quietLogger()))

	c, err := s.Scan(ctx, nil)
	require.NoError(t, err)
	assert.True(t, c.Cancelled)
	assert.Zero(t, f.describedCount())
}

func TestWatcher(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	w := NewWatcher([]string{dir, filepath.Join(dir, "missing")},
		WithLogger(quietLogger()), WithDebounce(50*time.Millisecond), WithExtensions(".so"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan []string, 4)
	errc := make(chan error, 1)

	go func() {
		errc <- w.Run(ctx, func(paths []string) { changes <- paths })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.so"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.so"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.so"), []byte("xy"), 0o644))

	select {
	case paths := <-changes:
		assert.Equal(t, []string{filepath.Join(dir, "a.so"), filepath.Join(dir, "b.so")}, paths)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	assert.NoError(t, <-errc)
}

func TestWatcherNoWatchablePaths(t *testing.T) {
	t.Parallel()

	w := NewWatcher([]string{filepath.Join(t.TempDir(), "missing")}, WithLogger(quietLogger()))

	err := w.Run(context.Background(), func([]string) {})
	assert.Error(t, err)
}
