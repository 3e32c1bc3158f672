package vst2

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// FormatName is the format tag of VST2 descriptors.
const FormatName = "vst2"

// ErrUnavailable is returned by Instantiate and Describe when the binary
// was built without cgo.
var ErrUnavailable = errors.New("vst2: built without cgo")

// Extensions lists the file and bundle suffixes that may hold a VST2 plugin.
var Extensions = []string{".so", ".dll", ".vst"}

// uidSpace namespaces plugin UIDs derived from their install path.
var uidSpace = uuid.MustParse("6d1f7c1e-52a4-4c1b-9a55-0a5f2b1e3c77")

// Format loads VST2 plugins from shared libraries.
type Format struct {
	home string
	goos string
}

// NewFormat returns the VST2 format for the running platform.
func NewFormat() *Format {
	home, _ := os.UserHomeDir()

	return &Format{home: home, goos: runtime.GOOS}
}

// Name implements plugin.Format.
func (*Format) Name() string { return FormatName }

// DefaultSearchPaths implements plugin.Discoverer.
func (f *Format) DefaultSearchPaths() []string {
	var paths []string

	switch f.goos {
	case "windows":
		paths = []string{
			`C:\Program Files\VstPlugins`,
			`C:\Program Files\Steinberg\VstPlugins`,
			`C:\Program Files\Common Files\VST2`,
		}
	case "darwin":
		paths = []string{"/Library/Audio/Plug-Ins/VST"}
		if f.home != "" {
			paths = append(paths, filepath.Join(f.home, "Library", "Audio", "Plug-Ins", "VST"))
		}
	default:
		paths = []string{"/usr/lib/vst", "/usr/local/lib/vst"}
		if f.home != "" {
			paths = append(paths, filepath.Join(f.home, ".vst"))
		}
	}

	return paths
}

// FindCandidates implements plugin.Discoverer. It walks paths and returns
// every file or bundle directory with a VST2 extension, sorted. Unreadable
// paths are skipped.
func (*Format) FindCandidates(paths []string) []string {
	seen := make(map[string]struct{})

	for _, root := range paths {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}

				return nil
			}

			if !hasExtension(path) {
				return nil
			}

			seen[path] = struct{}{}

			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		})
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}

	slices.Sort(out)

	return out
}

func hasExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))

	return slices.Contains(Extensions, ext)
}

// UIDForPath returns the stable UID assigned to the plugin at path.
func UIDForPath(path string) string {
	return uuid.NewSHA1(uidSpace, []byte(filepath.Clean(path))).String()
}

func displayName(path, name string) string {
	if name != "" {
		return name
	}

	base := filepath.Base(path)

	return strings.TrimSuffix(base, filepath.Ext(base))
}
