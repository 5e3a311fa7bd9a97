package pathmap

import (
	"path/filepath"
	"strings"
)

// EncodedExt is the container extension every encode produces, regardless of
// the source container.
const EncodedExt = ".mkv"

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mkv":  {},
	".avi":  {},
	".mov":  {},
	".wmv":  {},
	".flv":  {},
	".mpeg": {},
	".mpg":  {},
	".webm": {},
	".iso":  {},
}

// IsVideoPath reports whether the path carries a recognized video extension.
func IsVideoPath(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Mapper translates between source and destination tree paths. It is pure: no
// method touches the filesystem.
type Mapper struct {
	SourceRoot string
	DestRoot   string
	LinkPrefix string
	LinkSuffix string
}

// New constructs a Mapper over cleaned absolute roots.
func New(sourceRoot, destRoot, linkPrefix, linkSuffix string) *Mapper {
	return &Mapper{
		SourceRoot: filepath.Clean(sourceRoot),
		DestRoot:   filepath.Clean(destRoot),
		LinkPrefix: linkPrefix,
		LinkSuffix: linkSuffix,
	}
}

// Identity derives the stable reconciliation key from a path relative to its
// tree root: slash-separated, extension stripped, lowercased. Source and
// destination variants of the same media item map to the same identity.
func Identity(rel string) string {
	rel = filepath.ToSlash(rel)
	ext := filepath.Ext(rel)
	return strings.ToLower(strings.TrimSuffix(rel, ext))
}

// SourceIdentity resolves an absolute source-tree path to its identity.
// The boolean is false when the path lies outside the source root.
func (m *Mapper) SourceIdentity(path string) (string, bool) {
	rel, ok := m.rel(m.SourceRoot, path)
	if !ok {
		return "", false
	}
	return Identity(rel), true
}

// DestIdentity resolves an absolute destination-tree path to its identity.
func (m *Mapper) DestIdentity(path string) (string, bool) {
	rel, ok := m.rel(m.DestRoot, path)
	if !ok {
		return "", false
	}
	return Identity(rel), true
}

// ToDestination maps a source file to its canonical destination path: same
// relative directory and stem, extension normalized to EncodedExt.
func (m *Mapper) ToDestination(sourcePath string) string {
	rel, ok := m.rel(m.SourceRoot, sourcePath)
	if !ok {
		rel = filepath.Base(sourcePath)
	}
	stem := strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.Join(m.DestRoot, stem+EncodedExt)
}

// ToSource maps a destination file back to the source-tree stem it was derived
// from. The original extension is not recoverable, so the returned path has no
// extension; Identity(ToSource(p)) equals the identity of the source file.
func (m *Mapper) ToSource(destPath string) string {
	rel, ok := m.rel(m.DestRoot, destPath)
	if !ok {
		rel = filepath.Base(destPath)
	}
	stem := strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.Join(m.SourceRoot, stem)
}

// LinkPath returns the version symlink path for an encoded file: a sibling
// named with the configured prefix and suffix around the stem. Media servers
// treat the suffix as a version label.
func (m *Mapper) LinkPath(destPath string) string {
	dir := filepath.Dir(destPath)
	base := filepath.Base(destPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, m.LinkPrefix+stem+m.LinkSuffix+ext)
}

func (m *Mapper) rel(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, filepath.Clean(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return rel, true
}
