package tftp

import (
	"io"
	"os"
	"path"
	"path/filepath"
)

// FileStore supplies the files transfers read and write. The engine never
// interprets file contents; it only moves bytes.
//
// Open errors decide the error packet a read request is answered with:
// a not-exist error maps to CodeFileNotFound, a permission error to
// CodeAccessViolation, anything else to CodeUnknownTransferID. Create
// errors map the same way for write requests.
type FileStore interface {
	// Open opens the named file for reading.
	Open(name string) (io.ReadCloser, error)

	// Create opens the named file for writing, truncating it when it
	// already exists.
	Create(name string) (io.WriteCloser, error)

	// Remove deletes the named file. Used to discard partial output when
	// a write transfer aborts.
	Remove(name string) error
}

// DirStore is a FileStore serving a single directory. Requested names are
// confined to the root: path traversal in a name cannot reach outside it.
type DirStore struct {
	root string
}

// NewDirStore creates a store rooted at the given directory.
func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

// resolve maps a wire filename onto a path under the root. The name is
// cleaned as if rooted, so ".." segments and absolute names collapse into
// the root instead of escaping it.
func (d *DirStore) resolve(name string) string {
	clean := path.Clean("/" + filepath.ToSlash(name))
	return filepath.Join(d.root, filepath.FromSlash(clean))
}

func (d *DirStore) Open(name string) (io.ReadCloser, error) {
	return os.Open(d.resolve(name))
}

func (d *DirStore) Create(name string) (io.WriteCloser, error) {
	return os.Create(d.resolve(name))
}

func (d *DirStore) Remove(name string) error {
	return os.Remove(d.resolve(name))
}
