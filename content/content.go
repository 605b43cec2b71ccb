// Package content provides the filesystem the local datasets are read from.
package content

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed data/*.json
var bundled embed.FS

// Bundled returns the datasets compiled into the binary.
func Bundled() fs.FS {
	sub, err := fs.Sub(bundled, "data")
	if err != nil {
		panic(err)
	}
	return sub
}

// FS returns dir as a filesystem, or the bundled datasets when dir is empty.
func FS(dir string) fs.FS {
	if dir == "" {
		return Bundled()
	}
	return os.DirFS(dir)
}
