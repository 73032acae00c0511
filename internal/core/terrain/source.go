package terrain

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mholt/archives"
)

// ResolveSource makes a tile source usable as a plain directory. A
// directory path is returned as-is with a no-op cleanup; an archive
// (zip, tar, 7z, ...) is extracted to a temporary directory first.
func ResolveSource(ctx context.Context, path string) (dir string, cleanup func(), err error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, fmt.Errorf("tile source: %w", err)
	}
	if info.IsDir() {
		return path, func() {}, nil
	}
	return extractArchive(ctx, path)
}

// extractArchive unpacks every regular file in the archive into a temp
// directory, flattening the layout: tiles are matched by filename, so
// nesting inside the archive does not matter.
func extractArchive(ctx context.Context, archivePath string) (string, func(), error) {
	destDir, err := os.MkdirTemp("", "tiles-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(destDir) }

	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("open archive %s: %w", archivePath, err)
	}

	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		reader, err := fsys.Open(path)
		if err != nil {
			return err
		}
		defer reader.Close()

		out, err := os.Create(filepath.Join(destDir, filepath.Base(path)))
		if err != nil {
			return err
		}
		defer out.Close()

		_, err = io.Copy(out, reader)
		return err
	})
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("extract archive %s: %w", archivePath, err)
	}

	return destDir, cleanup, nil
}
