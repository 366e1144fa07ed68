package engine

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jlkiri/ikki/pkg/ikkierr"
)

// archiveDir creates an uncompressed tar archive of dir's contents
// (flattened at the archive root), run on a bounded blocking worker so
// it cannot stall concurrent jobs in the same layer.
func archiveDir(ctx context.Context, dir string) (*bytes.Reader, error) {
	buf, err := runBlocking(ctx, func() (*bytes.Buffer, error) {
		return tarDir(dir)
	})
	if err != nil {
		return nil, ikkierr.ArchiveFailure(err.Error())
	}
	return bytes.NewReader(buf.Bytes()), nil
}

func tarDir(dir string) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tw, f)
		return err
	})
	if walkErr != nil {
		return nil, walkErr
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}

	return &buf, nil
}
