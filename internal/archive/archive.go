// Package archive exports a backup namespace to a single tar stream that can
// be kept outside the bucket.
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rowjay/sitebak/internal/backup"
	"github.com/rowjay/sitebak/internal/compress"
	"github.com/rowjay/sitebak/internal/cryptoutil"
	"github.com/rowjay/sitebak/internal/storage"
)

// Source is the read side of the backup manager used by Export.
type Source interface {
	Objects(ctx context.Context, id string) (*backup.Metadata, []storage.ObjectInfo, error)
	Open(ctx context.Context, id, rel string) (io.ReadCloser, error)
}

type Options struct {
	Compression   string
	Encrypt       bool
	EncryptionKey string
}

type Result struct {
	Metadata *backup.Metadata
	Files    int
	Bytes    int64 // uncompressed
	Written  int64 // bytes written to the destination
}

// FileName suggests an archive name for a backup under the given options.
func FileName(id string, opts Options) string {
	name := id + compress.Extension(opts.Compression)
	if opts.Encrypt {
		name += ".enc"
	}
	return name
}

// Export writes every object of backup id into w as tar, compressed and then
// optionally encrypted. Entry names are relative to the backup namespace.
func Export(ctx context.Context, src Source, id string, w io.Writer, opts Options) (res *Result, err error) {
	meta, objects, err := src.Objects(ctx, id)
	if err != nil {
		return nil, err
	}

	counter := &countingWriter{w: w}
	writer := io.Writer(counter)
	var closers []io.Closer
	defer func() {
		// release encoder goroutines and buffers when bailing out early
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i].Close()
			}
		}
	}()
	if opts.Encrypt {
		key, err := cryptoutil.Key(cryptoutil.ExportKeySetting, opts.EncryptionKey)
		if err != nil {
			return nil, err
		}
		enc, err := cryptoutil.EncryptWriter(writer, key)
		if err != nil {
			return nil, err
		}
		writer = enc
		closers = append(closers, enc)
	}
	comp, err := compress.WrapWriter(opts.Compression, writer)
	if err != nil {
		return nil, err
	}
	closers = append(closers, comp)
	tw := tar.NewWriter(comp)

	res = &Result{Metadata: meta}
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := writeEntry(ctx, tw, src, id, obj)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", obj.Key, err)
		}
		res.Files++
		res.Bytes += n
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	for len(closers) > 0 {
		last := closers[len(closers)-1]
		closers = closers[:len(closers)-1]
		if err := last.Close(); err != nil {
			return nil, err
		}
	}
	res.Written = counter.n
	return res, nil
}

// Inspect reads an archive written by Export with the same options and
// counts its entries and their uncompressed bytes.
func Inspect(r io.Reader, opts Options) (*Result, error) {
	if opts.Encrypt {
		key, err := cryptoutil.Key(cryptoutil.ExportKeySetting, opts.EncryptionKey)
		if err != nil {
			return nil, err
		}
		plain, err := cryptoutil.DecryptReader(r, key)
		if err != nil {
			return nil, err
		}
		r = plain
	}
	rc, err := compress.WrapReader(opts.Compression, r)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	res := &Result{}
	tr := tar.NewReader(rc)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read archive: %w", err)
		}
		n, err := io.Copy(io.Discard, tr)
		if err != nil {
			return nil, fmt.Errorf("read archive %s: %w", hdr.Name, err)
		}
		if n != hdr.Size {
			return nil, fmt.Errorf("read archive %s: %d of %d bytes", hdr.Name, n, hdr.Size)
		}
		res.Files++
		res.Bytes += n
	}
}

// Matches reports whether an inspected archive holds what Export reported.
func (r *Result) Matches(other *Result) bool {
	return r.Files == other.Files && r.Bytes == other.Bytes
}

func writeEntry(ctx context.Context, tw *tar.Writer, src Source, id string, obj storage.ObjectInfo) (int64, error) {
	r, err := src.Open(ctx, id, obj.Key)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	hdr := &tar.Header{
		Name:     obj.Key,
		Mode:     0o644,
		Size:     obj.Size,
		ModTime:  obj.Modified,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatPAX,
	}
	if obj.ETag != "" {
		hdr.PAXRecords = map[string]string{"SITEBAK.etag": obj.ETag}
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return 0, err
	}
	return io.Copy(tw, r)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
