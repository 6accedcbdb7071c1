package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	localBackend = "local"
	tempSuffix   = ".tmp"
	maxKeyTries  = 3
)

// Local stores blobs on the filesystem under a root directory. The key is the
// path relative to root.
type Local struct {
	root  string
	namer KeyNamer
}

// NewLocal creates a Local backend rooted at root, creating it if needed.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root %q: %w", root, err)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	return &Local{root: absRoot, namer: NewKeyNamer()}, nil
}

func (l *Local) Backend() string { return localBackend }

// Root returns the absolute storage root.
func (l *Local) Root() string { return l.root }

// abs maps a validated key to a path that is guaranteed to live under root.
func (l *Local) abs(key string) (string, error) {
	if _, _, err := ParseKey(key); err != nil {
		return "", err
	}
	joined := filepath.Join(l.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(l.root, joined)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %q escapes storage root", ErrInvalidKey, key)
	}
	return joined, nil
}

// Save streams the payload into a temp file next to its destination and
// renames it into place, so a key never points at a partial file.
func (l *Local) Save(ctx context.Context, payload *Payload, namespace string) (string, error) {
	if err := checkPayload(payload); err != nil {
		return "", &Error{Op: "save", Backend: localBackend, Err: err}
	}

	var (
		key, dest string
		err       error
	)
	for range maxKeyTries {
		key, err = l.namer.Key(namespace, payload.Name, payload.ContentType, payload.KeySuffix)
		if err != nil {
			return "", &Error{Op: "save", Backend: localBackend, Err: err}
		}
		if dest, err = l.abs(key); err != nil {
			return "", &Error{Op: "save", Backend: localBackend, Key: key, Err: err}
		}
		_, statErr := os.Stat(dest)
		if errors.Is(statErr, fs.ErrNotExist) {
			break
		}
		if statErr != nil {
			return "", &Error{Op: "save", Backend: localBackend, Key: key, Err: classifyLocal(statErr)}
		}
		dest = ""
	}
	if dest == "" {
		return "", &Error{Op: "save", Backend: localBackend, Err: errors.New("could not allocate a free key")}
	}

	if err := l.write(ctx, dest, payload); err != nil {
		return "", &Error{Op: "save", Backend: localBackend, Key: key, Err: classifyLocal(err)}
	}
	return key, nil
}

func (l *Local) write(ctx context.Context, dest string, payload *Payload) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("mkdir %q: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*"+tempSuffix)
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmp := f.Name()

	n, werr := io.Copy(f, ctxReader{ctx: ctx, r: payload.Body})
	if werr == nil {
		werr = f.Sync()
	}
	cerr := f.Close()

	switch {
	case werr != nil:
		os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("stream write: %w", werr)
	case cerr != nil:
		os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("flush: %w", cerr)
	case payload.Size > 0 && n != payload.Size:
		os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("%w: declared %d, got %d", ErrSizeMismatch, payload.Size, n)
	}

	if err := os.Chmod(tmp, 0o640); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("rename to %q: %w", dest, err)
	}
	return nil
}

// Delete removes the file behind key. Silently succeeds on ENOENT.
func (l *Local) Delete(_ context.Context, key string) error {
	p, err := l.abs(key)
	if err != nil {
		return &Error{Op: "delete", Backend: localBackend, Key: key, Err: err}
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &Error{Op: "delete", Backend: localBackend, Key: key, Err: classifyLocal(err)}
	}
	return nil
}

// Resolve reads the file behind key. The content type is inferred from the
// key's extension, which was itself derived from the declared type.
func (l *Local) Resolve(_ context.Context, key string) (*Object, error) {
	p, err := l.abs(key)
	if err != nil {
		return nil, &Error{Op: "resolve", Backend: localBackend, Key: key, Err: err}
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, &Error{Op: "resolve", Backend: localBackend, Key: key, Err: classifyLocal(err)}
	}
	return &Object{
		Key:         key,
		ContentType: ContentTypeForKey(key),
		Size:        int64(len(data)),
		Data:        data,
	}, nil
}

func classifyLocal(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", ErrAccessDenied, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return markTransient(err)
}

func checkPayload(p *Payload) error {
	switch {
	case p == nil:
		return fmt.Errorf("%w: nil payload", ErrInvalidPayload)
	case p.Body == nil:
		return fmt.Errorf("%w: nil body", ErrInvalidPayload)
	case p.Size < 0:
		return fmt.Errorf("%w: negative size %d", ErrInvalidPayload, p.Size)
	}
	return nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
