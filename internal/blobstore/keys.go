package blobstore

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
)

// KeyPrefix is the first segment of every key.
const KeyPrefix = "uploads"

const (
	tokenLength   = 14
	maxSlugLength = 64
	defaultSlug   = "file"
	defaultExt    = "bin"
)

var (
	nonWordRun  = regexp.MustCompile(`[^a-z0-9_]+`)
	namespaceRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
	keyNameRe   = regexp.MustCompile(`^[a-z0-9_-]+\.[a-z0-9]+(-[a-z0-9_-]+)?\.[a-z0-9-]+$`)
)

// KeyNamer turns (original name, declared type, namespace) into a storage
// key. Two calls never yield the same key; the token comes from crypto/rand.
type KeyNamer struct {
	token func() (string, error)
}

// NewKeyNamer returns a KeyNamer backed by crypto/rand.
func NewKeyNamer() KeyNamer {
	return KeyNamer{token: func() (string, error) {
		return common.MakeRandAlnumString(tokenLength)
	}}
}

// Derive returns the slug and extension used for a key. The extension comes
// from the declared content type when it is meaningful, falling back to the
// filename suffix and finally to "bin".
func (n KeyNamer) Derive(originalName, contentType string) (slug, ext string) {
	base := path.Base(strings.ReplaceAll(originalName, `\`, "/"))
	nameExt := sanitizeExtension(path.Ext(base))
	stem := strings.TrimSuffix(base, path.Ext(base))
	if base == "." || base == "/" {
		stem = ""
	}
	return Slugify(stem), extension(nameExt, contentType)
}

// Key builds a fresh key for namespace. suffix is optional.
func (n KeyNamer) Key(namespace, originalName, contentType, suffix string) (string, error) {
	if !namespaceRe.MatchString(namespace) {
		return "", fmt.Errorf("%w: namespace %q", ErrInvalidKey, namespace)
	}
	gen := n.token
	if gen == nil {
		gen = NewKeyNamer().token
	}
	token, err := gen()
	if err != nil {
		return "", fmt.Errorf("generate key token: %w", err)
	}

	slug, ext := n.Derive(originalName, contentType)
	name := slug + "." + token
	if strings.TrimSpace(suffix) != "" {
		name += "-" + Slugify(suffix)
	}
	return path.Join(KeyPrefix, namespace, name+"."+ext), nil
}

// Slugify lower-cases s and collapses every run of non-word characters into
// one hyphen. The result is never empty.
func Slugify(s string) string {
	s = nonWordRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugLength {
		s = strings.TrimRight(s[:maxSlugLength], "-")
	}
	if s == "" {
		return defaultSlug
	}
	return s
}

// ParseKey validates key and splits it into namespace and object name.
func ParseKey(key string) (namespace, name string, err error) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != KeyPrefix {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if !namespaceRe.MatchString(parts[1]) || !keyNameRe.MatchString(parts[2]) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return parts[1], parts[2], nil
}

func extension(nameExt, contentType string) string {
	mt := normalizeMediaType(contentType)
	if mt != "" && mt != DefaultContentType {
		if nameExt != "" {
			if ct, ok := ContentTypeForExtension(nameExt); ok && ct == mt {
				return nameExt
			}
		}
		if ext := extensionForType(mt); ext != "" {
			return ext
		}
	}
	if nameExt != "" {
		return nameExt
	}
	return defaultExt
}
