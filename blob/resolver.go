//go:generate go run go.uber.org/mock/mockgen -source=resolver.go -destination=../mocks/mock_blob_resolver.go -package=mocks

// Package blob stores raw attachment bytes and hands back stable fetchable
// URLs. Storage is content-addressed: uploading the same bytes twice yields
// the same URL.
package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"stampchat/domain"
	"stampchat/errors"
)

type Resolver interface {
	Upload(data []byte, contentType string) (string, domain.AttachmentKind, error)
	Delete(url string) error
}

// DiskResolver writes blobs under a root directory served at baseURL/blobs/.
type DiskResolver struct {
	root    string
	baseURL string
	log     *slog.Logger
}

func NewDiskResolver(root, baseURL string, log *slog.Logger) (*DiskResolver, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrAttachmentUploadFailed, err)
	}
	return &DiskResolver{
		root:    root,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		log:     log,
	}, nil
}

// Root is the directory to mount under /blobs/ on the HTTP server.
func (r *DiskResolver) Root() string { return r.root }

// Upload persists the bytes and returns the fetchable URL plus the detected
// attachment kind. The kind comes from sniffing the bytes, not from the
// declared content type: a mislabeled upload is still classified correctly
// or rejected.
func (r *DiskResolver) Upload(data []byte, contentType string) (string, domain.AttachmentKind, error) {
	if len(data) == 0 {
		return "", domain.AttachmentNone, fmt.Errorf("%w: empty payload", errors.ErrAttachmentUploadFailed)
	}

	detected := mimetype.Detect(data)
	kind, err := kindOf(detected.String())
	if err != nil {
		r.log.Warn("Rejecting attachment",
			"declared", contentType,
			"detected", detected.String())
		return "", domain.AttachmentNone, err
	}

	sum := sha256.Sum256(data)
	name := hex.EncodeToString(sum[:]) + detected.Extension()
	path := filepath.Join(r.root, name)

	if _, err := os.Stat(path); err == nil {
		// Same bytes were uploaded before; the existing URL stays valid.
		return r.urlFor(name), kind, nil
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", domain.AttachmentNone, fmt.Errorf("%w: %v", errors.ErrAttachmentUploadFailed, err)
	}
	return r.urlFor(name), kind, nil
}

// Delete removes the blob a URL points to. Unknown URLs are a no-op.
func (r *DiskResolver) Delete(url string) error {
	idx := strings.LastIndex(url, "/blobs/")
	if idx < 0 {
		return nil
	}
	name := url[idx+len("/blobs/"):]
	// The name is a hex digest plus extension; refuse anything that could
	// escape the root.
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(r.root, name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (r *DiskResolver) urlFor(name string) string {
	return r.baseURL + "/blobs/" + name
}

func kindOf(detected string) (domain.AttachmentKind, error) {
	switch {
	case strings.HasPrefix(detected, "image/"):
		return domain.AttachmentImage, nil
	case strings.HasPrefix(detected, "video/"):
		return domain.AttachmentVideo, nil
	default:
		return domain.AttachmentNone,
			fmt.Errorf("%w: %s", errors.ErrUnsupportedAttachment, detected)
	}
}
