// Package storage lists and reads vendor image pools from local disk, S3 or
// Google Drive.
package storage

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
)

// Store is a read-only pool of image files grouped into vendor directories.
type Store interface {
	// List returns the image file names in dir, sorted by name. A missing
	// directory lists as empty.
	List(ctx context.Context, dir string) ([]string, error)
	// Read returns the raw bytes of dir/name.
	Read(ctx context.Context, dir, name string) ([]byte, error)
}

// Backend names accepted by Open.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendDrive = "drive"
)

// Options selects and configures a backend.
type Options struct {
	Backend string

	// Root is the images root directory for the local backend.
	Root string

	Bucket string
	Prefix string
	Region string

	// DriveFolderID is the root folder holding one sub-folder per vendor.
	DriveFolderID   string
	CredentialsFile string
}

// Open creates the Store named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendLocal:
		return NewLocal(opts.Root)
	case BackendS3:
		return NewS3(ctx, opts.Bucket, opts.Prefix, opts.Region)
	case BackendDrive:
		return NewDrive(ctx, opts.DriveFolderID, opts.CredentialsFile)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", opts.Backend)
	}
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// IsImage reports whether name carries one of the accepted image extensions.
func IsImage(name string) bool {
	return imageExtensions[strings.ToLower(path.Ext(name))]
}

// filterImages keeps image names and sorts them.
func filterImages(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if IsImage(n) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
