package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/imgsync/imgsync/pkg/errors"
)

const driveFolderMime = "application/vnd.google-apps.folder"

// Drive serves images from a Google Drive folder holding one sub-folder per
// vendor directory.
type Drive struct {
	client *drive.Service
	rootID string
}

// NewDrive creates a Drive store authenticated with a service account file.
func NewDrive(ctx context.Context, rootID, credentialsFile string) (*Drive, error) {
	if rootID == "" {
		return nil, fmt.Errorf("drive folder id is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create drive service")
	}
	return &Drive{client: svc, rootID: rootID}, nil
}

func (d *Drive) List(ctx context.Context, dir string) ([]string, error) {
	folderID, err := d.folderID(ctx, dir)
	if err != nil {
		return nil, err
	}
	if folderID == "" {
		slog.Debug("drive_folder_missing", "dir", dir)
		return nil, nil
	}

	files, err := d.list(ctx, fmt.Sprintf("'%s' in parents and trashed=false and mimeType != '%s'", folderID, driveFolderMime))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return filterImages(names), nil
}

func (d *Drive) Read(ctx context.Context, dir, name string) ([]byte, error) {
	folderID, err := d.folderID(ctx, dir)
	if err != nil {
		return nil, err
	}
	if folderID == "" {
		return nil, fmt.Errorf("drive folder not found: %s", dir)
	}
	files, err := d.list(ctx, fmt.Sprintf("'%s' in parents and name = '%s' and trashed=false", folderID, escapeQuery(name)))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("drive file not found: %s/%s", dir, name)
	}

	resp, err := d.client.Files.Get(files[0].Id).Context(ctx).Download()
	if err != nil {
		return nil, errors.Wrap(err, "failed to download drive file")
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read drive file")
	}
	return data, nil
}

// folderID walks dir one path segment at a time. It returns "" when a
// segment does not exist.
func (d *Drive) folderID(ctx context.Context, dir string) (string, error) {
	id := d.rootID
	for _, segment := range strings.Split(strings.Trim(dir, "/"), "/") {
		if segment == "" || segment == "." {
			continue
		}
		q := fmt.Sprintf("'%s' in parents and name = '%s' and mimeType = '%s' and trashed=false", id, escapeQuery(segment), driveFolderMime)
		files, err := d.list(ctx, q)
		if err != nil {
			return "", err
		}
		if len(files) == 0 {
			return "", nil
		}
		id = files[0].Id
	}
	return id, nil
}

func (d *Drive) list(ctx context.Context, query string) ([]*drive.File, error) {
	var all []*drive.File
	pageToken := ""
	for {
		call := d.client.Files.List().
			Context(ctx).
			Q(query).
			Fields("nextPageToken, files(id, name, mimeType)")
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		r, err := call.Do()
		if err != nil {
			return nil, errors.Wrap(err, "failed to list drive files")
		}
		all = append(all, r.Files...)
		pageToken = r.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return all, nil
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
