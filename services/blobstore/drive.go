package blobstore

import (
	"bytes"
	"context"
	"fmt"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// DriveStore keeps media in a shared Google Drive folder. Objects are
// addressed by their generated name; the returned URL is the file's
// WebViewLink.
type DriveStore struct {
	srv      *drive.Service
	folderID string
}

// NewDriveStore authenticates with a service account credentials file.
func NewDriveStore(ctx context.Context, credentialsFile, folderID string) (*DriveStore, error) {
	srv, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveScope))
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return &DriveStore{srv: srv, folderID: folderID}, nil
}

func (d *DriveStore) Put(ctx context.Context, obj Object) (string, error) {
	meta := &drive.File{
		Name:    obj.Name,
		Parents: []string{d.folderID},
	}
	created, err := d.srv.Files.Create(meta).
		Media(bytes.NewReader(obj.Data)).
		Fields("id", "webViewLink").
		Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return created.WebViewLink, nil
}

func (d *DriveStore) Exists(ctx context.Context, name string) (bool, error) {
	id, err := d.findID(ctx, name)
	if err != nil {
		return false, err
	}
	return id != "", nil
}

func (d *DriveStore) Delete(ctx context.Context, name string) error {
	id, err := d.findID(ctx, name)
	if err != nil {
		return err
	}
	if id == "" {
		return nil
	}
	return d.srv.Files.Delete(id).Context(ctx).Do()
}

func (d *DriveStore) findID(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false", name, d.folderID)
	list, err := d.srv.Files.List().Q(query).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}
