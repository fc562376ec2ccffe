// Package storage manages uploaded audio assets in S3-compatible object storage
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/navikt/zspatial/internal/config"
	"github.com/navikt/zspatial/internal/models"
	"github.com/navikt/zspatial/internal/utils"
)

var log = logging.Logger("storage")

// ErrInvalidKey is returned for room ids or file names that cannot form an object key
var ErrInvalidKey = errors.New("invalid object key")

// Cleaner removes the external assets that belong to a room
type Cleaner interface {
	CleanupRoom(ctx context.Context, roomID string) error
}

// objectStore is the subset of *minio.Client the store needs
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	PresignedPutObject(ctx context.Context, bucketName, objectName string, expires time.Duration) (*url.URL, error)
}

// Store keeps audio assets under a per-room prefix: <roomId>/<uuid><ext>
type Store struct {
	client        objectStore
	bucket        string
	region        string
	publicBaseURL string
	minAge        time.Duration
	presignExpiry time.Duration
	now           func() time.Time
}

// NewStore connects to the configured endpoint and makes sure the bucket exists
func NewStore(ctx context.Context, cfg config.StorageConfig) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	if cfg.PublicBaseURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		cfg.PublicBaseURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	store := newStore(client, cfg)
	if err := store.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket: %w", err)
	}
	return store, nil
}

func newStore(client objectStore, cfg config.StorageConfig) *Store {
	return &Store{
		client:        client,
		bucket:        cfg.Bucket,
		region:        cfg.Region,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		minAge:        cfg.CleanupMinAge,
		presignExpiry: cfg.PresignExpiry,
		now:           time.Now,
	}
}

// ensureBucket creates the bucket if it doesn't exist
func (s *Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return err
	}
	log.Infof("Created bucket: %s", s.bucket)
	return nil
}

// CleanupRoom deletes every object under the room's prefix that is older than
// the configured minimum age. Individual failures do not stop the sweep; they
// are joined into the returned error.
func (s *Store) CleanupRoom(ctx context.Context, roomID string) error {
	prefix, err := roomPrefix(roomID)
	if err != nil {
		return err
	}

	cutoff := s.now().Add(-s.minAge)
	var errs []error
	deleted := 0

	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			errs = append(errs, fmt.Errorf("failed to list %s: %w", prefix, obj.Err))
			break
		}
		if s.minAge > 0 && obj.LastModified.After(cutoff) {
			log.Debugf("Keeping %s, modified %s", utils.SanitizeLogString(obj.Key), obj.LastModified)
			continue
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", obj.Key, err))
			continue
		}
		deleted++
	}

	log.Infof("Cleaned up %d objects for room %s", deleted, utils.SanitizeLogString(roomID))
	return errors.Join(errs...)
}

// PresignUpload returns a pre-signed PUT URL for a new asset in the room and
// the public URL it will be served from once uploaded
func (s *Store) PresignUpload(ctx context.Context, roomID, fileName string) (*models.UploadTicket, error) {
	prefix, err := roomPrefix(roomID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(fileName) == "" {
		return nil, fmt.Errorf("%w: empty file name", ErrInvalidKey)
	}

	key := prefix + uuid.New().String() + strings.ToLower(filepath.Ext(fileName))

	presigned, err := s.client.PresignedPutObject(ctx, s.bucket, key, s.presignExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to generate upload URL: %w", err)
	}

	return &models.UploadTicket{
		UploadURL:  presigned.String(),
		PublicURL:  s.publicBaseURL + "/" + key,
		StorageKey: key,
		ExpiresAt:  s.now().Add(s.presignExpiry),
	}, nil
}

func roomPrefix(roomID string) (string, error) {
	if roomID == "" || roomID == "." || roomID == ".." || strings.Contains(roomID, "/") {
		return "", fmt.Errorf("%w: room id %q", ErrInvalidKey, roomID)
	}
	return roomID + "/", nil
}

// NopCleaner is used when object storage is disabled
type NopCleaner struct{}

// CleanupRoom does nothing
func (NopCleaner) CleanupRoom(ctx context.Context, roomID string) error {
	log.Debugf("Storage disabled, nothing to clean up for room %s", utils.SanitizeLogString(roomID))
	return nil
}
