// Package storage removes Flink high-availability data kept in object storage
// once the owning cluster is deleted.
//
// Currently implemented:
//   - S3 / S3-compatible (AWS, MinIO, etc.) - see s3.go
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	operatorerrors "github.com/flork/flork-operator/internal/errors"
)

// s3Schemes are the URI schemes of the Flink S3 filesystems.
var s3Schemes = map[string]bool{"s3": true, "s3a": true, "s3p": true}

// Location is a bucket and key prefix inside object storage.
type Location struct {
	Bucket string
	Prefix string
}

// ParseStorageDir parses a Flink storage URI such as s3://bucket/flink/ha.
// ok is false when the URI does not point at a supported object store.
func ParseStorageDir(uri string) (loc Location, ok bool, err error) {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return Location{}, false, operatorerrors.WrapPermanentConfig(fmt.Errorf("invalid storage dir %q: %w", uri, err))
	}
	if !s3Schemes[strings.ToLower(u.Scheme)] {
		return Location{}, false, nil
	}
	if u.Host == "" {
		return Location{}, false, operatorerrors.WrapPermanentConfig(fmt.Errorf("storage dir %q has no bucket", uri))
	}
	return Location{Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, true, nil
}

// ClusterPrefix returns the prefix Flink uses for the HA data of clusterID.
func (l Location) ClusterPrefix(clusterID string) string {
	if l.Prefix == "" {
		return clusterID + "/"
	}
	return l.Prefix + "/" + clusterID + "/"
}

// HAStorageCleaner deletes the HA data of a Flink cluster.
type HAStorageCleaner interface {
	// CleanHighAvailability returns the number of deleted objects.
	CleanHighAvailability(ctx context.Context, conf map[string]string, clusterID string) (int, error)
}
