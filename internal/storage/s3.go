package storage

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/flork/flork-operator/internal/constants"
	operatorerrors "github.com/flork/flork-operator/internal/errors"
)

const (
	// DefaultRequestTimeout bounds a single S3 call.
	DefaultRequestTimeout = 2 * time.Minute
	// DefaultRegion is used when the Flink configuration names none.
	DefaultRegion = "us-east-1"

	// maxDeleteBatch is the S3 DeleteObjects limit.
	maxDeleteBatch = 1000
)

// Flink S3 filesystem keys read from the cluster configuration.
const (
	FlinkKeyS3Endpoint  = "s3.endpoint"
	FlinkKeyS3Region    = "s3.region"
	FlinkKeyS3AccessKey = "s3.access-key"
	FlinkKeyS3SecretKey = "s3.secret-key"
	FlinkKeyS3PathStyle = "s3.path.style.access"
)

// S3ClientConfig holds configuration for creating a new S3-compatible storage client.
type S3ClientConfig struct {
	// Endpoint is the S3-compatible endpoint URL. Empty means AWS.
	Endpoint string
	// Region is the AWS region.
	Region string
	// AccessKeyID is the access key for authentication. If empty, the default credential chain is used.
	AccessKeyID string
	// SecretAccessKey is the secret key for authentication.
	SecretAccessKey string
	// SessionToken is an optional session token for temporary credentials.
	SessionToken string
	// CACert is an optional PEM-encoded CA certificate added to the system roots.
	CACert []byte
	// UsePathStyle forces path-style addressing (required for MinIO and some S3-compatible stores).
	UsePathStyle bool
}

// S3ConfigFromFlinkConf derives the client configuration from the same keys
// the Flink S3 filesystem plugins read.
func S3ConfigFromFlinkConf(conf map[string]string) S3ClientConfig {
	cfg := S3ClientConfig{
		Endpoint:        strings.TrimSpace(conf[FlinkKeyS3Endpoint]),
		Region:          strings.TrimSpace(conf[FlinkKeyS3Region]),
		AccessKeyID:     conf[FlinkKeyS3AccessKey],
		SecretAccessKey: conf[FlinkKeyS3SecretKey],
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if v, err := strconv.ParseBool(strings.TrimSpace(conf[FlinkKeyS3PathStyle])); err == nil {
		cfg.UsePathStyle = v
	}
	return cfg
}

// S3Client deletes objects from an S3-compatible store.
type S3Client struct {
	client *s3.Client
}

// NewS3Client builds an S3 client for cfg.
func NewS3Client(ctx context.Context, cfg S3ClientConfig) (*S3Client, error) {
	awsCfg, err := buildAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Client{client: client}, nil
}

// DeletePrefix removes every object under prefix and returns how many were deleted.
func (c *S3Client) DeletePrefix(ctx context.Context, bucket, prefix string) (int, error) {
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	deleted := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return deleted, classify(fmt.Errorf("failed to list s3://%s/%s: %w", bucket, prefix, err))
		}

		keys := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			keys = append(keys, types.ObjectIdentifier{Key: obj.Key})
		}
		for start := 0; start < len(keys); start += maxDeleteBatch {
			end := min(start+maxDeleteBatch, len(keys))
			n, err := c.deleteBatch(ctx, bucket, keys[start:end])
			deleted += n
			if err != nil {
				return deleted, err
			}
		}
	}
	return deleted, nil
}

func (c *S3Client) deleteBatch(ctx context.Context, bucket string, keys []types.ObjectIdentifier) (int, error) {
	out, err := c.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &types.Delete{Objects: keys, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return 0, classify(fmt.Errorf("failed to delete objects in s3://%s: %w", bucket, err))
	}
	if len(out.Errors) == 0 {
		return len(keys), nil
	}

	errs := make([]error, 0, len(out.Errors))
	for _, e := range out.Errors {
		errs = append(errs, fmt.Errorf("%s: %s", aws.ToString(e.Key), aws.ToString(e.Message)))
	}
	return len(keys) - len(out.Errors), fmt.Errorf("failed to delete %d objects in s3://%s: %w",
		len(out.Errors), bucket, errors.Join(errs...))
}

// S3HACleaner implements HAStorageCleaner for s3:// storage dirs.
type S3HACleaner struct {
	// CACert is added to the system roots of every client.
	CACert []byte
}

// CleanHighAvailability deletes <storageDir>/<clusterID>/ when the HA storage
// dir points at S3. Other schemes are ignored.
func (h *S3HACleaner) CleanHighAvailability(ctx context.Context, conf map[string]string, clusterID string) (int, error) {
	dir := conf[constants.FlinkKeyHAStorageDir]
	if dir == "" || clusterID == "" {
		return 0, nil
	}
	loc, ok, err := ParseStorageDir(dir)
	if err != nil || !ok {
		return 0, err
	}

	cfg := S3ConfigFromFlinkConf(conf)
	cfg.CACert = h.CACert
	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return 0, err
	}
	return client.DeletePrefix(ctx, loc.Bucket, loc.ClusterPrefix(clusterID))
}

func classify(err error) error {
	if operatorerrors.IsTransientConnection(err) {
		return operatorerrors.WrapTransientConnection(err)
	}
	return err
}

// buildAWSConfig constructs AWS SDK config with credentials and custom TLS settings.
func buildAWSConfig(ctx context.Context, cfg S3ClientConfig) (aws.Config, error) {
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			cfg.SessionToken,
		)))
	}

	httpClient, err := buildHTTPClient(cfg.CACert)
	if err != nil {
		return aws.Config{}, operatorerrors.WrapPermanentConfig(fmt.Errorf("failed to create HTTP client: %w", err))
	}
	opts = append(opts, config.WithHTTPClient(httpClient))

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, classify(fmt.Errorf("failed to load AWS config: %w", err))
	}
	return awsCfg, nil
}

// buildHTTPClient creates an HTTP client with an optional custom CA certificate.
// The client stays buildable so that LoadDefaultConfig can add AWS_CA_BUNDLE
// to its transport.
func buildHTTPClient(caCert []byte) (*awshttp.BuildableClient, error) {
	certPool, err := x509.SystemCertPool()
	if err != nil || certPool == nil {
		certPool = x509.NewCertPool()
	}
	if len(caCert) > 0 && !certPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	return awshttp.NewBuildableClient().
		WithTimeout(DefaultRequestTimeout).
		WithTransportOptions(func(tr *http.Transport) {
			tr.TLSHandshakeTimeout = 10 * time.Second
			tr.MaxIdleConns = 10
			tr.IdleConnTimeout = 90 * time.Second
			tr.TLSClientConfig = &tls.Config{
				RootCAs:    certPool,
				MinVersion: tls.VersionTLS12,
			}
		}), nil
}
