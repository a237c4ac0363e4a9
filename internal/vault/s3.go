package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"nayancam/internal/drive"
)

// versionMetaKey is the user metadata entry carrying a metadata item's version.
const versionMetaKey = "version"

// S3Options configures an S3Vault.
type S3Options struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // optional; enables path-style addressing
	AccessKeyID     string
	SecretAccessKey string
}

// S3Vault stores objects in an S3 bucket under:
//
//	<prefix>content/<key>
//	<prefix>metadata/<deviceID>/<name>   (version in object metadata)
type S3Vault struct {
	name     string
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

// NewS3Vault loads AWS configuration and creates a vault for opts.Bucket.
func NewS3Vault(ctx context.Context, name string, opts S3Options) (*S3Vault, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 vault requires s3_bucket to be set")
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &S3Vault{
		name:     name,
		bucket:   opts.Bucket,
		prefix:   opts.Prefix,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func (v *S3Vault) objectKey(parts ...string) string {
	return v.prefix + path.Join(parts...)
}

func (v *S3Vault) contentKey(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return v.objectKey("content", key), nil
}

func (v *S3Vault) metadataObjectKey(deviceID, name string) (string, error) {
	key, err := cleanKey(metadataKey(deviceID, name))
	if err != nil {
		return "", err
	}
	return v.objectKey("metadata", key), nil
}

func (v *S3Vault) PutContent(ctx context.Context, key string, r io.Reader, size int64) error {
	objKey, err := v.contentKey(key)
	if err != nil {
		return err
	}
	return v.put(ctx, objKey, r, size, nil)
}

func (v *S3Vault) GetContent(ctx context.Context, key string, w io.Writer) error {
	objKey, err := v.contentKey(key)
	if err != nil {
		return err
	}
	return v.get(ctx, objKey, w)
}

func (v *S3Vault) DeleteContent(ctx context.Context, key string) error {
	objKey, err := v.contentKey(key)
	if err != nil {
		return err
	}
	_, err = v.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("deleting s3://%s/%s: %w", v.bucket, objKey, err)
	}
	return nil
}

func (v *S3Vault) PutMetadata(ctx context.Context, deviceID, name string, r io.Reader, size int64, version int64) error {
	objKey, err := v.metadataObjectKey(deviceID, name)
	if err != nil {
		return err
	}
	meta := map[string]string{versionMetaKey: strconv.FormatInt(version, 10)}
	return v.put(ctx, objKey, r, size, meta)
}

func (v *S3Vault) GetMetadata(ctx context.Context, deviceID, name string, w io.Writer) error {
	objKey, err := v.metadataObjectKey(deviceID, name)
	if err != nil {
		return err
	}
	return v.get(ctx, objKey, w)
}

// GetMetadataVersion returns 0 when the metadata object does not exist.
func (v *S3Vault) GetMetadataVersion(ctx context.Context, deviceID, name string) (int64, error) {
	objKey, err := v.metadataObjectKey(deviceID, name)
	if err != nil {
		return 0, err
	}
	out, err := v.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading s3://%s/%s: %w", v.bucket, objKey, err)
	}

	raw, ok := out.Metadata[versionMetaKey]
	if !ok {
		return 0, nil
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup checks that the bucket exists and is reachable.
func (v *S3Vault) ValidateSetup(ctx context.Context) error {
	_, err := v.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(v.bucket)})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

func (v *S3Vault) put(ctx context.Context, objKey string, r io.Reader, size int64, meta map[string]string) error {
	counter := &countingReader{r: r}
	_, err := v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(v.bucket),
		Key:      aws.String(objKey),
		Body:     counter,
		Metadata: meta,
	})
	if err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", v.bucket, objKey, err)
	}
	if counter.n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counter.n)
	}
	return nil
}

func (v *S3Vault) get(ctx context.Context, objKey string, w io.Writer) error {
	out, err := v.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%s: %w", objKey, ErrNotFound)
		}
		return fmt.Errorf("downloading s3://%s/%s: %w", v.bucket, objKey, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading s3://%s/%s: %w", v.bucket, objKey, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

var _ drive.Vault = (*S3Vault)(nil)
