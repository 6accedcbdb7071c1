package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

const s3Backend = "s3"

// CacheControl is attached to every stored object and delivered response.
const CacheControl = "public, max-age=31536000"

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Config holds the connection settings for an S3-compatible bucket.
type S3Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// BaseEndpoint points at MinIO or another S3-compatible server; empty
	// means AWS.
	BaseEndpoint string
	UsePathStyle bool
}

type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type s3Uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type s3Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3 stores blobs as objects in one bucket; the key is the object key.
type S3 struct {
	bucket    string
	client    s3API
	uploader  s3Uploader
	presigner s3Presigner
	namer     KeyNamer
	now       func() time.Time
}

// NewS3 builds the client from static credentials, like a MinIO deployment
// expects. Region defaults to us-east-1.
func NewS3(ctx context.Context, c S3Config) (*S3, error) {
	if c.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	region := c.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if c.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}
	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
		}
		o.UsePathStyle = c.UsePathStyle
	})

	return newS3(c.Bucket, client, manager.NewUploader(client), s3.NewPresignClient(client)), nil
}

func newS3(bucket string, client s3API, up s3Uploader, pre s3Presigner) *S3 {
	return &S3{
		bucket:    bucket,
		client:    client,
		uploader:  up,
		presigner: pre,
		namer:     NewKeyNamer(),
		now:       time.Now,
	}
}

func (s *S3) Backend() string { return s3Backend }

// Save uploads the payload under a fresh key. The declared content type is
// stored with the object so Resolve can hand it back.
func (s *S3) Save(ctx context.Context, payload *Payload, namespace string) (string, error) {
	if err := checkPayload(payload); err != nil {
		return "", &Error{Op: "save", Backend: s3Backend, Err: err}
	}
	key, err := s.namer.Key(namespace, payload.Name, payload.ContentType, payload.KeySuffix)
	if err != nil {
		return "", &Error{Op: "save", Backend: s3Backend, Err: err}
	}

	contentType := normalizeMediaType(payload.ContentType)
	if contentType == "" {
		contentType = ContentTypeForKey(key)
	}

	body := &countingReader{r: payload.Body}
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         body,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(CacheControl),
	})
	if err != nil {
		return "", s.wrap("save", key, err)
	}

	if payload.Size > 0 && body.n != payload.Size {
		// The object is complete but not what the client declared; take it back.
		_, _ = s.client.DeleteObject(context.WithoutCancel(ctx), &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		return "", &Error{Op: "save", Backend: s3Backend, Key: key,
			Err: fmt.Errorf("%w: declared %d, got %d", ErrSizeMismatch, payload.Size, body.n)}
	}
	return key, nil
}

// Delete removes the object. S3 already treats missing keys as success;
// a NotFound from a compatible server is swallowed too.
func (s *S3) Delete(ctx context.Context, key string) error {
	if _, _, err := ParseKey(key); err != nil {
		return &Error{Op: "delete", Backend: s3Backend, Key: key, Err: err}
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if werr := s.wrap("delete", key, err); !IsNotFound(werr) {
			return werr
		}
	}
	return nil
}

// Resolve downloads the object into memory.
func (s *S3) Resolve(ctx context.Context, key string) (*Object, error) {
	if _, _, err := ParseKey(key); err != nil {
		return nil, &Error{Op: "resolve", Backend: s3Backend, Key: key, Err: err}
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.wrap("resolve", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, s.wrap("resolve", key, err)
	}
	contentType := aws.ToString(out.ContentType)
	if contentType == "" || contentType == DefaultContentType {
		contentType = ContentTypeForKey(key)
	}
	return &Object{Key: key, ContentType: contentType, Size: int64(len(data)), Data: data}, nil
}

// SignedURL presigns a GET that renders inline with the stored content type.
// The object is checked first so a missing key is reported as ErrNotFound
// instead of a URL that 404s later.
func (s *S3) SignedURL(ctx context.Context, key string, ttl time.Duration) (*SignedURL, error) {
	if _, _, err := ParseKey(key); err != nil {
		return nil, &Error{Op: "sign", Backend: s3Backend, Key: key, Err: err}
	}
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.wrap("sign", key, err)
	}
	contentType := aws.ToString(head.ContentType)
	if contentType == "" {
		contentType = ContentTypeForKey(key)
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(s.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String("inline"),
		ResponseContentType:        aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, s.wrap("sign", key, err)
	}
	return &SignedURL{URL: req.URL, ExpiresAt: s.now().Add(ttl)}, nil
}

func (s *S3) wrap(op, key string, err error) error {
	return &Error{Op: op, Backend: s3Backend, Key: key, Err: classifyS3(err)}
}

// classifyS3 attaches one of the package sentinels to an SDK error.
func classifyS3(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return fmt.Errorf("%w: %w", ErrAccessDenied, err)
		case "SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable", "Throttling":
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch code := respErr.HTTPStatusCode(); {
		case code == http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		case code == http.StatusForbidden || code == http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", ErrAccessDenied, err)
		case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
	}

	return markTransient(err)
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
