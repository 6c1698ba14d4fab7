package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// objectGetter is the slice of the S3 client the fetcher needs.
type objectGetter interface {
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
}

type S3Fetcher struct {
	bucket string
	key    string
	svc    objectGetter
}

func NewS3Fetcher(bucket, key, region string) (*S3Fetcher, error) {
	opts := session.Options{SharedConfigState: session.SharedConfigEnable}
	if region != "" {
		opts.Config = aws.Config{Region: aws.String(region)}
	}
	sess, err := session.NewSessionWithOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return &S3Fetcher{bucket: bucket, key: key, svc: s3.New(sess)}, nil
}

func (f *S3Fetcher) Location() string {
	return fmt.Sprintf("s3://%s/%s", f.bucket, f.key)
}

func (f *S3Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	out, err := f.svc.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && (aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == s3.ErrCodeNoSuchBucket) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, f.Location())
		}
		return nil, err
	}
	defer out.Body.Close()

	payload, err := readLimited(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3 object: %w", err)
	}
	return payload, nil
}
