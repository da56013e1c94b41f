package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3Putter is the slice of the S3 API the archive uses; carved out so tests
// can stub it.
type s3Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive stores the raw uploaded export zips in S3 so a dataset can be
// re-imported after a disk wipe. Archival is best effort: the upload flow
// logs archive failures but never rejects an export over one.
type Archive struct {
	client s3Putter
	bucket string
}

// NewArchive builds an S3-backed archive using the default AWS credential
// chain.
func NewArchive(ctx context.Context, bucket, region string) (*Archive, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Archive{client: s3.NewFromConfig(awsCfg), bucket: bucket}, nil
}

// NewArchiveWithClient wires an explicit client; used by tests.
func NewArchiveWithClient(client s3Putter, bucket string) *Archive {
	return &Archive{client: client, bucket: bucket}
}

// Save uploads one export zip under exports/<dataset-id>/<filename> and
// returns the object key.
func (a *Archive) Save(ctx context.Context, datasetID, filename string, zipData []byte) (string, error) {
	key := fmt.Sprintf("exports/%s/%s", datasetID, filename)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(zipData),
		ContentType: aws.String("application/zip"),
		Metadata: map[string]string{
			"dataset-id":  datasetID,
			"uploaded-at": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("archive export to s3: %w", err)
	}
	return key, nil
}
