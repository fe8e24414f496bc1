package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// archivePartSize is the upload part size for settlement objects. Trade
// histories are written as a single JSONL stream of unknown length, so every
// upload goes through the multipart manager; 8 MiB parts keep busy markets
// to a handful of parts while staying above the S3 minimum of 5 MiB.
const archivePartSize int64 = 8 * 1024 * 1024

// Writer implements domain.BlobWriter against an S3-compatible backend. It
// is the sink for settlement archives: market summaries and trade histories
// written under settlements/{market_id}/.
type Writer struct {
	uploader *manager.Uploader
	bucket   string
}

// NewWriter creates a Writer uploading to the given client's bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{
		uploader: manager.NewUploader(c.S3(), func(u *manager.Uploader) {
			u.PartSize = archivePartSize
		}),
		bucket: c.Bucket(),
	}
}

// Put streams data to the object at path. The upload manager splits large
// trade histories into concurrent parts; small summaries go up in one part.
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(path),
		Body:        data,
		ContentType: aws.String(contentType),
	}

	if _, err := w.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("s3blob: upload %s: %w", path, err)
	}
	return nil
}
