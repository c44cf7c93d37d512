package utils

import (
	"bytes"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// ReceiptArchive stores raw provider receipts in S3-compatible object
// storage for dispute handling. The game never reads them back.
type ReceiptArchive struct {
	client *s3.S3
	bucket string
}

// NewReceiptArchiveFromEnv builds the archive from S3_* environment
// variables. Returns nil when no bucket is configured; archiving is optional.
func NewReceiptArchiveFromEnv() (*ReceiptArchive, error) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		return nil, nil
	}
	region := os.Getenv("S3_REGION")
	if region == "" {
		region = "us-east-1"
	}
	cfg := &aws.Config{
		Region: aws.String(region),
	}
	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
	}
	if key := os.Getenv("S3_ACCESS_KEY"); key != "" {
		cfg.Credentials = credentials.NewStaticCredentials(key, os.Getenv("S3_SECRET_KEY"), "")
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("s3 session: %w", err)
	}
	return &ReceiptArchive{client: s3.New(sess), bucket: bucket}, nil
}

// StoreReceipt writes one raw receipt under receipts/<player>/<txn>.json.
func (a *ReceiptArchive) StoreReceipt(playerID int, transactionID string, raw []byte) error {
	key := fmt.Sprintf("receipts/%d/%s.json", playerID, transactionID)
	_, err := a.client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(raw),
		ContentLength: aws.Int64(int64(len(raw))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("unable to upload receipt to S3: %v", err)
	}
	return nil
}
