package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ledongthuc/pdf"
)

const maxObjectSize = 32 << 20

// s3API is the minimal S3 interface required by Reader.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Reader fetches documents from S3 and returns their plain text.
type Reader struct {
	api s3API
}

// New creates a Reader.
func New(api s3API) (*Reader, error) {
	if api == nil {
		return nil, errors.New("s3store: api must not be nil")
	}
	return &Reader{api: api}, nil
}

// ReadText downloads bucket/key and extracts its text. PDFs are converted
// to plain text; any other object must be valid UTF-8.
func (r *Reader) ReadText(ctx context.Context, bucket, key string) (string, error) {
	out, err := r.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("s3store: get object s3://%s/%s: %w", bucket, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(out.Body, maxObjectSize+1))
	if err != nil {
		return "", fmt.Errorf("s3store: read object s3://%s/%s: %w", bucket, key, err)
	}
	if len(raw) > maxObjectSize {
		return "", fmt.Errorf("s3store: object s3://%s/%s exceeds %d bytes", bucket, key, maxObjectSize)
	}

	if isPDF(key, aws.ToString(out.ContentType), raw) {
		return pdfText(raw)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("s3store: object s3://%s/%s is not UTF-8 text", bucket, key)
	}
	return string(raw), nil
}

func isPDF(key, contentType string, raw []byte) bool {
	if strings.EqualFold(path.Ext(key), ".pdf") || contentType == "application/pdf" {
		return true
	}
	return bytes.HasPrefix(raw, []byte("%PDF-"))
}

func pdfText(raw []byte) (string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("s3store: open pdf: %w", err)
	}
	plain, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("s3store: extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("s3store: read pdf text: %w", err)
	}
	return buf.String(), nil
}
