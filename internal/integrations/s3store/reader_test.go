package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	body        []byte
	contentType string
	err         error
	last        *s3.GetObjectInput
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.last = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(bytes.NewReader(f.body)),
		ContentType: aws.String(f.contentType),
	}, nil
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.ErrorContains(t, err, "must not be nil")
}

func TestReadText_PlainText(t *testing.T) {
	api := &fakeS3{body: []byte("Refunds are processed within 5 days."), contentType: "text/plain"}
	r, err := New(api)
	require.NoError(t, err)

	text, err := r.ReadText(context.Background(), "docs-bucket", "policies/refunds.txt")
	require.NoError(t, err)
	require.Equal(t, "Refunds are processed within 5 days.", text)
	require.Equal(t, "docs-bucket", *api.last.Bucket)
	require.Equal(t, "policies/refunds.txt", *api.last.Key)
}

func TestReadText_GetError(t *testing.T) {
	r, err := New(&fakeS3{err: errors.New("NoSuchKey")})
	require.NoError(t, err)
	_, err = r.ReadText(context.Background(), "b", "k")
	require.ErrorContains(t, err, "NoSuchKey")
}

func TestReadText_RejectsBinary(t *testing.T) {
	r, err := New(&fakeS3{body: []byte{0xff, 0xfe, 0x00}})
	require.NoError(t, err)
	_, err = r.ReadText(context.Background(), "b", "blob.bin")
	require.ErrorContains(t, err, "not UTF-8")
}

func TestReadText_InvalidPDF(t *testing.T) {
	r, err := New(&fakeS3{body: []byte("%PDF-1.4 truncated")})
	require.NoError(t, err)
	_, err = r.ReadText(context.Background(), "b", "doc.pdf")
	require.ErrorContains(t, err, "pdf")
}

func TestIsPDF(t *testing.T) {
	require.True(t, isPDF("a/B.PDF", "", nil))
	require.True(t, isPDF("a/b", "application/pdf", nil))
	require.True(t, isPDF("a/b", "", []byte("%PDF-1.7")))
	require.False(t, isPDF("a/b.txt", "text/plain", []byte("hello")))
}
