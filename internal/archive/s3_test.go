package archive

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	in   *s3.PutObjectInput
	body string
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, f.err
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	key := ObjectKey(at, "abc@example.com")
	assert.True(t, strings.HasPrefix(key, "emails/2026/03/09/"))
	assert.True(t, strings.HasSuffix(key, ".eml"))
	assert.Equal(t, key, ObjectKey(at, "abc@example.com"))
	assert.NotEqual(t, key, ObjectKey(at, "other@example.com"))
}

func TestPut(t *testing.T) {
	p := &fakePutter{}
	a := &S3Archive{client: p, bucket: "mail-archive", now: func() time.Time { return time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC) }}

	require.NoError(t, a.Put(context.Background(), "id@example.com", []byte("raw mime")))
	assert.Equal(t, "mail-archive", *p.in.Bucket)
	assert.Equal(t, "message/rfc822", *p.in.ContentType)
	assert.Equal(t, ObjectKey(a.now(), "id@example.com"), *p.in.Key)
	assert.Equal(t, "raw mime", p.body)

	p.err = errors.New("access denied")
	assert.Error(t, a.Put(context.Background(), "id@example.com", nil))
}

func TestNewS3ArchiveRequiresBucket(t *testing.T) {
	_, err := NewS3Archive(context.Background(), Config{})
	assert.Error(t, err)
}
