package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rentnest/rentnest/internal/config"
	appErr "github.com/rentnest/rentnest/internal/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeObjectAPI struct {
	puts    []*s3.PutObjectInput
	deletes []string
	err     error
}

func (f *fakeObjectAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.puts = append(f.puts, params)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectAPI) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newTestUploader(api ObjectAPI, publicURL string) *Uploader {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewUploader(api, &config.S3Config{
		Bucket:         "rentnest-media",
		Region:         "ap-south-1",
		Prefix:         "/properties/",
		PublicURL:      publicURL,
		MaxUploadBytes: 64,
	}, logger)
}

func TestUploaderUpload(t *testing.T) {
	api := &fakeObjectAPI{}
	u := newTestUploader(api, "https://cdn.example.com/")

	img, err := u.Upload(context.Background(), "prop-1", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(img.Key, "properties/prop-1/"))
	require.True(t, strings.HasSuffix(img.Key, ".png"))
	require.Equal(t, "https://cdn.example.com/"+img.Key, img.URL)

	require.Len(t, api.puts, 1)
	require.Equal(t, "rentnest-media", aws.ToString(api.puts[0].Bucket))
	require.Equal(t, "image/png", aws.ToString(api.puts[0].ContentType))
}

func TestUploaderUpload_RejectsNonImage(t *testing.T) {
	u := newTestUploader(&fakeObjectAPI{}, "")
	_, err := u.Upload(context.Background(), "prop-1", strings.NewReader("plain text, not an image"))
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestUploaderUpload_RejectsOversize(t *testing.T) {
	u := newTestUploader(&fakeObjectAPI{}, "")
	data := append(append([]byte{}, pngHeader...), make([]byte, 100)...)
	_, err := u.Upload(context.Background(), "prop-1", bytes.NewReader(data))
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestUploaderUpload_StorageError(t *testing.T) {
	u := newTestUploader(&fakeObjectAPI{err: errors.New("access denied")}, "")
	_, err := u.Upload(context.Background(), "prop-1", bytes.NewReader(pngHeader))
	require.ErrorContains(t, err, "access denied")
}

func TestUploaderURL_DefaultsToBucketHost(t *testing.T) {
	u := newTestUploader(&fakeObjectAPI{}, "")
	require.Equal(t, "https://rentnest-media.s3.ap-south-1.amazonaws.com/properties/a.png", u.URL("properties/a.png"))
}

func TestUploaderDelete(t *testing.T) {
	api := &fakeObjectAPI{}
	require.NoError(t, newTestUploader(api, "").Delete(context.Background(), "properties/a.png"))
	require.Equal(t, []string{"properties/a.png"}, api.deletes)
}
