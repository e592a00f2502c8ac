package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/minnojs/pavlovia/pkg/file"
)

func TestDownloader_Local(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	storage, err := file.NewLocalStorage(dir, "")
	require.NoError(t, err)

	d := file.NewDownloader(storage, file.WithDirectory("downloads"))
	location, err := d.Download(context.Background(), "exp1_SESSION_2024-01-01_12h00.00.000.csv", "text/csv", []byte("a,b\n1,2\n"))
	require.NoError(t, err)

	path := filepath.Join(dir, "downloads", "exp1_SESSION_2024-01-01_12h00.00.000.csv")
	assert.Equal(t, "file://"+filepath.ToSlash(path), location)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

func TestDownloader_SanitizesName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	storage, err := file.NewLocalStorage(dir, "https://example.com/dl")
	require.NoError(t, err)

	location, err := file.NewDownloader(storage).Download(context.Background(), "../../x.csv", "text/csv", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/dl/x.csv", location)
	assert.FileExists(t, filepath.Join(dir, "x.csv"))

	_, err = file.NewDownloader(storage).Download(context.Background(), "", "text/csv", []byte("x"))
	assert.ErrorIs(t, err, file.ErrEmptyName)
}

func TestDownloader_S3(t *testing.T) {
	t.Parallel()

	client := &MockS3Client{}
	client.On("HeadObject", mock.Anything, mock.Anything, mock.Anything).Return(nil, &types.NotFound{}).Once()
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Key == "runs/exp1.csv"
	}), mock.Anything).Return(&s3.PutObjectOutput{}, nil).Once()

	storage := newS3Storage(t, client, file.S3Config{Prefix: "runs"})
	location, err := file.NewDownloader(storage).Download(context.Background(), "exp1.csv", "text/csv", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "https://results.s3.eu-west-1.amazonaws.com/runs/exp1.csv", location)
	client.AssertExpectations(t)
}

func TestDownloader_KeepsEarlierOffer(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	storage, err := file.NewLocalStorage(dir, "")
	require.NoError(t, err)
	d := file.NewDownloader(storage)
	ctx := context.Background()

	first, err := d.Download(ctx, "results.csv", "text/csv", []byte("first"))
	require.NoError(t, err)
	second, err := d.Download(ctx, "results.csv", "text/csv", []byte("second"))
	require.NoError(t, err)
	third, err := d.Download(ctx, "results.csv", "text/csv", []byte("third"))
	require.NoError(t, err)

	assert.Equal(t, "file://"+filepath.ToSlash(filepath.Join(dir, "results.csv")), first)
	assert.Equal(t, "file://"+filepath.ToSlash(filepath.Join(dir, "results_1.csv")), second)
	assert.Equal(t, "file://"+filepath.ToSlash(filepath.Join(dir, "results_2.csv")), third)

	for name, want := range map[string]string{"results.csv": "first", "results_1.csv": "second", "results_2.csv": "third"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}
}

func TestDownloader_S3KeepsEarlierOffer(t *testing.T) {
	t.Parallel()

	headKey := func(key string) any {
		return mock.MatchedBy(func(in *s3.HeadObjectInput) bool { return *in.Key == key })
	}
	client := &MockS3Client{}
	client.On("HeadObject", mock.Anything, headKey("runs/exp1.csv"), mock.Anything).Return(&s3.HeadObjectOutput{}, nil).Once()
	client.On("HeadObject", mock.Anything, headKey("runs/exp1_1.csv"), mock.Anything).Return(nil, &types.NotFound{}).Once()
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Key == "runs/exp1_1.csv"
	}), mock.Anything).Return(&s3.PutObjectOutput{}, nil).Once()

	storage := newS3Storage(t, client, file.S3Config{Prefix: "runs"})
	location, err := file.NewDownloader(storage).Download(context.Background(), "exp1.csv", "text/csv", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "https://results.s3.eu-west-1.amazonaws.com/runs/exp1_1.csv", location)
	client.AssertExpectations(t)
}

func TestDownloader_NoFreeName(t *testing.T) {
	t.Parallel()

	client := &MockS3Client{}
	client.On("HeadObject", mock.Anything, mock.Anything, mock.Anything).Return(&s3.HeadObjectOutput{}, nil)

	storage := newS3Storage(t, client, file.S3Config{})
	_, err := file.NewDownloader(storage).Download(context.Background(), "exp1.csv", "text/csv", []byte("x"))
	assert.ErrorIs(t, err, file.ErrNameTaken)
	client.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything, mock.Anything)
}
