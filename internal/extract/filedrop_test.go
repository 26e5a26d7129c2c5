package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"tributary/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves objects from an in-memory map keyed by object key.
type fakeS3 struct {
	objects map[string]string
	listErr error
	getErr  error
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := &s3.ListObjectsV2Output{}
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(params.Prefix)) {
			out.Contents = append(out.Contents, s3types.Object{Key: aws.String(key)})
		}
	}
	return out, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	body, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, fmt.Errorf("NoSuchKey: %s", aws.ToString(params.Key))
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func fileDropExtractorFor(client S3API) *FileDropExtractor {
	return NewFileDropExtractor(client, models.FileDropSourceConfig{
		Enabled: true,
		Bucket:  "acme-drop",
		Prefix:  "exports",
		Region:  "eu-west-1",
	})
}

func TestFileDropFetchReadsDailyFiles(t *testing.T) {
	client := &fakeS3{objects: map[string]string{
		"exports/users/2026-01-05/part-0.csv": "id,name\nu-1,Ada\nu-2,Grace\n",
		"exports/users/2026-01-06/part-0.csv": "id,name\nu-3,Edsger\n",
		"exports/users/2026-01-06/notes.txt":  "not a csv",
	}}

	r, err := models.NewDateRange("2026-01-05", "2026-01-06")
	require.NoError(t, err)

	stream := fileDropExtractorFor(client).Fetch(context.Background(), "users", r)
	records := drainStream(t, stream)

	require.NoError(t, stream.Err())
	require.Len(t, records, 3)

	keys := make([]string, len(records))
	for i, rec := range records {
		keys[i] = rec.Key
	}
	assert.ElementsMatch(t, []string{"u-1", "u-2", "u-3"}, keys)

	// Records carry the day of the folder they came from.
	assert.Equal(t, "2026-01-05", records[0].OccurredOn.Format(models.DateLayout))
	assert.JSONEq(t, `{"id":"u-1","name":"Ada"}`, string(records[0].Payload))
}

func TestFileDropFetchEmptyDayYieldsNothing(t *testing.T) {
	client := &fakeS3{objects: map[string]string{}}

	r, err := models.NewDateRange("2026-01-05", "2026-01-07")
	require.NoError(t, err)

	stream := fileDropExtractorFor(client).Fetch(context.Background(), "users", r)
	records := drainStream(t, stream)

	require.NoError(t, stream.Err())
	assert.Empty(t, records)
}

func TestFileDropFetchSkipsBadRows(t *testing.T) {
	client := &fakeS3{objects: map[string]string{
		// One short row, one row with an empty id, two good rows.
		"exports/users/2026-01-05/part-0.csv": "id,name,email\n" +
			"u-1,Ada,ada@example.com\n" +
			"u-2,Grace\n" +
			",Nobody,nobody@example.com\n" +
			"u-3,Edsger,ewd@example.com\n",
	}}

	r, err := models.NewDateRange("2026-01-05", "2026-01-05")
	require.NoError(t, err)

	stream := fileDropExtractorFor(client).Fetch(context.Background(), "users", r)
	records := drainStream(t, stream)

	require.NoError(t, stream.Err())
	require.Len(t, records, 2)
	assert.Equal(t, 2, stream.Skipped())
}

func TestFileDropFetchMissingIDColumnIsConfigError(t *testing.T) {
	client := &fakeS3{objects: map[string]string{
		"exports/users/2026-01-05/part-0.csv": "name,email\nAda,ada@example.com\n",
	}}

	r, err := models.NewDateRange("2026-01-05", "2026-01-05")
	require.NoError(t, err)

	stream := fileDropExtractorFor(client).Fetch(context.Background(), "users", r)
	drainStream(t, stream)

	require.Error(t, stream.Err())
	var cfgErr *SourceConfigError
	assert.True(t, errors.As(stream.Err(), &cfgErr))
}

func TestFileDropFetchClassifiesS3Failures(t *testing.T) {
	r, err := models.NewDateRange("2026-01-05", "2026-01-05")
	require.NoError(t, err)

	t.Run("access denied", func(t *testing.T) {
		client := &fakeS3{listErr: errors.New("operation error S3: ListObjectsV2, AccessDenied: access denied")}
		stream := fileDropExtractorFor(client).Fetch(context.Background(), "users", r)
		drainStream(t, stream)

		var authErr *SourceAuthError
		assert.True(t, errors.As(stream.Err(), &authErr))
	})

	t.Run("missing bucket", func(t *testing.T) {
		client := &fakeS3{listErr: errors.New("operation error S3: ListObjectsV2, NoSuchBucket: bucket does not exist")}
		stream := fileDropExtractorFor(client).Fetch(context.Background(), "users", r)
		drainStream(t, stream)

		var cfgErr *SourceConfigError
		assert.True(t, errors.As(stream.Err(), &cfgErr))
	})

	t.Run("timeout is transient", func(t *testing.T) {
		client := &fakeS3{listErr: errors.New("operation error S3: ListObjectsV2, request timed out")}
		stream := fileDropExtractorFor(client).Fetch(context.Background(), "users", r)
		drainStream(t, stream)

		assert.True(t, IsTransient(stream.Err()))
	})
}

func TestFileDropFetchToleratesObjectVanishing(t *testing.T) {
	client := &fakeS3{
		objects: map[string]string{},
		getErr:  errors.New("NoSuchKey: the object was replaced"),
	}
	// List reports a key that Get can no longer find.
	client.objects["exports/users/2026-01-05/part-0.csv"] = ""

	r, err := models.NewDateRange("2026-01-05", "2026-01-05")
	require.NoError(t, err)

	stream := fileDropExtractorFor(client).Fetch(context.Background(), "users", r)
	records := drainStream(t, stream)

	require.NoError(t, stream.Err())
	assert.Empty(t, records)
}
