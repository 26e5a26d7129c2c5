package extract

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"tributary/internal/models"
	"tributary/internal/store"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	log "github.com/sirupsen/logrus"
)

// S3API is the slice of the S3 client the extractor uses.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// FileDropExtractor pulls master-data records from the tenant's drop bucket.
// Uploaders land one or more CSV files per data type per day under
// {prefix}/{dataType}/{YYYY-MM-DD}/; each file has a header row and an "id"
// column. A day with no objects simply contributes no records.
type FileDropExtractor struct {
	client S3API
	bucket string
	prefix string
}

var _ Extractor = (*FileDropExtractor)(nil)

func NewFileDropExtractor(client S3API, cfg models.FileDropSourceConfig) *FileDropExtractor {
	return &FileDropExtractor{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}
}

func (f *FileDropExtractor) Source() string {
	return store.SourceFileDrop
}

func (f *FileDropExtractor) Fetch(ctx context.Context, dataType string, r models.DateRange) *Stream {
	stream := NewStream(256)

	go func() {
		for day := r.Start; !day.After(r.End); day = day.AddDate(0, 0, 1) {
			if err := ctx.Err(); err != nil {
				stream.Finish(err)
				return
			}
			if err := f.fetchDay(ctx, stream, dataType, day); err != nil {
				stream.Finish(err)
				return
			}
		}
		stream.Finish(nil)
	}()

	return stream
}

func (f *FileDropExtractor) dayPrefix(dataType string, day time.Time) string {
	key := fmt.Sprintf("%s/%s/", dataType, day.Format(models.DateLayout))
	if f.prefix != "" {
		key = f.prefix + "/" + key
	}
	return key
}

func (f *FileDropExtractor) fetchDay(ctx context.Context, stream *Stream, dataType string, day time.Time) error {
	prefix := f.dayPrefix(dataType, day)

	var token *string
	for {
		out, err := f.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(f.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return f.classify(err)
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".csv") {
				continue
			}
			if err := f.fetchObject(ctx, stream, key, day); err != nil {
				return err
			}
		}

		if out.NextContinuationToken == nil {
			return nil
		}
		token = out.NextContinuationToken
	}
}

func (f *FileDropExtractor) fetchObject(ctx context.Context, stream *Stream, key string, day time.Time) error {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// The object can disappear between listing and reading if an
		// uploader replaces the drop; treat as an empty file.
		if isNotFound(err) {
			return nil
		}
		return f.classify(err)
	}
	defer out.Body.Close()

	if err := f.parseCSV(ctx, stream, out.Body, key, day); err != nil {
		return err
	}

	log.WithFields(log.Fields{"key": key, "yielded": stream.Yielded()}).
		Debug("Parsed drop file")
	return nil
}

func (f *FileDropExtractor) parseCSV(ctx context.Context, stream *Stream, body io.Reader, key string, day time.Time) error {
	reader := csv.NewReader(body)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return &SourceConfigError{
			Source: f.Source(),
			Err:    fmt.Errorf("drop file %s has no readable header: %w", key, err),
		}
	}

	idCol := -1
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), "id") {
			idCol = i
			break
		}
	}
	if idCol < 0 {
		return &SourceConfigError{
			Source: f.Source(),
			Err:    fmt.Errorf("drop file %s is missing an id column", key),
		}
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			// A torn row is a bad record, not a bad file.
			stream.Skip()
			continue
		}
		if len(row) != len(header) || idCol >= len(row) || strings.TrimSpace(row[idCol]) == "" {
			stream.Skip()
			continue
		}

		fields := make(map[string]string, len(header))
		for i, col := range header {
			fields[strings.TrimSpace(col)] = row[i]
		}
		payload, err := json.Marshal(fields)
		if err != nil {
			stream.Skip()
			continue
		}

		ok := stream.Emit(ctx, models.RawRecord{
			Key:        strings.TrimSpace(row[idCol]),
			OccurredOn: day,
			Payload:    payload,
		})
		if !ok {
			return ctx.Err()
		}
	}
}

// classify sorts an S3 failure into the source error taxonomy. The SDK does
// not expose typed errors for every rejection, so this matches on the error
// codes present in the message.
func (f *FileDropExtractor) classify(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "AccessDenied"),
		strings.Contains(msg, "InvalidAccessKeyId"),
		strings.Contains(msg, "SignatureDoesNotMatch"):
		return &SourceAuthError{Source: f.Source(), Err: err}
	case strings.Contains(msg, "NoSuchBucket"):
		return &SourceConfigError{Source: f.Source(), Err: err}
	default:
		return &TransientSourceError{Source: f.Source(), Err: err}
	}
}

func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "NotFound") || strings.Contains(msg, "404")
}
