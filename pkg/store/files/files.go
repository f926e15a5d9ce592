// Package files writes finished datasets as CSV files to a local directory
// or an S3 prefix, one file per dataset.
package files

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/de-tools/commerce-atlas/pkg/dataset"
	"github.com/de-tools/commerce-atlas/pkg/models/domain"
	"github.com/rs/zerolog"
)

var ErrFileExists = errors.New("destination file already exists")

// ObjectAPI is the subset of the S3 client the writer needs.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Writer persists each dataset as <table>.csv with a header row and no
// index column.
type Writer struct {
	dir    string
	bucket string
	prefix string
	client ObjectAPI
}

// New picks the destination from dest: "s3://bucket/prefix" writes through
// the default AWS credential chain, anything else is a local directory.
func New(ctx context.Context, dest string) (*Writer, error) {
	bucket, prefix, ok := parseS3(dest)
	if !ok {
		return NewLocal(dest)
	}
	if bucket == "" {
		return nil, fmt.Errorf("invalid s3 destination %q", dest)
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func NewLocal(dir string) (*Writer, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return &Writer{dir: dir}, nil
}

func NewS3(client ObjectAPI, bucket, prefix string) *Writer {
	return &Writer{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func parseS3(dest string) (bucket, prefix string, ok bool) {
	rest, ok := strings.CutPrefix(dest, "s3://")
	if !ok {
		return "", "", false
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	return bucket, prefix, true
}

// Location reports where a table ends up.
func (w *Writer) Location(table string) string {
	if w.client != nil {
		return "s3://" + w.bucket + "/" + w.key(table)
	}
	return filepath.Join(w.dir, table+".csv")
}

func (w *Writer) key(table string) string {
	return path.Join(w.prefix, table+".csv")
}

func (w *Writer) Close() error { return nil }

func (w *Writer) Write(ctx context.Context, t *dataset.Table, table string, mode domain.WriteMode) error {
	logger := zerolog.Ctx(ctx).With().
		Str("file", w.Location(table)).
		Str("mode", string(mode)).
		Logger()

	var err error
	if w.client != nil {
		err = w.writeObject(ctx, t, table, mode)
	} else {
		err = w.writeFile(t, table, mode)
	}
	if err != nil {
		return err
	}

	logger.Info().Int("rows", t.Len()).Msg("file written")
	return nil
}

func (w *Writer) writeFile(t *dataset.Table, table string, mode domain.WriteMode) error {
	name := w.Location(table)
	_, statErr := os.Stat(name)
	exists := statErr == nil
	if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", name, statErr)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	header := true
	switch mode {
	case domain.WriteFail:
		if exists {
			return fmt.Errorf("%s: %w", name, ErrFileExists)
		}
	case domain.WriteReplace:
	case domain.WriteAppend:
		if exists {
			if err := checkHeader(name, t.ColumnNames()); err != nil {
				return err
			}
			flags = os.O_WRONLY | os.O_APPEND
			header = false
		}
	default:
		return fmt.Errorf("unsupported write mode %q", mode)
	}

	f, err := os.OpenFile(name, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	if err := dataset.WriteCSV(f, t, header); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return f.Close()
}

// checkHeader refuses to append rows whose columns differ from the file's.
func checkHeader(name string, columns []string) error {
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	got, err := csv.NewReader(bufio.NewReader(f)).Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header of %s: %w", name, err)
	}
	if !slices.Equal(got, columns) {
		return fmt.Errorf("cannot append to %s: columns %v do not match %v", name, got, columns)
	}
	return nil
}

func (w *Writer) writeObject(ctx context.Context, t *dataset.Table, table string, mode domain.WriteMode) error {
	key := w.key(table)

	switch mode {
	case domain.WriteFail:
		exists, err := w.objectExists(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%s: %w", w.Location(table), ErrFileExists)
		}
	case domain.WriteReplace:
	case domain.WriteAppend:
		return fmt.Errorf("append is not supported for s3 destinations")
	default:
		return fmt.Errorf("unsupported write mode %q", mode)
	}

	var buf bytes.Buffer
	if err := dataset.WriteCSV(&buf, t, true); err != nil {
		return fmt.Errorf("encode %s: %w", table, err)
	}

	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", w.Location(table), err)
	}
	return nil
}

func (w *Writer) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := w.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("head s3://%s/%s: %w", w.bucket, key, err)
}
