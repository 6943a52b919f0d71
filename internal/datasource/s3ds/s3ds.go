// Package s3ds fetches archives stored in S3, addressed as s3://bucket/key.
package s3ds

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/kzetxa/getmoneyclaude/internal/datasource"
	"github.com/kzetxa/getmoneyclaude/internal/datasource/httpds"
)

// Options configure a Fetcher.
type Options struct {
	Region string
	// Mode is httpds.ModeMemory or httpds.ModeDisk.
	Mode       string
	ScratchDir string
}

// Fetcher downloads objects with the s3manager concurrent downloader.
type Fetcher struct {
	dl  s3manageriface.DownloaderAPI
	opt Options
	log zerolog.Logger
}

var _ datasource.Fetcher = (*Fetcher)(nil)

// New builds a Fetcher from the default AWS credential chain.
func New(opt Options, log zerolog.Logger) (*Fetcher, error) {
	cfg := &aws.Config{}
	if opt.Region != "" {
		cfg.Region = aws.String(opt.Region)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("s3ds: new session: %w", err)
	}
	return NewWithDownloader(s3manager.NewDownloader(sess), opt, log), nil
}

// NewWithDownloader builds a Fetcher around an existing downloader.
func NewWithDownloader(dl s3manageriface.DownloaderAPI, opt Options, log zerolog.Logger) *Fetcher {
	if opt.Mode == "" {
		opt.Mode = httpds.ModeMemory
	}
	return &Fetcher{dl: dl, opt: opt, log: log}
}

// Fetch implements datasource.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*datasource.Archive, error) {
	bucket, key, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	in := &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}

	if f.opt.Mode == httpds.ModeDisk {
		return f.fetchToDisk(ctx, rawURL, in)
	}

	buf := &aws.WriteAtBuffer{}
	n, err := f.dl.DownloadWithContext(ctx, buf, in)
	if err != nil {
		return nil, fmt.Errorf("s3ds: download %s: %w", rawURL, err)
	}
	f.log.Info().Str("url", rawURL).Str("size", humanize.Bytes(uint64(n))).Msg("fetch: archive downloaded")
	return datasource.NewMemoryArchive(rawURL, buf.Bytes()), nil
}

func (f *Fetcher) fetchToDisk(ctx context.Context, rawURL string, in *s3.GetObjectInput) (*datasource.Archive, error) {
	dir := f.opt.ScratchDir
	if dir == "" {
		dir = os.TempDir()
	}
	tmp, err := os.CreateTemp(dir, "import-*-"+httpds.SafeFilenameFromURL(rawURL))
	if err != nil {
		return nil, fmt.Errorf("s3ds: create scratch file: %w", err)
	}
	name := tmp.Name()
	cleanup := func() error { return os.Remove(name) }

	n, err := f.dl.DownloadWithContext(ctx, tmp, in)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("s3ds: download %s: %w", rawURL, err)
	}
	f.log.Info().Str("url", rawURL).Str("path", name).Str("size", humanize.Bytes(uint64(n))).Msg("fetch: archive downloaded")
	return datasource.NewFileArchive(rawURL, name, n, cleanup), nil
}

// ParseURL splits s3://bucket/key into its parts.
func ParseURL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("s3ds: parse %q: %w", rawURL, err)
	}
	if !strings.EqualFold(u.Scheme, "s3") {
		return "", "", fmt.Errorf("s3ds: %q is not an s3:// url", rawURL)
	}
	key = strings.TrimPrefix(path.Clean("/"+u.Path), "/")
	if u.Host == "" || key == "" || key == "." {
		return "", "", fmt.Errorf("s3ds: %q must name a bucket and key", rawURL)
	}
	return u.Host, key, nil
}
