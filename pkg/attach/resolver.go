package attach

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var ErrNoFileSelected = errors.New("no file selected")

// File is a resolved attachment, ready to be added to the conversation.
type File struct {
	Path     string
	FileName string
	FileType string
	Content  string
}

// Resolver turns a file reference coming from the UI into its content.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (*File, error)
}

// FSResolver reads attachments from a filesystem.
type FSResolver struct {
	fs      afero.Fs
	maxSize int64
	logger  zerolog.Logger
}

var _ Resolver = (*FSResolver)(nil)

type FSResolverOption func(*FSResolver)

func WithFs(fs afero.Fs) FSResolverOption {
	return func(r *FSResolver) {
		r.fs = fs
	}
}

// WithMaxSize limits the size of attachments in bytes. 0 disables the limit.
func WithMaxSize(maxSize int64) FSResolverOption {
	return func(r *FSResolver) {
		r.maxSize = maxSize
	}
}

func WithLogger(logger zerolog.Logger) FSResolverOption {
	return func(r *FSResolver) {
		r.logger = logger
	}
}

func NewFSResolver(options ...FSResolverOption) *FSResolver {
	ret := &FSResolver{
		fs:     afero.NewOsFs(),
		logger: log.Logger,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// sniffLen is how much of a file is checked for NUL bytes.
const sniffLen = 8000

func (r *FSResolver) Resolve(ctx context.Context, ref string) (*File, error) {
	path := strings.TrimSpace(ref)
	if path == "" {
		return nil, ErrNoFileSelected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fi, err := r.fs.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", path)
	}
	if fi.IsDir() {
		return nil, errors.Errorf("%s is a directory", path)
	}
	if r.maxSize > 0 && fi.Size() > r.maxSize {
		return nil, errors.Errorf("%s is %d bytes, larger than the %d bytes attachment limit", path, fi.Size(), r.maxSize)
	}

	content, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", path)
	}

	sniff := content
	if len(sniff) > sniffLen {
		sniff = sniff[:sniffLen]
	}
	if bytes.IndexByte(sniff, 0) >= 0 {
		return nil, errors.Errorf("%s looks like a binary file", path)
	}

	ret := &File{
		Path:     path,
		FileName: filepath.Base(path),
		FileType: FileTypeFromPath(path),
		Content:  string(content),
	}
	r.logger.Debug().
		Str("path", path).
		Str("file_type", ret.FileType).
		Int("bytes", len(content)).
		Msg("resolved attachment")
	return ret, nil
}
