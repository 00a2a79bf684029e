package archive

import (
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/page-ingest/internal/batch"
)

// Defaults applied by Options.withDefaults.
const (
	DefaultPrefix    = "topic"
	DefaultExtension = ".html"
)

// Options configures both conversion directions.
type Options struct {
	// Prefix is the single directory segment of every written entry.
	Prefix string
	// Extension selects entries on read and is appended on write.
	Extension string
	// BatchSize bounds rows per batch when building a columnar file.
	BatchSize int
	// Encoding names the charset of archive payloads.
	Encoding string
	// Compression selects the archive codec on write.
	Compression string
	Logger      *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Prefix == "" {
		o.Prefix = DefaultPrefix
	}
	o.Prefix = strings.Trim(o.Prefix, "/")
	if o.Extension == "" {
		o.Extension = DefaultExtension
	}
	if !strings.HasPrefix(o.Extension, ".") {
		o.Extension = "." + o.Extension
	}
	if o.BatchSize <= 0 {
		o.BatchSize = batch.DefaultSize
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// EntryName returns the archive path for identifier.
func (o Options) EntryName(identifier string) string {
	o = o.withDefaults()
	return path.Join(o.Prefix, identifier+o.Extension)
}

// identifierOf returns the identifier encoded in an entry name, or false when
// the name does not carry the expected extension.
func (o Options) identifierOf(name string) (string, bool) {
	base := path.Base(name)
	if !strings.HasSuffix(base, o.Extension) {
		return "", false
	}
	id := strings.TrimSuffix(base, o.Extension)
	if id == "" {
		return "", false
	}
	return id, true
}
