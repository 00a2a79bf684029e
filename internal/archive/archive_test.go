package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/page-ingest/internal/columnar"
	"github.com/JakeFAU/page-ingest/internal/ingest"
)

type entry struct {
	name string
	body []byte
	dir  bool
}

func buildTar(t *testing.T, compression string, entries ...entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := openCompressor(&buf, compression)
	require.NoError(t, err)
	tw := tar.NewWriter(zw)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		if e.dir {
			hdr = &tar.Header{Name: e.name, Mode: 0o755, Typeflag: tar.TypeDir}
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if !e.dir {
			_, err := tw.Write(e.body)
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// readTar returns entry name to payload for every regular entry.
func readTar(t *testing.T, data []byte) map[string]string {
	t.Helper()
	rc, _, err := openDecompressor(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	out := map[string]string{}
	tr := tar.NewReader(rc)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		out[hdr.Name] = string(body)
	}
	return out
}

func compressToFile(t *testing.T, archive []byte, opts Options) (string, Stats) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raw.parquet")
	w, err := columnar.Create[ingest.RawPage](path, columnar.Options{})
	require.NoError(t, err)
	defer func() { require.NoError(t, w.Close()) }()

	stats, err := Compress(context.Background(), bytes.NewReader(archive), w, opts)
	require.NoError(t, err)
	return path, stats
}

func decompressFile(t *testing.T, path string, opts Options) []byte {
	t.Helper()
	r, err := columnar.Open[ingest.RawPage](path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	var buf bytes.Buffer
	_, err = Decompress(context.Background(), r, &buf, opts)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestCompressSkipsNonMatchingEntries(t *testing.T) {
	t.Parallel()

	archive := buildTar(t, CompressionBzip2,
		entry{name: "topic/", dir: true},
		entry{name: "topic/1.html", body: []byte("<p>one</p>")},
		entry{name: "topic/2.html", body: []byte("<p>two</p>")},
		entry{name: "readme.txt", body: []byte("ignore me")},
	)
	path, stats := compressToFile(t, archive, Options{})
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, CompressionBzip2, stats.Format)

	r, err := columnar.Open[ingest.RawPage](path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	assert.Equal(t, int64(2), r.NumRows())
	rows, err := r.ReadRowGroup(0)
	require.NoError(t, err)
	assert.Equal(t, []ingest.RawPage{
		{Symbol: "1", HTML: "<p>one</p>"},
		{Symbol: "2", HTML: "<p>two</p>"},
	}, rows)
}

func TestRoundTripIndependentOfBatchSize(t *testing.T) {
	t.Parallel()

	var entries []entry
	want := map[string]string{}
	for i := range 25 {
		name := fmt.Sprintf("topic/%d.html", 1000+i)
		body := fmt.Sprintf("<html><body>post %d</body></html>", i)
		entries = append(entries, entry{name: name, body: []byte(body)})
		want[name] = body
	}
	original := buildTar(t, CompressionBzip2, entries...)

	for _, size := range []int{1, 4, 25, 1000} {
		t.Run(fmt.Sprintf("batch_%d", size), func(t *testing.T) {
			t.Parallel()

			path, stats := compressToFile(t, original, Options{BatchSize: size})
			assert.Equal(t, (25+size-1)/size, stats.Batches)

			out := decompressFile(t, path, Options{})
			assert.Equal(t, want, readTar(t, out))
		})
	}
}

func TestDecompressEntryMetadata(t *testing.T) {
	t.Parallel()

	archive := buildTar(t, CompressionNone, entry{name: "yahoo/AAPL.html", body: []byte("héllo")})
	path, _ := compressToFile(t, archive, Options{})
	out := decompressFile(t, path, Options{Compression: "gzip", Prefix: "yahoo"})

	br := bufio.NewReader(bytes.NewReader(out))
	require.Equal(t, CompressionGzip, Detect(br))
	rc, _, err := openDecompressor(br)
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	hdr, err := tar.NewReader(rc).Next()
	require.NoError(t, err)
	assert.Equal(t, "yahoo/AAPL.html", hdr.Name)
	assert.Equal(t, int64(len("héllo")), hdr.Size)
	assert.Equal(t, int64(0o644), hdr.Mode)
	assert.True(t, hdr.ModTime.Equal(time.Unix(0, 0)))
}

func TestDecompressDeterministic(t *testing.T) {
	t.Parallel()

	archive := buildTar(t, CompressionGzip, entry{name: "topic/9.html", body: []byte("x")})
	path, stats := compressToFile(t, archive, Options{})
	assert.Equal(t, CompressionGzip, stats.Format)

	assert.Equal(t, decompressFile(t, path, Options{}), decompressFile(t, path, Options{}))
}

func TestCharsetTranscoding(t *testing.T) {
	t.Parallel()

	// "Привет" in windows-1251.
	cp1251 := []byte{0xcf, 0xf0, 0xe8, 0xe2, 0xe5, 0xf2}
	archive := buildTar(t, CompressionNone, entry{name: "topic/7.html", body: cp1251})

	path, _ := compressToFile(t, archive, Options{Encoding: "windows-1251"})
	r, err := columnar.Open[ingest.RawPage](path)
	require.NoError(t, err)
	rows, err := r.ReadRowGroup(0)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "Привет", rows[0].HTML)

	out := decompressFile(t, path, Options{Encoding: "windows-1251", Compression: "none"})
	assert.Equal(t, string(cp1251), readTar(t, out)["topic/7.html"])
}

func TestUTF8IsPassthrough(t *testing.T) {
	t.Parallel()

	invalid := []byte{0xff, 0xfe, 'a'}
	archive := buildTar(t, CompressionNone, entry{name: "topic/1.html", body: invalid})
	path, _ := compressToFile(t, archive, Options{Encoding: "UTF-8"})
	out := decompressFile(t, path, Options{})
	assert.Equal(t, string(invalid), readTar(t, out)["topic/1.html"])
}

func TestOptionValidation(t *testing.T) {
	t.Parallel()

	_, err := newTranscoder("klingon")
	require.Error(t, err)
	_, err = NormalizeCompression("rar")
	require.Error(t, err)

	w, err := columnar.Create[ingest.RawPage](filepath.Join(t.TempDir(), "x.parquet"), columnar.Options{})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()
	_, err = Compress(context.Background(), bytes.NewReader(nil), w, Options{Encoding: "klingon"})
	require.Error(t, err)
}

func TestEntryNames(t *testing.T) {
	t.Parallel()

	opts := Options{}.withDefaults()
	assert.Equal(t, "topic/AAPL.html", opts.EntryName("AAPL"))
	assert.Equal(t, "pages/AAPL.htm", Options{Prefix: "/pages/", Extension: "htm"}.EntryName("AAPL"))

	id, ok := opts.identifierOf("nested/dir/1234.html")
	assert.True(t, ok)
	assert.Equal(t, "1234", id)
	_, ok = opts.identifierOf("topic/.html")
	assert.False(t, ok)
	_, ok = opts.identifierOf("topic/1.htm")
	assert.False(t, ok)
}

func TestCompressEmptyArchive(t *testing.T) {
	t.Parallel()

	path, stats := compressToFile(t, buildTar(t, CompressionBzip2), Options{})
	assert.Zero(t, stats.Entries)
	assert.Zero(t, stats.Batches)

	r, err := columnar.Open[ingest.RawPage](path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	assert.Zero(t, r.NumRows())
}

func TestDetectPlain(t *testing.T) {
	t.Parallel()

	names := []string{}
	for name := range readTar(t, buildTar(t, CompressionNone, entry{name: "a.html", body: []byte("a")})) {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"a.html"}, names)
	assert.Equal(t, CompressionNone, Detect(bufio.NewReader(bytes.NewReader([]byte("hi")))))
}
