package archive

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// transcoder converts between archive bytes and UTF-8 column text.
type transcoder struct {
	enc encoding.Encoding
}

// newTranscoder resolves an IANA/WHATWG encoding name. UTF-8 resolves to a
// byte-exact passthrough.
func newTranscoder(name string) (transcoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return transcoder{}, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return transcoder{}, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return transcoder{enc: enc}, nil
}

func (t transcoder) decode(b []byte) (string, error) {
	if t.enc == nil {
		return string(b), nil
	}
	out, err := t.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	return string(out), nil
}

func (t transcoder) encode(s string) ([]byte, error) {
	if t.enc == nil {
		return []byte(s), nil
	}
	out, err := t.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return out, nil
}
