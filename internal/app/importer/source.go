package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/heartmarshall/account-import/internal/config"
)

// Row is one record of the import file. Number is the 1-based line the
// record starts on.
type Row struct {
	Number int
	Fields []string
}

// Source reads rows from a delimited import file. Blank lines are skipped by
// the CSV reader; the header line is skipped when configured.
type Source struct {
	closer     io.Closer
	reader     *csv.Reader
	skipHeader bool
	started    bool
}

// OpenSource opens path and decodes it with the configured charset.
func OpenSource(path string, cfg config.ImportConfig) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}

	src, err := NewSource(f, cfg.Charset, cfg.DelimiterRune(), cfg.SkipHeader)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	src.closer = f
	return src, nil
}

// NewSource reads rows from r. A UTF-8 byte order mark is dropped whatever
// the charset.
func NewSource(r io.Reader, charset string, delimiter rune, skipHeader bool) (*Source, error) {
	dec, err := decoderFor(charset)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(dec.NewDecoder())))
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	return &Source{reader: cr, skipHeader: skipHeader}, nil
}

// Next returns the next row or io.EOF. A *csv.ParseError describes a line
// that could not be split; reading may continue after it.
func (s *Source) Next() (Row, error) {
	if !s.started {
		s.started = true
		if s.skipHeader {
			if _, err := s.reader.Read(); err != nil {
				if errors.Is(err, io.EOF) {
					return Row{}, io.EOF
				}
				return Row{}, fmt.Errorf("read header: %w", err)
			}
		}
	}

	fields, err := s.reader.Read()
	if err != nil {
		return Row{}, err
	}

	line, _ := s.reader.FieldPos(0)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return Row{Number: line, Fields: fields}, nil
}

// Close closes the underlying file, if any.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func decoderFor(charset string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8, nil
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	}
	return nil, fmt.Errorf("unsupported charset %q", charset)
}
