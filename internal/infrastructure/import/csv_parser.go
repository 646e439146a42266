package csvimport

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Common parsing errors
var (
	ErrEmptyFile       = errors.New("CSV file is empty")
	ErrInvalidEncoding = errors.New("CSV file is not valid UTF-8")
	ErrMissingHeader   = errors.New("CSV file missing header row")
)

// utf8BOM is stripped from the start of the file. Spreadsheet exports add it.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// encodingCheckSize is how many leading bytes are checked for UTF-8
const encodingCheckSize = 4096

// CSVParser reads a header row followed by data rows keyed by header name
type CSVParser struct {
	delimiter  rune
	headers    []string
	headerMap  map[string]int
	currentRow int
	reader     *csv.Reader
}

// ParserOption is a functional option for CSVParser configuration
type ParserOption func(*CSVParser)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) ParserOption {
	return func(p *CSVParser) {
		p.delimiter = d
	}
}

// NewCSVParser creates a parser, strips a UTF-8 BOM and rejects files that
// are empty or not UTF-8.
func NewCSVParser(r io.Reader, opts ...ParserOption) (*CSVParser, error) {
	p := &CSVParser{
		delimiter: ',',
		headerMap: make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}

	buf := bufio.NewReaderSize(r, encodingCheckSize)
	head, err := buf.Peek(len(utf8BOM))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if string(head) == string(utf8BOM) {
		_, _ = buf.Discard(len(utf8BOM))
	}

	content, err := buf.Peek(encodingCheckSize)
	if err != nil && err != io.EOF && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(content) == 0 {
		return nil, ErrEmptyFile
	}
	if !validUTF8Prefix(content) {
		return nil, ErrInvalidEncoding
	}

	p.reader = csv.NewReader(buf)
	p.reader.Comma = p.delimiter
	p.reader.LazyQuotes = true
	// a whitespace delimiter would swallow empty fields
	p.reader.TrimLeadingSpace = !unicode.IsSpace(p.delimiter)
	p.reader.FieldsPerRecord = -1
	return p, nil
}

// validUTF8Prefix allows the check window to cut a multi-byte rune in half
func validUTF8Prefix(b []byte) bool {
	if utf8.Valid(b) {
		return true
	}
	for i := 1; i < utf8.UTFMax && i < len(b); i++ {
		if utf8.Valid(b[:len(b)-i]) {
			return !utf8.FullRune(b[len(b)-i:])
		}
	}
	return false
}

// ParseHeader reads the header row
func (p *CSVParser) ParseHeader() error {
	record, err := p.reader.Read()
	if err == io.EOF {
		return ErrMissingHeader
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	p.headers = make([]string, 0, len(record))
	for i, h := range record {
		h = strings.TrimSpace(h)
		p.headers = append(p.headers, h)
		p.headerMap[h] = i
	}
	if len(p.headers) == 0 || (len(p.headers) == 1 && p.headers[0] == "") {
		return ErrMissingHeader
	}
	p.currentRow = 1
	return nil
}

// MissingHeaders returns the required headers that are absent
func (p *CSVParser) MissingHeaders(required []string) []string {
	var missing []string
	for _, h := range required {
		if _, ok := p.headerMap[h]; !ok {
			missing = append(missing, h)
		}
	}
	return missing
}

// Row is a data row with its 1-indexed line number
type Row struct {
	LineNumber int
	Data       map[string]string
}

// Get returns the value for a column by header name
func (r *Row) Get(header string) string {
	return r.Data[header]
}

// isEmpty reports whether every value of the row is empty
func (r *Row) isEmpty() bool {
	for _, v := range r.Data {
		if v != "" {
			return false
		}
	}
	return true
}

// readRow reads the next row. It returns io.EOF after the last row.
func (p *CSVParser) readRow() (*Row, error) {
	record, err := p.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	p.currentRow++
	if err != nil {
		return nil, fmt.Errorf("error reading row %d: %w", p.currentRow, err)
	}

	row := &Row{
		LineNumber: p.currentRow,
		Data:       make(map[string]string, len(p.headers)),
	}
	for i, header := range p.headers {
		if i < len(record) {
			row.Data[header] = strings.TrimSpace(record[i])
		} else {
			row.Data[header] = ""
		}
	}
	return row, nil
}

// ReadAllRows reads the remaining rows, skipping blank ones
func (p *CSVParser) ReadAllRows() ([]*Row, error) {
	var rows []*Row
	for {
		row, err := p.readRow()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		if !row.isEmpty() {
			rows = append(rows, row)
		}
	}
}
