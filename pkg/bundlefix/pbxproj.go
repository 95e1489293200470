package bundlefix

import (
	"fmt"
	"strings"
)

// project.pbxproj files use the old OpenStep property list syntax, which
// howett.net/plist can read but not round-trip without re-serializing the
// whole file. Rewriting the whole file would destroy Xcode's formatting
// and section comments, so this parser keeps the byte span of every string
// token it reads; a patch is then a set of span replacements spliced into
// the original bytes, leaving everything else untouched.

type pbxValue interface{}

// pbxString is a string token plus its location in the source bytes.
type pbxString struct {
	value  string
	start  int // offset of the first byte of the token (opening quote included)
	end    int // offset one past the last byte of the token
	quoted bool
}

// pbxDict preserves key order so iteration over objects follows file order.
type pbxDict struct {
	keys   []string
	values map[string]pbxValue
}

func (d *pbxDict) get(key string) pbxValue {
	if d == nil {
		return nil
	}
	return d.values[key]
}

func (d *pbxDict) str(key string) (*pbxString, bool) {
	s, ok := d.get(key).(*pbxString)
	return s, ok
}

func (d *pbxDict) dict(key string) (*pbxDict, bool) {
	s, ok := d.get(key).(*pbxDict)
	return s, ok
}

func (d *pbxDict) arr(key string) (*pbxArray, bool) {
	s, ok := d.get(key).(*pbxArray)
	return s, ok
}

type pbxArray struct {
	items []pbxValue
}

type pbxParser struct {
	data []byte
	pos  int
}

func parsePbxproj(data []byte) (*pbxDict, error) {
	p := &pbxParser{data: data}
	if err := p.skipBlanks(); err != nil {
		return nil, err
	}
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	root, ok := v.(*pbxDict)
	if !ok {
		return nil, p.errorf(0, "top level value is not a dictionary")
	}
	if err := p.skipBlanks(); err != nil {
		return nil, err
	}
	if p.pos != len(p.data) {
		return nil, p.errorf(p.pos, "unexpected content after closing brace")
	}
	return root, nil
}

func (p *pbxParser) errorf(offset int, format string, args ...interface{}) error {
	return fmt.Errorf("offset %d: %s", offset, fmt.Sprintf(format, args...))
}

// skipBlanks advances past whitespace and both comment styles.
func (p *pbxParser) skipBlanks() error {
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case c == '/' && p.pos+1 < len(p.data) && p.data[p.pos+1] == '*':
			end := strings.Index(string(p.data[p.pos+2:]), "*/")
			if end < 0 {
				return p.errorf(p.pos, "unterminated block comment")
			}
			p.pos += 2 + end + 2
		case c == '/' && p.pos+1 < len(p.data) && p.data[p.pos+1] == '/':
			nl := strings.IndexByte(string(p.data[p.pos:]), '\n')
			if nl < 0 {
				p.pos = len(p.data)
			} else {
				p.pos += nl + 1
			}
		default:
			return nil
		}
	}
	return nil
}

func (p *pbxParser) parseValue() (pbxValue, error) {
	if p.pos >= len(p.data) {
		return nil, p.errorf(p.pos, "unexpected end of file")
	}
	switch p.data[p.pos] {
	case '{':
		return p.parseDict()
	case '(':
		return p.parseArray()
	case '"':
		return p.parseQuotedString()
	default:
		return p.parseBareword()
	}
}

func (p *pbxParser) parseDict() (*pbxDict, error) {
	p.pos++ // consume '{'
	d := &pbxDict{values: make(map[string]pbxValue)}
	for {
		if err := p.skipBlanks(); err != nil {
			return nil, err
		}
		if p.pos >= len(p.data) {
			return nil, p.errorf(p.pos, "unterminated dictionary")
		}
		if p.data[p.pos] == '}' {
			p.pos++
			return d, nil
		}

		keyVal, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		key, ok := keyVal.(*pbxString)
		if !ok {
			return nil, p.errorf(p.pos, "dictionary key is not a string")
		}

		if err := p.expect('='); err != nil {
			return nil, err
		}
		if err := p.skipBlanks(); err != nil {
			return nil, err
		}
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if err := p.expect(';'); err != nil {
			return nil, err
		}

		if _, dup := d.values[key.value]; !dup {
			d.keys = append(d.keys, key.value)
		}
		d.values[key.value] = val
	}
}

func (p *pbxParser) parseArray() (*pbxArray, error) {
	p.pos++ // consume '('
	a := &pbxArray{}
	for {
		if err := p.skipBlanks(); err != nil {
			return nil, err
		}
		if p.pos >= len(p.data) {
			return nil, p.errorf(p.pos, "unterminated array")
		}
		if p.data[p.pos] == ')' {
			p.pos++
			return a, nil
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		a.items = append(a.items, v)
		if err := p.skipBlanks(); err != nil {
			return nil, err
		}
		if p.pos < len(p.data) && p.data[p.pos] == ',' {
			p.pos++
		}
	}
}

func (p *pbxParser) expect(c byte) error {
	if err := p.skipBlanks(); err != nil {
		return err
	}
	if p.pos >= len(p.data) || p.data[p.pos] != c {
		return p.errorf(p.pos, "expected %q", string(c))
	}
	p.pos++
	return nil
}

func (p *pbxParser) parseQuotedString() (*pbxString, error) {
	start := p.pos
	p.pos++ // consume opening quote
	var b strings.Builder
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		switch c {
		case '"':
			p.pos++
			return &pbxString{value: b.String(), start: start, end: p.pos, quoted: true}, nil
		case '\\':
			if p.pos+1 >= len(p.data) {
				return nil, p.errorf(p.pos, "dangling escape in string")
			}
			p.pos++
			switch p.data[p.pos] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(p.data[p.pos])
			}
			p.pos++
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return nil, p.errorf(start, "unterminated string")
}

func isBarewordByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '$' || c == '.' || c == '/' || c == ':' || c == '-' || c == '+':
		return true
	}
	return false
}

func (p *pbxParser) parseBareword() (*pbxString, error) {
	start := p.pos
	for p.pos < len(p.data) && isBarewordByte(p.data[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return nil, p.errorf(start, "unexpected character %q", string(p.data[start]))
	}
	return &pbxString{
		value: string(p.data[start:p.pos]),
		start: start,
		end:   p.pos,
	}, nil
}

// spanEdit replaces the bytes of one string token.
type spanEdit struct {
	start, end int
	text       string
}

// applyEdits splices replacements into data. Edits must not overlap; they
// are applied back to front so earlier offsets stay valid.
func applyEdits(data []byte, edits []spanEdit) []byte {
	sorted := make([]spanEdit, len(edits))
	copy(sorted, edits)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].start > sorted[j-1].start; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	out := make([]byte, len(data))
	copy(out, data)
	for _, e := range sorted {
		out = append(out[:e.start], append([]byte(e.text), out[e.end:]...)...)
	}
	return out
}

// pbxQuote renders a replacement value token, keeping the original token's
// quoting style so the surrounding line changes as little as possible.
func pbxQuote(value string, quoted bool) string {
	if !quoted && isBarewordSafe(value) {
		return value
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(value); i++ {
		if value[i] == '"' || value[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(value[i])
	}
	b.WriteByte('"')
	return b.String()
}

func isBarewordSafe(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if !isBarewordByte(value[i]) {
			return false
		}
	}
	return true
}
