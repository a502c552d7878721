package wire

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/veyronis/anytuple/variant"
)

// StringCodec implements the textual wire grammar of spec §6:
//
//	object   := Name "(" [ value { "," value } ] ")" | Name "(" ")"
//	value    := number | string | object | sequence
//	sequence := "{" [ value { "," value } ] "}"
//	string   := '"' { any-char-except-quote | '\"' } '"'
//
// Whitespace and commas are interchangeable between tokens.
type StringCodec struct{}

// NewSerializer starts a fresh string render.
func (StringCodec) NewSerializer() (Serializer, Sink) {
	s := &stringSerializer{}
	return s, s
}

// NewDeserializer wraps data for reading.
func (StringCodec) NewDeserializer(data []byte) (Deserializer, error) {
	return &stringDeserializer{buf: data}, nil
}

type frame struct{ count int }

type stringSerializer struct {
	sb     strings.Builder
	stack  []frame
	closed bool
}

func (s *stringSerializer) topSeparator() {
	if len(s.stack) == 0 {
		return
	}
	top := &s.stack[len(s.stack)-1]
	if top.count > 0 {
		s.sb.WriteString(", ")
	}
	top.count++
}

func (s *stringSerializer) BeginObject(name string) error {
	s.topSeparator()
	s.sb.WriteString(name)
	s.sb.WriteString(" ( ")
	s.stack = append(s.stack, frame{})
	return nil
}

func (s *stringSerializer) EndObject() error {
	if len(s.stack) == 0 {
		return errors.Wrap(ErrBadFormat, "EndObject without matching BeginObject")
	}
	s.stack = s.stack[:len(s.stack)-1]
	s.sb.WriteString(" )")
	return nil
}

func (s *stringSerializer) BeginSequence(n int) error {
	s.topSeparator()
	s.sb.WriteString("{ ")
	s.stack = append(s.stack, frame{})
	return nil
}

func (s *stringSerializer) EndSequence() error {
	if len(s.stack) == 0 {
		return errors.Wrap(ErrBadFormat, "EndSequence without matching BeginSequence")
	}
	s.stack = s.stack[:len(s.stack)-1]
	s.sb.WriteString(" }")
	return nil
}

func (s *stringSerializer) WriteValue(v variant.Variant) error {
	s.topSeparator()
	s.sb.WriteString(renderVariant(v))
	return nil
}

func (s *stringSerializer) WriteTuple(values []variant.Variant) error {
	for _, v := range values {
		if err := s.WriteValue(v); err != nil {
			return err
		}
	}
	return nil
}

func (s *stringSerializer) Bytes() []byte { return []byte(s.sb.String()) }

func renderVariant(v variant.Variant) string {
	switch v.Kind() {
	case variant.KindNull:
		return ""
	case variant.KindI8, variant.KindI16, variant.KindI32, variant.KindI64:
		n, _ := v.Int64()
		return strconv.FormatInt(n, 10)
	case variant.KindU8, variant.KindU16, variant.KindU32, variant.KindU64:
		n, _ := v.Uint64()
		return strconv.FormatUint(n, 10)
	case variant.KindF32:
		f, _ := v.Float32()
		return strconv.FormatFloat(float64(f), 'g', -1, 32)
	case variant.KindF64:
		f, _ := v.Float64()
		return strconv.FormatFloat(f, 'g', -1, 64)
	case variant.KindF128:
		f, _ := v.Float128()
		return quoteString(hex.EncodeToString(f[:]))
	case variant.KindUTF8, variant.KindUTF16, variant.KindUTF32:
		str, _ := v.String()
		return quoteString(str)
	default:
		return ""
	}
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}

type stringDeserializer struct {
	buf []byte
	pos int
}

func isSeparator(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == ','
}

func (d *stringDeserializer) skipSeparators() {
	for d.pos < len(d.buf) && isSeparator(d.buf[d.pos]) {
		d.pos++
	}
}

func (d *stringDeserializer) peek() (byte, bool) {
	d.skipSeparators()
	if d.pos >= len(d.buf) {
		return 0, false
	}
	return d.buf[d.pos], true
}

func isNameByte(b byte) bool {
	switch b {
	case '(', ')', '{', '}', ',', '"', ' ', '\t', '\n', '\r':
		return false
	default:
		return true
	}
}

func (d *stringDeserializer) readName() (string, error) {
	d.skipSeparators()
	start := d.pos
	for d.pos < len(d.buf) && isNameByte(d.buf[d.pos]) {
		d.pos++
	}
	if d.pos == start {
		return "", errors.Wrap(ErrBadFormat, "expected a type name")
	}
	return string(d.buf[start:d.pos]), nil
}

func (d *stringDeserializer) consume(b byte) bool {
	d.skipSeparators()
	if d.pos < len(d.buf) && d.buf[d.pos] == b {
		d.pos++
		return true
	}
	return false
}

// PeekObject returns the next object's name without consuming input.
func (d *stringDeserializer) PeekObject() (string, error) {
	save := d.pos
	name, err := d.readName()
	d.pos = save
	return name, err
}

// SeekObject consumes the next object's name and its opening delimiter.
func (d *stringDeserializer) SeekObject() (string, error) {
	name, err := d.readName()
	if err != nil {
		return "", err
	}
	if !d.consume('(') {
		return "", errors.Wrap(ErrBadFormat, "expected '(' after object name")
	}
	return name, nil
}

func (d *stringDeserializer) BeginObject(name string) error {
	got, err := d.SeekObject()
	if err != nil {
		return err
	}
	if got != name {
		return errors.Wrapf(ErrBadFormat, "expected object %q, got %q", name, got)
	}
	return nil
}

func (d *stringDeserializer) EndObject() error {
	if !d.consume(')') {
		return errors.Wrap(ErrBadFormat, "expected ')'")
	}
	return nil
}

func (d *stringDeserializer) BeginSequence() (int, error) {
	if !d.consume('{') {
		return 0, errors.Wrap(ErrBadFormat, "expected '{'")
	}
	n, err := d.countSequenceElements()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (d *stringDeserializer) EndSequence() error {
	if !d.consume('}') {
		return errors.Wrap(ErrBadFormat, "expected '}'")
	}
	return nil
}

// countSequenceElements looks ahead (without moving d.pos past what it
// scans) to count the comma-separated top-level values up to the matching
// closing brace, so BeginSequence can report a size even though the textual
// grammar carries no explicit length prefix.
func (d *stringDeserializer) countSequenceElements() (int, error) {
	i := d.pos
	depth := 0
	inQuote := false
	commas := 0
	any := false
	for {
		if i >= len(d.buf) {
			return 0, errors.Wrap(ErrBadFormat, "unterminated sequence")
		}
		c := d.buf[i]
		if inQuote {
			if c == '\\' {
				i += 2
				continue
			}
			if c == '"' {
				inQuote = false
			}
			i++
			continue
		}
		switch c {
		case '"':
			inQuote = true
			any = true
		case '(', '{':
			depth++
			any = true
		case ')':
			depth--
		case '}':
			if depth == 0 {
				if !any {
					return 0, nil
				}
				return commas + 1, nil
			}
			depth--
		case ',':
			if depth == 0 {
				commas++
			}
		default:
			if !isSeparator(c) {
				any = true
			}
		}
		i++
	}
}

func (d *stringDeserializer) readQuotedString() (string, error) {
	if !d.consume('"') {
		return "", errors.Wrap(ErrBadFormat, "expected opening quote")
	}
	var b strings.Builder
	for {
		if d.pos >= len(d.buf) {
			return "", errors.Wrap(ErrBadFormat, "unterminated string")
		}
		c := d.buf[d.pos]
		if c == '\\' && d.pos+1 < len(d.buf) && d.buf[d.pos+1] == '"' {
			b.WriteByte('"')
			d.pos += 2
			continue
		}
		if c == '"' {
			d.pos++
			return b.String(), nil
		}
		b.WriteByte(c)
		d.pos++
	}
}

func (d *stringDeserializer) readNumberToken() (string, error) {
	d.skipSeparators()
	start := d.pos
	for d.pos < len(d.buf) {
		c := d.buf[d.pos]
		if c == ')' || c == '}' || c == ',' || isSeparator(c) {
			break
		}
		d.pos++
	}
	if d.pos == start {
		return "", errors.Wrap(ErrBadFormat, "expected a number")
	}
	return string(d.buf[start:d.pos]), nil
}

func (d *stringDeserializer) ReadValue(kind variant.Kind) (variant.Variant, error) {
	switch kind {
	case variant.KindNull:
		return variant.Null(), nil
	case variant.KindUTF8, variant.KindUTF16, variant.KindUTF32:
		s, err := d.readQuotedString()
		if err != nil {
			return variant.Variant{}, err
		}
		switch kind {
		case variant.KindUTF16:
			return variant.NewUTF16(s), nil
		case variant.KindUTF32:
			return variant.NewUTF32(s), nil
		default:
			return variant.NewUTF8(s), nil
		}
	case variant.KindF128:
		s, err := d.readQuotedString()
		if err != nil {
			return variant.Variant{}, err
		}
		raw, err := hex.DecodeString(s)
		if err != nil || len(raw) != 16 {
			return variant.Variant{}, errors.Wrap(ErrBadFormat, "malformed f128 payload")
		}
		var f variant.F128
		copy(f[:], raw)
		return variant.NewF128(f), nil
	case variant.KindF32:
		tok, err := d.readNumberToken()
		if err != nil {
			return variant.Variant{}, err
		}
		f, err := strconv.ParseFloat(tok, 32)
		if err != nil {
			return variant.Variant{}, errors.Wrap(ErrBadFormat, "malformed f32")
		}
		return variant.NewF32(float32(f)), nil
	case variant.KindF64:
		tok, err := d.readNumberToken()
		if err != nil {
			return variant.Variant{}, err
		}
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return variant.Variant{}, errors.Wrap(ErrBadFormat, "malformed f64")
		}
		return variant.NewF64(f), nil
	default:
		tok, err := d.readNumberToken()
		if err != nil {
			return variant.Variant{}, err
		}
		if kind.Signed() {
			n, err := strconv.ParseInt(tok, 10, 64)
			if err != nil {
				return variant.Variant{}, errors.Wrap(ErrBadFormat, "malformed integer")
			}
			return intVariant(kind, n), nil
		}
		n, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return variant.Variant{}, errors.Wrap(ErrBadFormat, "malformed unsigned integer")
		}
		return uintVariant(kind, n), nil
	}
}

func intVariant(kind variant.Kind, n int64) variant.Variant {
	switch kind {
	case variant.KindI8:
		return variant.NewI8(int8(n))
	case variant.KindI16:
		return variant.NewI16(int16(n))
	case variant.KindI32:
		return variant.NewI32(int32(n))
	default:
		return variant.NewI64(n)
	}
}

func uintVariant(kind variant.Kind, n uint64) variant.Variant {
	switch kind {
	case variant.KindU8:
		return variant.NewU8(uint8(n))
	case variant.KindU16:
		return variant.NewU16(uint16(n))
	case variant.KindU32:
		return variant.NewU32(uint32(n))
	default:
		return variant.NewU64(n)
	}
}

func (d *stringDeserializer) ReadTuple(kinds []variant.Kind) ([]variant.Variant, error) {
	out := make([]variant.Variant, len(kinds))
	for i, k := range kinds {
		v, err := d.ReadValue(k)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
