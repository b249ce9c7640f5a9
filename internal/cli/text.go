// Package cli converts between command line text and the toy RSA core:
// parsing keys and moduli, reading plaintext in character or number form,
// and writing delimited cipher units.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/user/toyrsa/internal/rsa"
)

// ErrInvalidInput marks malformed user input. Commands map it to a usage error.
var ErrInvalidInput = errors.New("invalid input")

// Format is the textual form of plaintext.
type Format int

const (
	// Chars treats plaintext as raw bytes.
	Chars Format = iota
	// Numbers treats plaintext as delimited byte values.
	Numbers
)

func (f Format) String() string {
	if f == Numbers {
		return "numbers"
	}
	return "chars"
}

// ParseFormat parses "chars" or "numbers".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "chars":
		return Chars, nil
	case "numbers":
		return Numbers, nil
	}
	return Chars, fmt.Errorf("%w: unknown format %q (want chars or numbers)", ErrInvalidInput, s)
}

// Options controls how text is read and written.
type Options struct {
	Format    Format
	Delimiter string
}

// DefaultOptions reads characters and separates numbers with a space.
func DefaultOptions() Options {
	return Options{Format: Chars, Delimiter: " "}
}

// ValidateDelimiter rejects empty delimiters and delimiters containing digits.
func ValidateDelimiter(d string) error {
	if d == "" {
		return fmt.Errorf("%w: empty delimiter", ErrInvalidInput)
	}
	if strings.ContainsAny(d, "0123456789") {
		return fmt.Errorf("%w: delimiter %q contains digits", ErrInvalidInput, d)
	}
	return nil
}

// ParseUint parses a key or modulus the way strtoul does with base 0:
// optional leading whitespace and '+', then decimal, 0x-prefixed hex or
// 0-prefixed octal. Nothing may follow the digits and the value must fit
// 32 bits.
func ParseUint(s string) (uint32, error) {
	digits := strings.TrimLeft(s, " \t\n\v\f\r")
	digits = strings.TrimPrefix(digits, "+")

	base := 10
	switch {
	case len(digits) > 2 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X'):
		base, digits = 16, digits[2:]
	case len(digits) > 1 && digits[0] == '0':
		base, digits = 8, digits[1:]
	}

	// with an explicit base strconv rejects signs, underscores and 0b/0o
	v, err := strconv.ParseUint(digits, base, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an unsigned 32-bit integer", ErrInvalidInput, s)
	}
	return uint32(v), nil
}

// ValidateModulus rejects a zero modulus, for which no residue exists.
func ValidateModulus(m uint32) error {
	if m == 0 {
		return fmt.Errorf("%w: modulus must be positive", ErrInvalidInput)
	}
	return nil
}

func splitUnits(text, delim string) []string {
	if delim != " " {
		text = strings.ReplaceAll(text, delim, " ")
	}
	return strings.Fields(text)
}

func parseUnits(text, delim string, bits int) ([]uint64, error) {
	fields := splitUnits(text, delim)
	out := make([]uint64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 10, bits)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a valid number", ErrInvalidInput, f)
		}
		out = append(out, v)
	}
	return out, nil
}

func plaintextBytes(text string, opts Options) ([]byte, error) {
	if opts.Format == Chars {
		return []byte(text), nil
	}
	values, err := parseUnits(text, opts.Delimiter, 8)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(values))
	for i, v := range values {
		out[i] = byte(v)
	}
	return out, nil
}

type unitWriter struct {
	w     *bufio.Writer
	delim string
	count int
}

func (u *unitWriter) write(v uint32) {
	if u.count > 0 {
		u.w.WriteString(u.delim)
	}
	u.w.WriteString(strconv.FormatUint(uint64(v), 10))
	u.count++
}

func (u *unitWriter) finish() error {
	if u.count > 0 {
		u.w.WriteByte('\n')
	}
	return u.w.Flush()
}

// EncryptText encrypts plaintext given as an argument. In chars format an
// encrypted newline is appended, so the decrypted message ends in one line
// break. The cipher units are written on one line, separated by the delimiter.
func EncryptText(w io.Writer, plaintext string, key, modulus uint32, opts Options) error {
	msg, err := plaintextBytes(plaintext, opts)
	if err != nil {
		return err
	}
	if opts.Format == Chars {
		msg = append(msg, '\n')
	}

	out := &unitWriter{w: bufio.NewWriter(w), delim: opts.Delimiter}
	for _, b := range msg {
		out.write(rsa.Encrypt(b, key, modulus))
	}
	return out.finish()
}

// EncryptStream encrypts plaintext read from r. No newline is added; the
// stream carries its own. An empty stream produces no output.
func EncryptStream(r io.Reader, w io.Writer, key, modulus uint32, opts Options) error {
	if opts.Format == Numbers {
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("failed to read plaintext: %w", err)
		}
		msg, err := plaintextBytes(string(data), opts)
		if err != nil {
			return err
		}
		out := &unitWriter{w: bufio.NewWriter(w), delim: opts.Delimiter}
		for _, b := range msg {
			out.write(rsa.Encrypt(b, key, modulus))
		}
		return out.finish()
	}

	in := bufio.NewReader(r)
	out := &unitWriter{w: bufio.NewWriter(w), delim: opts.Delimiter}
	for {
		b, err := in.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read plaintext: %w", err)
		}
		out.write(rsa.Encrypt(b, key, modulus))
	}
	return out.finish()
}

// DecryptText decrypts delimited cipher units. In chars format the recovered
// bytes are written as is; in numbers format they are written as delimited
// values followed by a newline.
func DecryptText(w io.Writer, ciphertext string, key, modulus uint32, opts Options) error {
	units, err := parseUnits(ciphertext, opts.Delimiter, 32)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	if opts.Format == Numbers {
		out := &unitWriter{w: bw, delim: opts.Delimiter}
		for _, c := range units {
			out.write(uint32(rsa.Decrypt(uint32(c), key, modulus)))
		}
		return out.finish()
	}

	for _, c := range units {
		bw.WriteByte(rsa.Decrypt(uint32(c), key, modulus))
	}
	return bw.Flush()
}

// DecryptStream decrypts delimited cipher units read from r.
func DecryptStream(r io.Reader, w io.Writer, key, modulus uint32, opts Options) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read ciphertext: %w", err)
	}
	return DecryptText(w, string(data), key, modulus, opts)
}
