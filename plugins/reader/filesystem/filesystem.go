package filesystem

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/unicode/norm"

	"txt2cwb/pkg/contract"
)

// Options 为 FileSystem Reader 的可选配置（最小必要）。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
	// Encodings: 依次尝试的编码（WHATWG 名称或别名）。默认 ["utf-8","windows-1252"]。
	Encodings []string `json:"encodings"`
	// MaxBytes: 单文件大小上限，0 表示不限制。
	MaxBytes int64 `json:"max_bytes"`
}

// DefaultEncodings 为默认的编码回退顺序。
var DefaultEncodings = []string{"utf-8", "windows-1252"}

const (
	defaultBuf = 64 * 1024
	stdinName  = "-"
	stdinID    = "stdin"
)

// stdin 可在测试中替换。
var stdin io.Reader = os.Stdin

// FileSystem 实现基于文件系统与 STDIN 的 Reader。
type FileSystem struct {
	bufSize   int
	encodings []string // 规范名
	maxBytes  int64
}

// New 创建 FileSystem Reader；未知编码名返回错误。
func New(opts *Options) (*FileSystem, error) {
	r := &FileSystem{bufSize: defaultBuf}
	names := DefaultEncodings
	if opts != nil {
		if opts.BufSize > 0 {
			r.bufSize = opts.BufSize
		}
		if len(opts.Encodings) > 0 {
			names = opts.Encodings
		}
		if opts.MaxBytes < 0 {
			return nil, errors.Wrap(contract.ErrInvalidInput, "reader: max_bytes must be >= 0")
		}
		r.maxBytes = opts.MaxBytes
	}
	for _, n := range names {
		canon, err := canonicalEncoding(n)
		if err != nil {
			return nil, err
		}
		r.encodings = append(r.encodings, canon)
	}
	return r, nil
}

func canonicalEncoding(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	enc, err := htmlindex.Get(n)
	if err != nil {
		return "", errors.Wrapf(contract.ErrInvalidInput, "reader: unknown encoding %q", name)
	}
	canon, err := htmlindex.Name(enc)
	if err != nil {
		return "", errors.Wrapf(contract.ErrInvalidInput, "reader: unsupported encoding %q", name)
	}
	return canon, nil
}

// Read 读取整个文件（"-" 为 STDIN）并按编码顺序解码。
// 全部编码失败时返回 *contract.DecodeError，不产出部分文本。
func (r *FileSystem) Read(ctx context.Context, p string) (contract.Source, error) {
	if err := ctx.Err(); err != nil {
		return contract.Source{}, err
	}
	raw, id, err := r.load(p)
	if err != nil {
		return contract.Source{}, err
	}
	if err := ctx.Err(); err != nil {
		return contract.Source{}, err
	}
	for _, enc := range r.encodings {
		text, ok := decode(raw, enc)
		if !ok {
			continue
		}
		return contract.Source{
			ID:       id,
			Name:     id.BaseName(),
			Encoding: enc,
			Text:     norm.NFC.String(text),
		}, nil
	}
	return contract.Source{}, &contract.DecodeError{Path: string(id), Tried: append([]string(nil), r.encodings...)}
}

func (r *FileSystem) load(p string) ([]byte, contract.FileID, error) {
	if p == stdinName {
		b, err := r.readAll(bufio.NewReaderSize(stdin, r.bufSize))
		return b, contract.FileID(stdinID), errors.Wrap(err, "reader: stdin")
	}
	if strings.TrimSpace(p) == "" {
		return nil, "", errors.Wrap(contract.ErrInvalidInput, "reader: empty input path")
	}
	// 仅接受常规文件（符号链接跟随到常规文件）
	info, err := os.Stat(p)
	if err != nil {
		return nil, "", errors.WithStack(err)
	}
	if !info.Mode().IsRegular() {
		return nil, "", errors.Wrapf(contract.ErrInvalidInput, "reader: %s is not a regular file", p)
	}
	if r.maxBytes > 0 && info.Size() > r.maxBytes {
		return nil, "", errors.Wrapf(contract.ErrInvalidInput, "reader: %s is %d bytes, limit %d", p, info.Size(), r.maxBytes)
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, "", errors.WithStack(err)
	}
	defer f.Close()
	b, err := r.readAll(bufio.NewReaderSize(f, r.bufSize))
	if err != nil {
		return nil, "", errors.Wrapf(err, "reader: %s", p)
	}
	return b, contract.NormalizeFileID(p), nil
}

func (r *FileSystem) readAll(rd io.Reader) ([]byte, error) {
	if r.maxBytes <= 0 {
		return io.ReadAll(rd)
	}
	b, err := io.ReadAll(io.LimitReader(rd, r.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > r.maxBytes {
		return nil, errors.Wrapf(contract.ErrInvalidInput, "input exceeds %d bytes", r.maxBytes)
	}
	return b, nil
}

const utf8BOM = "\xef\xbb\xbf"

// decode 按单一编码解码；失败返回 ok=false。
// UTF-8 严格校验；单字节编码若产出 C1 控制字符或替换符，视为该码页未定义的字节。
func decode(b []byte, enc string) (string, bool) {
	if enc == "utf-8" {
		s := strings.TrimPrefix(string(b), utf8BOM)
		return s, utf8.ValidString(s)
	}
	e, err := htmlindex.Get(enc)
	if err != nil {
		return "", false
	}
	out, err := e.NewDecoder().Bytes(b)
	if err != nil {
		return "", false
	}
	s := string(out)
	for _, c := range s {
		if (c >= 0x80 && c <= 0x9f) || c == utf8.RuneError {
			return "", false
		}
	}
	return s, true
}
