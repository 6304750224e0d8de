// Package stdout 将输出写到标准输出（默认 Writer）。
package stdout

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/cockroachdb/errors"

	"txt2cwb/pkg/contract"
)

// Options: 最小必要选项。
type Options struct {
	// BufSize: 写缓冲区大小；<=0 使用默认 64KiB。
	BufSize int `json:"buf_size,omitempty"`
}

// Writer 将工件内容写入 out（默认 os.Stdout）。
type Writer struct {
	out     io.Writer
	bufSize int
}

// New 创建标准输出 Writer。
func New(opts *Options) *Writer {
	return NewTo(os.Stdout, opts)
}

// NewTo 写入任意 io.Writer（测试或嵌入使用）。
func NewTo(out io.Writer, opts *Options) *Writer {
	w := &Writer{out: out, bufSize: 64 * 1024}
	if opts != nil && opts.BufSize > 0 {
		w.bufSize = opts.BufSize
	}
	return w
}

var _ contract.Writer = (*Writer)(nil)

// Open 返回写入标准输出的工件；id 仅用于诊断。
func (w *Writer) Open(ctx context.Context, _ contract.ArtifactID) (contract.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &artifact{bw: bufio.NewWriterSize(w.out, w.bufSize)}, nil
}

type artifact struct {
	bw   *bufio.Writer
	done bool
}

func (a *artifact) Write(p []byte) (int, error) {
	if a.done {
		return 0, errors.Wrap(os.ErrClosed, "stdout writer")
	}
	return a.bw.Write(p)
}

// Commit 冲刷缓冲。
func (a *artifact) Commit() error {
	if a.done {
		return errors.Wrap(os.ErrClosed, "stdout writer")
	}
	a.done = true
	return errors.Wrap(a.bw.Flush(), "stdout writer: flush")
}

// Discard 丢弃尚未冲刷的缓冲；已写出的内容无法撤回。
func (a *artifact) Discard() error {
	if a.done {
		return nil
	}
	a.done = true
	a.bw.Reset(io.Discard)
	return nil
}
