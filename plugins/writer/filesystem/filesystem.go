package filesystem

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"txt2cwb/pkg/contract"
)

// Options: 最小必要选项。
type Options struct {
	// OutputDir: 输出根目录（必需）。
	OutputDir string `json:"output_dir"`
	// Ext: 输出文件扩展名，默认 ".vrt"。
	Ext string `json:"ext,omitempty"`
	// Atomic: 是否使用原子替换（同目录临时文件 + rename）。默认 true，显式 false 可关闭。
	Atomic *bool `json:"atomic,omitempty"`
	// Flat: 是否仅保留文件名，不保留目录层级。默认 true。
	Flat *bool `json:"flat,omitempty"`
	// PermFile/PermDir: 可选权限；为 0 表示使用默认。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	PermDir  os.FileMode `json:"perm_dir,omitempty"`
	// BufSize: 写缓冲区大小；<=0 使用默认 64KiB。
	BufSize int `json:"buf_size,omitempty"`
}

// DefaultExt 为 CWB 竖排文件的惯用扩展名。
const DefaultExt = ".vrt"

// FS 将每个工件写为 <output_dir>/<id><ext>。
type FS struct {
	root    string
	ext     string
	atomic  bool
	flat    bool
	permF   os.FileMode
	permD   os.FileMode
	bufSize int
}

// New 创建文件系统 Writer 实现。
func New(opts *Options) (*FS, error) {
	if opts == nil || strings.TrimSpace(opts.OutputDir) == "" {
		return nil, errors.Wrap(contract.ErrInvalidInput, "fs writer: output_dir required")
	}
	w := &FS{root: opts.OutputDir, ext: opts.Ext, atomic: true, flat: true, permF: 0o644, permD: 0o755, bufSize: 64 * 1024}
	if w.ext == "" {
		w.ext = DefaultExt
	} else if !strings.HasPrefix(w.ext, ".") {
		w.ext = "." + w.ext
	}
	if opts.BufSize > 0 {
		w.bufSize = opts.BufSize
	}
	if opts.PermFile != 0 {
		w.permF = opts.PermFile
	}
	if opts.PermDir != 0 {
		w.permD = opts.PermDir
	}
	if opts.Flat != nil {
		w.flat = *opts.Flat
	}
	if opts.Atomic != nil {
		w.atomic = *opts.Atomic
	}
	return w, nil
}

var _ contract.Writer = (*FS)(nil)

// Open 创建目标文件（原子模式下为同目录临时文件），返回流式工件。
func (w *FS) Open(ctx context.Context, id contract.ArtifactID) (contract.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dest, err := w.mapPath(id)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, w.permD); err != nil {
		return nil, errors.WithStack(err)
	}
	a := &artifact{ctx: ctx, dest: dest, atomic: w.atomic}
	if w.atomic {
		tmp, err := os.CreateTemp(dir, ".tmp-*")
		if err != nil {
			return nil, errors.WithStack(err)
		}
		// 目标权限：尽量与期望一致
		_ = os.Chmod(tmp.Name(), w.permF)
		a.f, a.path = tmp, tmp.Name()
	} else {
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, w.permF)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		a.f, a.path = f, dest
	}
	a.bw = bufio.NewWriterSize(a.f, w.bufSize)
	return a, nil
}

// mapPath: Clean + Join + 越界校验。
func (w *FS) mapPath(id contract.ArtifactID) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(string(id)))
	if w.flat {
		rel = filepath.Base(rel)
		if rel == "." || rel == ".." || rel == "" || rel == string(filepath.Separator) {
			return "", contract.ErrPathInvalid
		}
		return filepath.Join(w.root, rel+w.ext), nil
	}
	// 非扁平：禁止绝对路径、父级逃逸、Windows 卷名
	switch {
	case rel == "." || rel == "":
		return "", contract.ErrPathInvalid
	case filepath.IsAbs(rel):
		return "", contract.ErrPathInvalid
	case rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)):
		return "", contract.ErrPathInvalid
	case filepath.VolumeName(rel) != "":
		return "", contract.ErrPathInvalid
	}
	return filepath.Join(w.root, rel+w.ext), nil
}

// artifact 为一次打开的输出文件。
type artifact struct {
	ctx    context.Context
	f      *os.File
	bw     *bufio.Writer
	path   string // 实际写入路径（原子模式下为临时文件）
	dest   string
	atomic bool
	done   bool
}

func (a *artifact) Write(p []byte) (int, error) {
	if a.done {
		return 0, errors.Wrap(os.ErrClosed, "fs writer")
	}
	// 每次写入前检查取消
	if err := a.ctx.Err(); err != nil {
		return 0, err
	}
	return a.bw.Write(p)
}

// Commit 冲刷并落盘；原子模式下替换目标文件。
func (a *artifact) Commit() error {
	if a.done {
		return errors.Wrap(os.ErrClosed, "fs writer")
	}
	a.done = true
	if err := a.bw.Flush(); err != nil {
		return a.abort(err)
	}
	if err := a.f.Sync(); err != nil {
		return a.abort(err)
	}
	if err := a.f.Close(); err != nil {
		_ = os.Remove(a.path)
		return errors.WithStack(err)
	}
	if !a.atomic {
		return nil
	}
	// 平台特定的原子替换（或最佳努力）
	if err := osReplace(a.path, a.dest); err != nil {
		_ = os.Remove(a.path)
		return errors.Wrapf(err, "fs writer: replace %s", a.dest)
	}
	// 最佳努力：同步父目录
	_ = syncDir(filepath.Dir(a.dest))
	return nil
}

// Discard 关闭并删除尚未提交的内容；已提交或已丢弃时为 no-op。
func (a *artifact) Discard() error {
	if a.done {
		return nil
	}
	a.done = true
	_ = a.f.Close()
	if err := os.Remove(a.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.WithStack(err)
	}
	return nil
}

func (a *artifact) abort(err error) error {
	_ = a.f.Close()
	_ = os.Remove(a.path)
	return errors.WithStack(err)
}
