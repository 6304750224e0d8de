package filesystem

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txt2cwb/pkg/contract"
)

func noTemp(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".tmp-"), "tmp file not cleaned: %s", e.Name())
	}
}

func writeAll(t *testing.T, w *FS, id, s string) error {
	t.Helper()
	a, err := w.Open(context.Background(), contract.ArtifactID(id))
	require.NoError(t, err)
	_, err = io.WriteString(a, s)
	require.NoError(t, err)
	return a.Commit()
}

// 原子写入：提交前目标不存在，提交后为完整内容
func TestOpenCommitAtomic(t *testing.T) {
	dir := t.TempDir()
	w, err := New(&Options{OutputDir: dir})
	require.NoError(t, err)
	a, err := w.Open(context.Background(), "2017_11_03_a")
	require.NoError(t, err)
	_, err = io.WriteString(a, "<text>\n")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "2017_11_03_a.vrt"))
	assert.True(t, os.IsNotExist(err), "提交前不可见")

	require.NoError(t, a.Commit())
	b, err := os.ReadFile(filepath.Join(dir, "2017_11_03_a.vrt"))
	require.NoError(t, err)
	assert.Equal(t, "<text>\n", string(b))
	noTemp(t, dir)

	// 重复提交报错，丢弃为 no-op
	assert.Error(t, a.Commit())
	assert.NoError(t, a.Discard())
	_, err = a.Write([]byte("x"))
	assert.Error(t, err)
}

// 目标已存在时替换为新内容
func TestCommitReplaceExisting(t *testing.T) {
	dir := t.TempDir()
	w, err := New(&Options{OutputDir: dir, Ext: "txt"})
	require.NoError(t, err)
	require.NoError(t, writeAll(t, w, "out", "v1"))
	require.NoError(t, writeAll(t, w, "out", "v2"))
	b, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(b))
	noTemp(t, dir)
}

// 丢弃：原子模式下保留旧文件，不残留临时文件
func TestDiscardAtomicKeepsOld(t *testing.T) {
	dir := t.TempDir()
	w, err := New(&Options{OutputDir: dir})
	require.NoError(t, err)
	require.NoError(t, writeAll(t, w, "out", "old"))

	a, err := w.Open(context.Background(), "out")
	require.NoError(t, err)
	_, _ = io.WriteString(a, "partial")
	require.NoError(t, a.Discard())
	b, err := os.ReadFile(filepath.Join(dir, "out.vrt"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(b))
	noTemp(t, dir)
}

// 非原子：直接写目标；丢弃时删除目标
func TestNonAtomic(t *testing.T) {
	dir := t.TempDir()
	off, flat := false, false
	w, err := New(&Options{OutputDir: dir, Atomic: &off, Flat: &flat})
	require.NoError(t, err)
	require.NoError(t, writeAll(t, w, "sub/out", "v"))
	_, err = os.Stat(filepath.Join(dir, "sub", "out.vrt"))
	require.NoError(t, err)

	a, err := w.Open(context.Background(), "sub/gone")
	require.NoError(t, err)
	require.NoError(t, a.Discard())
	_, err = os.Stat(filepath.Join(dir, "sub", "gone.vrt"))
	assert.True(t, os.IsNotExist(err))
}

func TestFlatKeepsBaseName(t *testing.T) {
	dir := t.TempDir()
	w, err := New(&Options{OutputDir: dir})
	require.NoError(t, err)
	require.NoError(t, writeAll(t, w, "in/nested/x", "v"))
	_, err = os.Stat(filepath.Join(dir, "x.vrt"))
	assert.NoError(t, err)
}

func TestOpenPathInvalid(t *testing.T) {
	dir := t.TempDir()
	flat := false
	w, err := New(&Options{OutputDir: dir, Flat: &flat})
	require.NoError(t, err)
	_, err = w.Open(context.Background(), "../bad")
	assert.True(t, errors.Is(err, contract.ErrPathInvalid))

	fw, err := New(&Options{OutputDir: dir})
	require.NoError(t, err)
	_, err = fw.Open(context.Background(), "..")
	assert.True(t, errors.Is(err, contract.ErrPathInvalid))
}

func TestCtxCancel(t *testing.T) {
	dir := t.TempDir()
	w, err := New(&Options{OutputDir: dir})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.Open(ctx, "a")
	assert.True(t, errors.Is(err, context.Canceled))

	ctx, cancel = context.WithCancel(context.Background())
	a, err := w.Open(ctx, "a")
	require.NoError(t, err)
	cancel()
	_, err = a.Write([]byte("x"))
	assert.True(t, errors.Is(err, context.Canceled))
	require.NoError(t, a.Discard())
	noTemp(t, dir)
}

func TestNewInvalid(t *testing.T) {
	_, err := New(nil)
	assert.True(t, errors.Is(err, contract.ErrInvalidInput))
	_, err = New(&Options{OutputDir: " "})
	assert.True(t, errors.Is(err, contract.ErrInvalidInput))
}

// BenchmarkCommit 不同输入尺寸下的写入 + 提交性能。
func BenchmarkCommit(b *testing.B) {
	for _, sz := range []int{1024, 1024 * 1024} {
		data := bytes.Repeat([]byte("palabra\tNOUN\tpalabra\n"), sz/22+1)
		b.Run(fmt.Sprintf("size=%d", sz), func(b *testing.B) {
			w, err := New(&Options{OutputDir: b.TempDir()})
			if err != nil {
				b.Fatalf("创建 Writer 失败: %v", err)
			}
			ctx := context.Background()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				a, err := w.Open(ctx, "out")
				if err != nil {
					b.Fatalf("打开失败: %v", err)
				}
				if _, err := a.Write(data); err != nil {
					b.Fatalf("写入失败: %v", err)
				}
				if err := a.Commit(); err != nil {
					b.Fatalf("提交失败: %v", err)
				}
			}
		})
	}
}
