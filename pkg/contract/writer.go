package contract

import (
	"context"
	"io"
)

// ArtifactID: 输出工件标识（通常为源文件基名，不含扩展名）。
type ArtifactID = FileID

// Artifact: 一次打开的输出目标。
// 写入为流式（按文档冲刷，不在内存中累积整份语料）。
// Commit 与 Discard 二选一且仅调用一次：
//   - Commit: 写出完成，落盘/冲刷；
//   - Discard: 运行失败，尽力撤销尚未提交的内容。
type Artifact interface {
	io.Writer
	Commit() error
	Discard() error
}

// Writer: 将标注结果持久化到目标介质（标准输出/文件系统）。
// 约束：
//  1. 同一 ArtifactID 单写者；
//  2. ctx 取消需尽快返回；
//  3. 错误直接上抛（不做重试/回退）。
type Writer interface {
	Open(ctx context.Context, id ArtifactID) (Artifact, error)
}
