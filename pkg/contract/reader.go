package contract

import "context"

// Reader: 输入源抽象（文件或 STDIN "-"）。
// 约束：
// 1) 一次读取整个文件并完成解码（按配置的编码顺序回退）；
// 2) 全部编码失败时返回 *DecodeError，且不得产出部分文本；
// 3) 不在内部起并发。
type Reader interface {
	Read(ctx context.Context, path string) (Source, error)
}

// Segmenter: 将输入行切分为有序 Document 序列。
// 约束：
// 1) 空行（去尾空白后为空）结束当前组；
// 2) 空组被过滤，输出顺序与文件顺序一致；
// 3) 确定性、无内部并发；空输入返回空序列而非错误。
type Segmenter interface {
	Segment(ctx context.Context, lines []string) ([]Document, error)
}

// Annotator: 外部 NLP 模型（分句、分词、词性、词形还原）的调用契约。
// 单次调用、同步返回；句子保持文档顺序，词元保持模型顺序。
// 对输出不做任何校验或改写。
type Annotator interface {
	Annotate(ctx context.Context, text string) ([]Sentence, error)
}
