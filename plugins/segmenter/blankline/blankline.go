package blankline

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"txt2cwb/pkg/contract"
)

// Options 为空行分段器的可选配置（最小必要）。
type Options struct {
	// MaxDocumentBytes: 单篇文档（标题+正文）最大字节数。0 表示不限制。
	MaxDocumentBytes int `json:"max_document_bytes"`
}

// Segmenter 以空行为分隔，将行序列切分为文档。
type Segmenter struct {
	maxBytes int
}

// New 创建空行分段器。
func New(opts *Options) *Segmenter {
	mb := 0
	if opts != nil && opts.MaxDocumentBytes > 0 {
		mb = opts.MaxDocumentBytes
	}
	return &Segmenter{maxBytes: mb}
}

// Segment 依序切分：空行（去尾空白后为空）结束当前组，首行为标题，其余行以单空格拼为正文。
// 空组被过滤；循环结束后显式冲刷未结束的组。
func (s *Segmenter) Segment(ctx context.Context, lines []string) ([]contract.Document, error) {
	var docs []contract.Document
	var group []string
	size := 0

	flush := func() error {
		if len(group) == 0 {
			return nil
		}
		doc := contract.Document{Headline: group[0], Body: strings.Join(group[1:], " ")}
		if s.maxBytes > 0 && len(doc.Headline)+len(doc.Body) > s.maxBytes {
			return errors.Wrapf(contract.ErrInvalidInput, "document %d too large: %d > %d",
				len(docs)+1, len(doc.Headline)+len(doc.Body), s.maxBytes)
		}
		docs = append(docs, doc)
		group = group[:0]
		size = 0
		return nil
	}

	for i, raw := range lines {
		// 周期性检查取消
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		line := strings.TrimRight(raw, " \t\r\n\v\f")
		if line == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		// 早期尺寸检查：预测 join 后的大小（分隔符个数为正文已有行数）
		if s.maxBytes > 0 {
			predicted := size + len(line)
			if len(group) > 1 {
				predicted += len(group) - 1
			}
			if predicted > s.maxBytes {
				return nil, errors.Wrapf(contract.ErrInvalidInput, "document %d too large: %d > %d",
					len(docs)+1, predicted, s.maxBytes)
			}
		}
		group = append(group, line)
		size += len(line)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return docs, nil
}
