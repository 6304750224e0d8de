package cwb

import (
	"bufio"
	"context"
	"io"
	"iter"
	"strings"

	"github.com/cockroachdb/errors"

	"txt2cwb/pkg/contract"
)

// 区域标签
const (
	TagHeadline = "<h1>"
	TagSentence = "<s>"
	tagTextEnd  = "</text>"
)

// FormatAnnotated 对 text 调用一次模型，返回按句惰性产出的输出行：
// 开标签、每个词元一行 "surface\tpos\tlemma"、闭标签。
// 空白文本不调用模型，返回空序列。
func FormatAnnotated(ctx context.Context, ann contract.Annotator, name, text, tag string) (iter.Seq[string], error) {
	sents, err := annotate(ctx, ann, name, text)
	if err != nil {
		return nil, err
	}
	return Lines(sents, tag), nil
}

// Lines 将句子序列渲染为行序列（不调用模型）。
func Lines(sents []contract.Sentence, tag string) iter.Seq[string] {
	closing := CloseTag(tag)
	return func(yield func(string) bool) {
		for _, s := range sents {
			if !yield(tag) {
				return
			}
			for _, tok := range s.Tokens {
				if !yield(tok.Text + "\t" + tok.POS + "\t" + tok.Lemma) {
					return
				}
			}
			if !yield(closing) {
				return
			}
		}
	}
}

// CloseTag 将 "<x>" 或 "<x attr=…>" 转为 "</x>"。
func CloseTag(tag string) string {
	inner := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(tag), "<"), ">")
	if f := strings.Fields(inner); len(f) > 0 {
		inner = f[0]
	}
	return "</" + inner + ">"
}

func annotate(ctx context.Context, ann contract.Annotator, name, text string) ([]contract.Sentence, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sents, err := ann.Annotate(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.WithStack(err)
		}
		return nil, &contract.AnnotationError{Annotator: name, Err: err}
	}
	return sents, nil
}

// Emitter 将文档逐篇写出；每篇 </text> 之后冲刷，不在内存中累积整份语料。
type Emitter struct {
	w      *bufio.Writer
	ann    contract.Annotator
	name   string
	inText bool
}

// NewEmitter 构造 Emitter；name 为标注器名（用于错误归因）。
func NewEmitter(w io.Writer, ann contract.Annotator, name string) *Emitter {
	return &Emitter{w: bufio.NewWriter(w), ann: ann, name: name}
}

// OpenText 写出 <text …> 结构标签。
func (e *Emitter) OpenText(meta contract.Metadata) error {
	if e.inText {
		return errors.Wrap(contract.ErrInvalidInput, "cwb: nested <text>")
	}
	e.inText = true
	return e.line("<text " + meta.Attrs() + ">")
}

// Annotated 标注 text 并写出 tag 包裹的句子区域；返回句子数。
func (e *Emitter) Annotated(ctx context.Context, text, tag string) (int, error) {
	sents, err := annotate(ctx, e.ann, e.name, text)
	if err != nil {
		return 0, err
	}
	for l := range Lines(sents, tag) {
		if err := e.line(l); err != nil {
			return 0, err
		}
	}
	return len(sents), nil
}

// CloseText 写出 </text> 并冲刷。
func (e *Emitter) CloseText() error {
	if !e.inText {
		return errors.Wrap(contract.ErrInvalidInput, "cwb: </text> without <text>")
	}
	e.inText = false
	if err := e.line(tagTextEnd); err != nil {
		return err
	}
	return e.Flush()
}

// Document 写出一篇完整文档：标题在 <h1> 下，正文在 <s> 下。
func (e *Emitter) Document(ctx context.Context, meta contract.Metadata, doc contract.Document) (int, error) {
	if err := e.OpenText(meta); err != nil {
		return 0, err
	}
	h, err := e.Annotated(ctx, doc.Headline, TagHeadline)
	if err != nil {
		return 0, err
	}
	b, err := e.Annotated(ctx, doc.Body, TagSentence)
	if err != nil {
		return 0, err
	}
	return h + b, e.CloseText()
}

// Flush 将缓冲写入底层 writer。
func (e *Emitter) Flush() error {
	return errors.Wrap(e.w.Flush(), "cwb: flush")
}

func (e *Emitter) line(s string) error {
	if _, err := e.w.WriteString(s); err != nil {
		return errors.Wrap(err, "cwb: write")
	}
	return errors.Wrap(e.w.WriteByte('\n'), "cwb: write")
}
