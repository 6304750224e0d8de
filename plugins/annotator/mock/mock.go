package mock

import (
	"context"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/cockroachdb/errors"

	"txt2cwb/pkg/contract"
)

// Options: 最小调试配置（可选）。
type Options struct {
	// POS: 所有词元的词性，默认 "X"。
	POS string `json:"pos"`
	// FailOn: 文本包含该子串时返回错误（用于验证失败即停）。
	FailOn string `json:"fail_on"`
	// FailAfter: 第 N 次调用之后的调用全部失败；0 表示不启用。
	FailAfter int `json:"fail_after"`
}

// ErrInjected 为注入的标注失败。
var ErrInjected = errors.New("mock: injected failure")

// Annotator 是确定性的调试标注器：
// 句子在 . ! ? 之后切分；按空白切词并拆出尾随标点；词元为小写原文。
type Annotator struct {
	pos       string
	failOn    string
	failAfter int32
	calls     atomic.Int32
}

// New 构造 Annotator。
func New(opts *Options) *Annotator {
	a := &Annotator{pos: "X"}
	if opts != nil {
		if opts.POS != "" {
			a.pos = opts.POS
		}
		a.failOn = opts.FailOn
		a.failAfter = int32(opts.FailAfter)
	}
	return a
}

// Calls 返回累计调用次数。
func (a *Annotator) Calls() int { return int(a.calls.Load()) }

func (a *Annotator) Annotate(ctx context.Context, text string) ([]contract.Sentence, error) {
	n := a.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.failAfter > 0 && n > a.failAfter {
		return nil, errors.Wrapf(ErrInjected, "call %d", n)
	}
	if a.failOn != "" && strings.Contains(text, a.failOn) {
		return nil, errors.Wrapf(ErrInjected, "text contains %q", a.failOn)
	}
	var out []contract.Sentence
	var cur []contract.Token
	var words []string
	flush := func() {
		if len(cur) > 0 {
			out = append(out, contract.Sentence{Text: strings.Join(words, " "), Tokens: cur})
		}
		cur, words = nil, nil
	}
	for _, f := range strings.Fields(text) {
		words = append(words, f)
		core, tail := splitTrailingPunct(f)
		if core != "" {
			cur = append(cur, a.token(core))
		}
		end := false
		for _, p := range tail {
			cur = append(cur, a.token(string(p)))
			if p == '.' || p == '!' || p == '?' {
				end = true
			}
		}
		if end {
			flush()
		}
	}
	flush()
	return out, nil
}

func (a *Annotator) token(s string) contract.Token {
	return contract.Token{Text: s, POS: a.pos, Lemma: strings.ToLower(s)}
}

// splitTrailingPunct 拆出词尾连续标点。
func splitTrailingPunct(w string) (string, []rune) {
	rs := []rune(w)
	i := len(rs)
	for i > 0 && unicode.IsPunct(rs[i-1]) {
		i--
	}
	return string(rs[:i]), rs[i:]
}

var _ contract.Annotator = (*Annotator)(nil)
