// Package rules 实现离线标注器：Punkt 分句、正则分词、词典 + 后缀规则标注词性与词元。
package rules

import (
	"context"
	_ "embed"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/neurosnap/sentences"

	"txt2cwb/pkg/contract"
)

// Options 为规则标注器的可选配置。
type Options struct {
	// PunktModel: 自定义 Punkt 训练 JSON 路径；为空使用内置西班牙语模型。
	PunktModel string `json:"punkt_model"`
	// LexiconPath: 追加词典（form,pos,lemma CSV），同形条目覆盖内置词典。
	LexiconPath string `json:"lexicon_path"`
	// LowercaseLemmas: 非专有名词的词元统一小写，默认 true。
	LowercaseLemmas *bool `json:"lowercase_lemmas"`
}

// 西班牙语 Punkt 训练数据，取自 neurosnap/sentences（MIT，见 data/spanish.LICENSE.md）。
//
//go:embed data/spanish.json
var builtinPunkt []byte

// Annotator 为规则标注器；构造后只读，可复用于整个运行。
type Annotator struct {
	punkt     *sentences.DefaultSentenceTokenizer
	lex       lexicon
	lowercase bool
}

// New 加载 Punkt 模型与词典。
func New(opts *Options) (*Annotator, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	training, err := loadPunkt(o.PunktModel)
	if err != nil {
		return nil, err
	}
	storage, err := sentences.LoadTraining(training)
	if err != nil {
		return nil, errors.Wrapf(contract.ErrInvalidInput, "rules: punkt model: %v", err)
	}
	lex, err := loadLexicon(o.LexiconPath)
	if err != nil {
		return nil, err
	}
	lower := true
	if o.LowercaseLemmas != nil {
		lower = *o.LowercaseLemmas
	}
	return &Annotator{
		punkt:     sentences.NewSentenceTokenizer(storage),
		lex:       lex,
		lowercase: lower,
	}, nil
}

func loadPunkt(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return builtinPunkt, nil
	}
	b, err := os.ReadFile(path)
	return b, errors.Wrap(err, "rules: punkt model")
}

// Annotate 分句后逐句分词标注；句子保持文档顺序。
func (a *Annotator) Annotate(ctx context.Context, text string) ([]contract.Sentence, error) {
	var out []contract.Sentence
	for _, s := range a.punkt.Tokenize(text) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st := strings.TrimSpace(s.Text)
		words := tokenize(st)
		if len(words) == 0 {
			continue
		}
		sent := contract.Sentence{Text: st, Tokens: make([]contract.Token, 0, len(words))}
		for i, w := range words {
			pos, lemma := a.tag(w, i == 0)
			sent.Tokens = append(sent.Tokens, contract.Token{Text: w, POS: pos, Lemma: lemma})
		}
		out = append(out, sent)
	}
	return out, nil
}

var _ contract.Annotator = (*Annotator)(nil)
