package rules

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// 词元切分：数字（含小数/千分位）、带内部连字符或撇号的词、单个符号。
var reToken = regexp.MustCompile(`\pN+(?:[.,]\pN+)*|[\pL\pM]+(?:[-'’][\pL\pM]+)*|[^\s\pL\pN]`)

func tokenize(s string) []string {
	return reToken.FindAllString(s, -1)
}

// suffixRule: 按后缀推断通用词性（UPOS），并给出词元还原方式。
type suffixRule struct {
	suffix string
	pos    string
	lemma  func(w string) string
}

func keep(w string) string { return w }

func replaceSuffix(from, to string) func(string) string {
	return func(w string) string { return strings.TrimSuffix(w, from) + to }
}

// 规则按顺序匹配，长后缀在前。
var suffixRules = []suffixRule{
	{"mente", "ADV", keep},
	{"ando", "VERB", replaceSuffix("ando", "ar")},
	{"iendo", "VERB", replaceSuffix("iendo", "er")},
	{"ciones", "NOUN", replaceSuffix("ciones", "ción")},
	{"siones", "NOUN", replaceSuffix("siones", "sión")},
	{"ción", "NOUN", keep},
	{"sión", "NOUN", keep},
	{"dades", "NOUN", replaceSuffix("dades", "dad")},
	{"dad", "NOUN", keep},
	{"osos", "ADJ", replaceSuffix("osos", "oso")},
	{"osas", "ADJ", replaceSuffix("osas", "oso")},
	{"osa", "ADJ", replaceSuffix("osa", "oso")},
	{"oso", "ADJ", keep},
	{"bles", "ADJ", replaceSuffix("bles", "ble")},
	{"ble", "ADJ", keep},
	{"ales", "ADJ", replaceSuffix("ales", "al")},
	{"al", "ADJ", keep},
	{"aron", "VERB", replaceSuffix("aron", "ar")},
	{"ieron", "VERB", replaceSuffix("ieron", "er")},
	{"ó", "VERB", replaceSuffix("ó", "ar")},
	{"ar", "VERB", keep},
	{"er", "VERB", keep},
	{"ir", "VERB", keep},
}

// 后缀规则仅作用于足够长的词，避免误伤短功能词。
const minSuffixWord = 4

// tag 为单个词元给出 (POS, lemma)。initial 表示句首位置。
func (a *Annotator) tag(w string, initial bool) (string, string) {
	r, _ := utf8.DecodeRuneInString(w)
	switch {
	case isNumber(w):
		return "NUM", w
	case !unicode.IsLetter(r) && !unicode.IsMark(r):
		if unicode.IsSymbol(r) {
			return "SYM", w
		}
		return "PUNCT", w
	}
	lower := strings.ToLower(w)
	if e, ok := a.lex[lower]; ok {
		return e.POS, a.caseLemma(e.POS, e.Lemma)
	}
	// 非句首的大写未知词视为专有名词
	if unicode.IsUpper(r) && !initial {
		return "PROPN", w
	}
	if utf8.RuneCountInString(lower) >= minSuffixWord {
		for _, rule := range suffixRules {
			if strings.HasSuffix(lower, rule.suffix) {
				return rule.pos, a.caseLemma(rule.pos, rule.lemma(lower))
			}
		}
	}
	return "NOUN", a.caseLemma("NOUN", singular(lower))
}

func (a *Annotator) caseLemma(pos, lemma string) string {
	if a.lowercase && pos != "PROPN" {
		return strings.ToLower(lemma)
	}
	return lemma
}

func isNumber(w string) bool {
	r, _ := utf8.DecodeRuneInString(w)
	return unicode.IsNumber(r)
}

// singular 粗略还原西语复数：-ces→-z，辅音+es→去 es，其余去 s。
func singular(w string) string {
	n := utf8.RuneCountInString(w)
	if n <= 3 || !strings.HasSuffix(w, "s") {
		return w
	}
	if strings.HasSuffix(w, "ces") {
		return strings.TrimSuffix(w, "ces") + "z"
	}
	if strings.HasSuffix(w, "es") {
		stem := strings.TrimSuffix(w, "es")
		last, _ := utf8.DecodeLastRuneInString(stem)
		if strings.ContainsRune("lnrdj", last) {
			return stem
		}
	}
	return strings.TrimSuffix(w, "s")
}
