package udpipe

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"txt2cwb/pkg/contract"
)

const (
	colID = iota
	colForm
	colLemma
	colUPOS
	colXPOS
	colFeats
	colHead
	colDeprel
	colDeps
	colMisc
	numCols
)

// parseCoNLLU 解析 CoNLL-U 文本为句子序列。
// 多词词元（"1-2"）输出为一个表层词元，其组成词的 POS 与词元以 "+" 连接；空节点（"1.1"）跳过。
func parseCoNLLU(s string) ([]contract.Sentence, error) {
	var (
		out      []contract.Sentence
		cur      contract.Sentence
		text     string
		surfaces []string // 无 "# text" 时用于还原句子文本
		// 多词词元状态
		mwt      *contract.Token
		mwtEnd   int
		mwtPOS   []string
		mwtLemma []string
	)
	flushMWT := func() {
		if mwt == nil {
			return
		}
		mwt.POS = strings.Join(mwtPOS, "+")
		mwt.Lemma = strings.Join(mwtLemma, "+")
		cur.Tokens = append(cur.Tokens, *mwt)
		mwt, mwtEnd, mwtPOS, mwtLemma = nil, 0, nil, nil
	}
	endSentence := func() {
		flushMWT()
		if len(cur.Tokens) > 0 {
			cur.Text = text
			if cur.Text == "" {
				cur.Text = strings.TrimSpace(strings.Join(surfaces, ""))
			}
			out = append(out, cur)
		}
		cur, text, surfaces = contract.Sentence{}, "", nil
	}

	sc := bufio.NewScanner(strings.NewReader(s))
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case strings.TrimSpace(line) == "":
			endSentence()
			continue
		case strings.HasPrefix(line, "#"):
			if v, ok := strings.CutPrefix(line, "# text = "); ok {
				text = strings.TrimSpace(v)
			}
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) != numCols {
			return nil, errors.Wrapf(contract.ErrInvalidInput, "conllu: line %d has %d columns", n, len(cols))
		}
		id := cols[colID]
		if strings.Contains(id, ".") {
			continue
		}
		if from, to, ok := strings.Cut(id, "-"); ok {
			flushMWT()
			end, err := strconv.Atoi(to)
			if err != nil {
				return nil, errors.Wrapf(contract.ErrInvalidInput, "conllu: line %d bad range %q", n, id)
			}
			if _, err := strconv.Atoi(from); err != nil {
				return nil, errors.Wrapf(contract.ErrInvalidInput, "conllu: line %d bad range %q", n, id)
			}
			mwt = &contract.Token{Text: cols[colForm]}
			mwtEnd = end
			surfaces = append(surfaces, surface(cols))
			continue
		}
		idx, err := strconv.Atoi(id)
		if err != nil {
			return nil, errors.Wrapf(contract.ErrInvalidInput, "conllu: line %d bad id %q", n, id)
		}
		if mwt != nil && idx <= mwtEnd {
			mwtPOS = append(mwtPOS, cols[colUPOS])
			mwtLemma = append(mwtLemma, cols[colLemma])
			if idx == mwtEnd {
				flushMWT()
			}
			continue
		}
		flushMWT()
		cur.Tokens = append(cur.Tokens, contract.Token{Text: cols[colForm], POS: cols[colUPOS], Lemma: cols[colLemma]})
		surfaces = append(surfaces, surface(cols))
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "conllu: scan")
	}
	endSentence()
	return out, nil
}

// surface 返回词形及其后的空白（MISC 含 SpaceAfter=No 时不加空格）。
func surface(cols []string) string {
	for _, m := range strings.Split(cols[colMisc], "|") {
		if m == "SpaceAfter=No" {
			return cols[colForm]
		}
	}
	return cols[colForm] + " "
}
