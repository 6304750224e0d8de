package rules

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	"txt2cwb/pkg/contract"
)

//go:embed data/lexicon_es.csv
var builtinLexicon []byte

// entry 为词典条目：词性 + 词元。
type entry struct {
	POS   string
	Lemma string
}

// lexicon 以小写词形为键。
type lexicon map[string]entry

// loadLexicon 读取内置词典，再以 extraPath（可选）中的同形条目覆盖。
func loadLexicon(extraPath string) (lexicon, error) {
	lex := lexicon{}
	if err := lex.read(bytes.NewReader(builtinLexicon), "builtin"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(extraPath) == "" {
		return lex, nil
	}
	f, err := os.Open(extraPath)
	if err != nil {
		return nil, errors.Wrap(err, "rules: lexicon")
	}
	defer f.Close()
	if err := lex.read(f, extraPath); err != nil {
		return nil, err
	}
	return lex, nil
}

// read 解析 form,pos,lemma 三列 CSV；首行为表头时跳过。
func (l lexicon) read(r io.Reader, name string) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(contract.ErrInvalidInput, "rules: lexicon %s: %v", name, err)
		}
		if line == 1 && strings.EqualFold(rec[0], "form") {
			continue
		}
		form := strings.ToLower(strings.TrimSpace(rec[0]))
		if form == "" {
			continue
		}
		l[form] = entry{POS: strings.ToUpper(strings.TrimSpace(rec[1])), Lemma: strings.TrimSpace(rec[2])}
	}
}
