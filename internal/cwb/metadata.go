// Package cwb 生成 CWB 语料索引工具可读的竖排（one-word-per-line）格式。
package cwb

import (
	"path"
	"strings"
	"time"

	"txt2cwb/pkg/contract"
)

const (
	datePrefixLen    = 10
	datePrefixLayout = "2006_01_02"
)

// ExtractMetadata 从输入名推导 <text> 属性。
// 输入名的前 10 个字符必须为 YYYY_MM_DD（合法日历日期）；目录部分被忽略。
func ExtractMetadata(name string) (contract.Metadata, error) {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if base == "." || base == "/" {
		return contract.Metadata{}, &contract.MalformedSourceNameError{Name: name, Reason: "empty name"}
	}
	if len(base) < datePrefixLen {
		return contract.Metadata{}, &contract.MalformedSourceNameError{Name: base, Reason: "shorter than YYYY_MM_DD prefix"}
	}
	prefix := base[:datePrefixLen]
	parts := strings.Split(prefix, "_")
	if len(parts) != 3 {
		return contract.Metadata{}, &contract.MalformedSourceNameError{Name: base, Reason: "prefix is not three underscore-separated components"}
	}
	widths := [3]int{4, 2, 2}
	for i, p := range parts {
		if len(p) != widths[i] || !allDigits(p) {
			return contract.Metadata{}, &contract.MalformedSourceNameError{Name: base, Reason: "prefix is not YYYY_MM_DD"}
		}
	}
	if _, err := time.Parse(datePrefixLayout, prefix); err != nil {
		return contract.Metadata{}, &contract.MalformedSourceNameError{Name: base, Reason: "prefix is not a valid date"}
	}
	id := strings.ReplaceAll(strings.TrimSuffix(base, path.Ext(base)), "-", "_")
	return contract.Metadata{
		ID:    id,
		Date:  prefix,
		Year:  parts[0],
		Month: parts[1],
		Day:   parts[2],
	}, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
