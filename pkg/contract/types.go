package contract

import "strings"

// FileID: 逻辑输入标识（通常为路径，需规范化，跨平台一致）。
type FileID string

// Source: Reader 的产出，已解码的单个输入文件。
// 约束：
// - Text 为解码并 NFC 归一后的全文（不做业务性清洗）；
// - Encoding 记录实际生效的编码名（例如 "utf-8"、"windows-1252"）。
type Source struct {
	ID       FileID
	Name     string // 基名（用于元信息推导）
	Encoding string
	Text     string
}

// Document: 一篇文章（标题 + 正文）。值类型，创建后不再修改。
// Body 为标题之后所有行以单个空格拼接的结果；仅有标题时为空串。
type Document struct {
	Headline string
	Body     string
}

// Metadata: 由输入名推导的结构化属性。
// 不变量：任何字段均不含 '-'（CWB 属性值中 '-' 为保留分隔符）。
type Metadata struct {
	ID    string
	Date  string
	Year  string
	Month string
	Day   string
}

// Attrs 按固定顺序渲染 key="value" 属性串。
func (m Metadata) Attrs() string {
	var b strings.Builder
	b.WriteString(`id="` + m.ID + `"`)
	b.WriteString(` date="` + m.Date + `"`)
	b.WriteString(` year="` + m.Year + `"`)
	b.WriteString(` month="` + m.Month + `"`)
	b.WriteString(` day="` + m.Day + `"`)
	return b.String()
}

// Token: 模型产出的单个词元，原样输出。
type Token struct {
	Text  string
	POS   string
	Lemma string
}

// Sentence: 模型切分出的句子及其词元（保持模型顺序）。
type Sentence struct {
	Text   string
	Tokens []Token
}

// SplitLines 将解码后的全文拆分为行：CRLF、LF 与单独的 CR 均为换行，末尾换行不产生空的“幽灵行”。
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}
