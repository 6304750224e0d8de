package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON 使用 snake_case；未知字段在解析期失败。
type Config struct {
	// Input: 输入文件路径；"-" 表示 STDIN（此时 SourceName 必填）。
	Input string `json:"input"`
	// SourceName: 覆盖元信息推导所用的名称（默认取输入基名）。
	SourceName string  `json:"source_name"`
	Logging    Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`

	// 标注调用限额（作用于当前标注器的分组）。
	Limits Limits `json:"limits"`
}

// Logging: 日志等级与目录；Dir 为 "-" 时写 stderr。
type Logging struct {
	Level string `json:"level"`
	Dir   string `json:"dir"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader    string `json:"reader"`
	Segmenter string `json:"segmenter"`
	Annotator string `json:"annotator"`
	Writer    string `json:"writer"`
}

// Options: 各组件的原样 JSON Options。
// Annotator/Writer 按实现名分键，切换实现时无需改写选项。
type Options struct {
	Reader    json.RawMessage            `json:"reader"`
	Segmenter json.RawMessage            `json:"segmenter"`
	Annotator map[string]json.RawMessage `json:"annotator"`
	Writer    map[string]json.RawMessage `json:"writer"`
}

// Limits: 限流配置（仅承载；执行位于 rate.Gate）。
type Limits struct {
	RPM            int `json:"rpm"`
	Burst          int `json:"burst"`
	MaxBytesPerReq int `json:"max_bytes_per_req"`
}
