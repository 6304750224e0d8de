package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 使用离线 rules 标注器，不限流；
// - 输出到标准输出；fs Writer 选项给出 ./out 目录；
// - 选项包含所有键（值为安全中性默认值），便于用户按需修改。
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := Config{
		Input:      "",
		Logging:    Logging{Level: "info", Dir: "logs"},
		Components: d.Components,
		Limits:     Limits{RPM: 0, Burst: 1, MaxBytesPerReq: 0},
	}
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "encodings": ["utf-8", "windows-1252"],
  "max_bytes": 0
}`)
	cfg.Options.Segmenter = json.RawMessage(`{
  "max_document_bytes": 0
}`)
	cfg.Options.Annotator = map[string]json.RawMessage{
		"rules": json.RawMessage(`{
  "punkt_model": "",
  "lexicon_path": "",
  "lowercase_lemmas": true
}`),
		"udpipe": json.RawMessage(`{
  "base_url": "https://lindat.mff.cuni.cz/services/udpipe/api",
  "model": "spanish",
  "timeout_seconds": 60,
  "extra_headers": {}
}`),
		"mock": json.RawMessage(`{
  "pos": "X",
  "fail_on": "",
  "fail_after": 0
}`),
	}
	cfg.Options.Writer = map[string]json.RawMessage{
		"stdout": json.RawMessage(`{
  "buf_size": 65536
}`),
		"fs": json.RawMessage(`{
  "output_dir": "out",
  "ext": ".vrt",
  "atomic": true,
  "flat": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`),
	}
	return cfg
}

// EnvTemplate 为 --init-config 生成的 .env 模板。
const EnvTemplate = `# txt2cwb 环境变量（优先级高于配置文件，低于命令行参数）
# TXT2CWB_INPUT=
# TXT2CWB_SOURCE_NAME=
# TXT2CWB_LOG_LEVEL=info
# TXT2CWB_LOG_DIR=logs
# TXT2CWB_COMPONENTS_ANNOTATOR=rules
# TXT2CWB_COMPONENTS_WRITER=stdout
# TXT2CWB_LIMITS_RPM=0
# TXT2CWB_LIMITS_BURST=1
# TXT2CWB_LIMITS_MAX_BYTES_PER_REQ=0
# TXT2CWB_OPTIONS__ANNOTATOR__UDPIPE={"base_url":"https://lindat.mff.cuni.cz/services/udpipe/api","model":"spanish"}
# TXT2CWB_OPTIONS__WRITER__FS={"output_dir":"out"}
`
