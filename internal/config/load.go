package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"txt2cwb/pkg/contract"
)

// EnvPrefix 为环境变量前缀。
const EnvPrefix = "TXT2CWB_"

// Defaults 返回带有安全默认值的 Config 雏形。
// 注意：Input 不设默认（必须由配置/ENV/CLI 提供）。
func Defaults() Config {
	return Config{
		Logging: Logging{Level: "info"},
		Components: Components{
			Reader:    "fs",
			Segmenter: "blankline",
			Annotator: "rules",
			Writer:    "stdout",
		},
	}
}

// LoadFile 按扩展名解析配置文件：.yaml/.yml 经 YAML 转为 JSON 后严格解析，其余按 JSON。
func LoadFile(path string) (Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "config: read")
		}
		raw, err := yamlToJSON(b)
		if err != nil {
			return Config{}, errors.Wrapf(err, "config: %s", path)
		}
		return LoadJSON("", raw)
	default:
		return LoadJSON(path, nil)
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, errors.Wrap(err, "config: open")
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.Wrap(contract.ErrInvalidInput, "config: no source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, errors.Mark(errors.Wrap(err, "config: decode"), contract.ErrInvalidInput)
	}
	return cfg, nil
}

// yamlToJSON 将 YAML 文档转为等价 JSON，以复用严格的 JSON 解析。
func yamlToJSON(b []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(b, &v); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "yaml"), contract.ErrInvalidInput)
	}
	v, err := jsonCompatible(v)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

// jsonCompatible 将 YAML 的 map[any]any 等结构转为 JSON 可编码形态。
func jsonCompatible(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			c, err := jsonCompatible(e)
			if err != nil {
				return nil, err
			}
			t[k] = c
		}
		return t, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, errors.Wrapf(contract.ErrInvalidInput, "yaml: non-string key %v", k)
			}
			c, err := jsonCompatible(e)
			if err != nil {
				return nil, err
			}
			out[ks] = c
		}
		return out, nil
	case []any:
		for i, e := range t {
			c, err := jsonCompatible(e)
			if err != nil {
				return nil, err
			}
			t[i] = c
		}
		return t, nil
	default:
		return v, nil
	}
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if s := strings.TrimSpace(over.Input); s != "" {
		out.Input = s
	}
	if s := strings.TrimSpace(over.SourceName); s != "" {
		out.SourceName = s
	}
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}
	if s := strings.TrimSpace(over.Logging.Dir); s != "" {
		out.Logging.Dir = s
	}

	// 组件名（空不覆盖）
	if over.Components.Reader != "" {
		out.Components.Reader = over.Components.Reader
	}
	if over.Components.Segmenter != "" {
		out.Components.Segmenter = over.Components.Segmenter
	}
	if over.Components.Annotator != "" {
		out.Components.Annotator = over.Components.Annotator
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}

	// Options（完整替换对应键）
	if len(over.Options.Reader) > 0 {
		out.Options.Reader = cloneRaw(over.Options.Reader)
	}
	if len(over.Options.Segmenter) > 0 {
		out.Options.Segmenter = cloneRaw(over.Options.Segmenter)
	}
	out.Options.Annotator = mergeRawMap(out.Options.Annotator, over.Options.Annotator)
	out.Options.Writer = mergeRawMap(out.Options.Writer, over.Options.Writer)

	// Limits（非零覆盖）
	if over.Limits.RPM != 0 {
		out.Limits.RPM = over.Limits.RPM
	}
	if over.Limits.Burst != 0 {
		out.Limits.Burst = over.Limits.Burst
	}
	if over.Limits.MaxBytesPerReq != 0 {
		out.Limits.MaxBytesPerReq = over.Limits.MaxBytesPerReq
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 支持：INPUT, SOURCE_NAME, LOG_LEVEL, LOG_DIR, COMPONENTS_*, LIMITS_*,
// 以及 OPTIONS__READER / OPTIONS__SEGMENTER / OPTIONS__ANNOTATOR__<name> / OPTIONS__WRITER__<name>（原样 JSON）。
// 未知键忽略；数值或 JSON 非法时返回错误。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := kv[len(EnvPrefix):eq]
		val := strings.TrimSpace(kv[eq+1:])
		if val == "" {
			// 空值视为未设置，避免清空配置文件中的值
			continue
		}
		switch key {
		case "INPUT":
			over.Input = val
		case "SOURCE_NAME":
			over.SourceName = val
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "LOG_DIR":
			over.Logging.Dir = val
		case "COMPONENTS_READER":
			over.Components.Reader = val
		case "COMPONENTS_SEGMENTER":
			over.Components.Segmenter = val
		case "COMPONENTS_ANNOTATOR":
			over.Components.Annotator = val
		case "COMPONENTS_WRITER":
			over.Components.Writer = val
		case "LIMITS_RPM", "LIMITS_BURST", "LIMITS_MAX_BYTES_PER_REQ":
			n, err := atoi(val)
			if err != nil {
				return Config{}, errors.Wrapf(err, "env %s%s", EnvPrefix, key)
			}
			switch key {
			case "LIMITS_RPM":
				over.Limits.RPM = n
			case "LIMITS_BURST":
				over.Limits.Burst = n
			default:
				over.Limits.MaxBytesPerReq = n
			}
		case "OPTIONS__READER", "OPTIONS__SEGMENTER":
			raw, err := rawJSON(key, val)
			if err != nil {
				return Config{}, err
			}
			if key == "OPTIONS__READER" {
				over.Options.Reader = raw
			} else {
				over.Options.Segmenter = raw
			}
		default:
			// OPTIONS__ANNOTATOR__<name> / OPTIONS__WRITER__<name>
			parts := strings.Split(key, "__")
			if len(parts) != 3 || parts[0] != "OPTIONS" || parts[2] == "" {
				continue
			}
			name := strings.ToLower(parts[2])
			raw, err := rawJSON(key, val)
			if err != nil {
				return Config{}, err
			}
			switch parts[1] {
			case "ANNOTATOR":
				if over.Options.Annotator == nil {
					over.Options.Annotator = map[string]json.RawMessage{}
				}
				over.Options.Annotator[name] = raw
			case "WRITER":
				if over.Options.Writer == nil {
					over.Options.Writer = map[string]json.RawMessage{}
				}
				over.Options.Writer[name] = raw
			}
		}
	}
	return over, nil
}

func rawJSON(key, val string) (json.RawMessage, error) {
	if !json.Valid([]byte(val)) {
		return nil, errors.Wrapf(contract.ErrInvalidInput, "env %s%s: invalid JSON", EnvPrefix, key)
	}
	return json.RawMessage(val), nil
}

func mergeRawMap(base, over map[string]json.RawMessage) map[string]json.RawMessage {
	if len(over) == 0 {
		return base
	}
	out := make(map[string]json.RawMessage, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = cloneRaw(v)
	}
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func atoi(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Mark(err, contract.ErrInvalidInput)
	}
	return n, nil
}
