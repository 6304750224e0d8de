package registry

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/cockroachdb/errors"

	"txt2cwb/pkg/contract"
	amock "txt2cwb/plugins/annotator/mock"
	arules "txt2cwb/plugins/annotator/rules"
	audp "txt2cwb/plugins/annotator/udpipe"
	rfs "txt2cwb/plugins/reader/filesystem"
	sblank "txt2cwb/plugins/segmenter/blankline"
	wfs "txt2cwb/plugins/writer/filesystem"
	wstd "txt2cwb/plugins/writer/stdout"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
// 解码失败标记为 ErrInvalidInput。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Mark(errors.Wrap(err, "options"), contract.ErrInvalidInput)
	}
	return nil
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewSegmenter 工厂签名：接收原样 JSON Options。
type NewSegmenter func(raw json.RawMessage) (contract.Segmenter, error)

// NewAnnotator 工厂签名：接收原样 JSON Options。
type NewAnnotator func(raw json.RawMessage) (contract.Annotator, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN Reader（编码回退）
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts)
	},
}

// Segmenter 工厂注册表。
var Segmenter = map[string]NewSegmenter{
	// blankline: 空行分隔的文章分段
	"blankline": func(raw json.RawMessage) (contract.Segmenter, error) {
		var opts sblank.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return sblank.New(&opts), nil
	},
}

// Annotator 工厂注册表。
var Annotator = map[string]NewAnnotator{
	// rules: 内置西班牙语规则标注器（离线）
	"rules": func(raw json.RawMessage) (contract.Annotator, error) {
		var opts arules.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return arules.New(&opts)
	},
	// udpipe: UDPipe REST 服务
	"udpipe": func(raw json.RawMessage) (contract.Annotator, error) {
		var opts audp.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return audp.New(&opts)
	},
	// mock: 确定性调试标注器
	"mock": func(raw json.RawMessage) (contract.Annotator, error) {
		var opts amock.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return amock.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// stdout: 标准输出
	"stdout": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wstd.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wstd.New(&opts), nil
	},
	// fs: 文件系统 Writer（覆盖写/原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}

// Names 返回注册表中已排序的名称（用于帮助文本与错误提示）。
func Names[F any](m map[string]F) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
