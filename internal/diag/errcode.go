package diag

import (
	"context"
	"net"
	"os"

	"github.com/cockroachdb/errors"

	"txt2cwb/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志汇总，与退出码解耦。
type Code string

const (
	CodeUnknown    Code = "unknown"
	CodeDecode     Code = "decode"
	CodeSourceName Code = "source_name"
	CodeAnnotation Code = "annotation"
	CodeInvariant  Code = "invariant"
	CodeCancel     Code = "cancel"
	CodeIO         Code = "io"
	CodeNetwork    Code = "network"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	if errors.Is(err, contract.ErrDecode) {
		return CodeDecode
	}
	if errors.Is(err, contract.ErrMalformedSourceName) {
		return CodeSourceName
	}
	// 上游 5xx/408 视为网络类，其余标注失败归 annotation
	var up contract.UpstreamError
	if errors.As(err, &up) {
		if s := up.UpstreamStatus(); s >= 500 || s == 408 {
			return CodeNetwork
		}
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return CodeNetwork
	}
	if errors.Is(err, contract.ErrAnnotation) {
		return CodeAnnotation
	}
	if errors.Is(err, contract.ErrInvalidInput) || errors.Is(err, contract.ErrPathInvalid) {
		return CodeInvariant
	}
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}
