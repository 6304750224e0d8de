package contract

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// 最小错误分类（用于上层策略判定与日志归类）。
var (
	// ErrDecode: 输入字节在主编码与所有回退编码下均无法解码。
	ErrDecode = errors.New("decode failed")
	// ErrMalformedSourceName: 输入名不符合 YYYY_MM_DD 前缀约定。
	ErrMalformedSourceName = errors.New("malformed source name")
	// ErrAnnotation: 外部模型对某段文本标注失败。
	ErrAnnotation = errors.New("annotation failed")
	// ErrInvalidInput: 参数或输入不满足契约。
	ErrInvalidInput = errors.New("invalid input")
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
)

// DecodeError 记录无法解码的文件与尝试过的编码。
type DecodeError struct {
	Path  string
	Tried []string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("could not decode %s (tried %s)", e.Path, strings.Join(e.Tried, ", "))
}

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// MalformedSourceNameError: 元信息推导无法进行。
type MalformedSourceNameError struct {
	Name   string
	Reason string
}

func (e *MalformedSourceNameError) Error() string {
	return fmt.Sprintf("malformed source name %q: %s", e.Name, e.Reason)
}

func (e *MalformedSourceNameError) Is(target error) bool { return target == ErrMalformedSourceName }

// AnnotationError 包装模型返回的错误；整次运行随之失败。
type AnnotationError struct {
	Annotator string
	Err       error
}

func (e *AnnotationError) Error() string {
	return fmt.Sprintf("annotator %s: %v", e.Annotator, e.Err)
}

func (e *AnnotationError) Unwrap() error { return e.Err }

func (e *AnnotationError) Is(target error) bool { return target == ErrAnnotation }
