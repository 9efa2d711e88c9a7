package static

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWindow 表示 ReadWindow 的边界为负、倒置或超出文件大小。
	ErrInvalidWindow = errors.New("invalid read window")
	// ErrHeadersWritten 表示同一响应重复调用 WriteHead。
	ErrHeadersWritten = errors.New("response headers already written")
)

// IOError 表示存在性检查、stat 或打开文件失败，此时尚未写出任何响应头。
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// StreamError 表示 200 响应头已提交后传输中断，状态码无法再修改。
type StreamError struct {
	Path    string
	Written int64
	Err     error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream %s after %d bytes: %v", e.Path, e.Written, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}
