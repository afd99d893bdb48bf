// Package errorx 携带错误码的错误类型.
package errorx

import (
	"errors"
	"strings"

	"regcore/infra/errorx/errCode"
)

type Error struct {
	Code   errCode.Code
	Msg    string
	Detail string
	cause  error
}

// New 构造一个带错误码的错误, detail 可选
func New(code errCode.Code, msg string, detail ...string) *Error {
	e := &Error{Code: code, Msg: msg}
	if len(detail) > 0 {
		e.Detail = strings.Join(detail, "; ")
	}
	return e
}

// Wrap 保留底层错误以便 errors.Is / errors.As 追溯
func Wrap(code errCode.Code, err error, msg string) *Error {
	return &Error{Code: code, Msg: msg, cause: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code.String())
	b.WriteString(": ")
	if e.Msg != "" {
		b.WriteString(e.Msg)
	} else {
		b.WriteString(errCode.Message(e.Code))
	}
	if e.Detail != "" {
		b.WriteString(" (")
		b.WriteString(e.Detail)
		b.WriteString(")")
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

// Is 按错误码比较, errors.Is(err, errorx.New(errCode.SINGULAR, "")) 即可判断类别
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf 提取错误码; nil 返回 OK, 非 *Error 返回 NUMERICAL
func CodeOf(err error) errCode.Code {
	if err == nil {
		return errCode.OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return errCode.NUMERICAL
}
