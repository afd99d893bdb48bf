// Package errCode 定义估计过程对外暴露的错误码.
//
// 错误码同时写入 ols.Model.Errcode, 调用方据此决定如何提示用户:
// SINGULAR 需要提示"回归量近似共线", 其余失败提示为内部错误.
package errCode

import "fmt"

type Code int

const (
	OK            Code = iota // 无错误
	INVALID_VALUE             // 参数非法
	EMPTY_VALUE               // 输入为空
	ALLOC_FAILED              // 工作矩阵分配失败
	SINGULAR                  // 设计矩阵奇异或病态
	NUMERICAL                 // LAPACK 例程内部失败
	MISSING_DATA              // 样本内缺失值导致无法变换
	DF_ERROR                  // 观测数少于参数个数
)

var codeNames = map[Code]string{
	OK:            "OK",
	INVALID_VALUE: "INVALID_VALUE",
	EMPTY_VALUE:   "EMPTY_VALUE",
	ALLOC_FAILED:  "ALLOC_FAILED",
	SINGULAR:      "SINGULAR",
	NUMERICAL:     "NUMERICAL",
	MISSING_DATA:  "MISSING_DATA",
	DF_ERROR:      "DF_ERROR",
}

var codeMessages = map[Code]string{
	OK:            "no error",
	INVALID_VALUE: "invalid argument",
	EMPTY_VALUE:   "empty input",
	ALLOC_FAILED:  "out of memory while allocating working matrices",
	SINGULAR:      "matrix is singular: regressors are exactly or nearly collinear",
	NUMERICAL:     "internal numerical failure in linear algebra routine",
	MISSING_DATA:  "missing observations within the estimation sample",
	DF_ERROR:      "insufficient degrees of freedom for regression",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Message 返回面向用户的错误描述, 每个错误码对应不同文案
func Message(c Code) string {
	if s, ok := codeMessages[c]; ok {
		return s
	}
	return "unknown error"
}
