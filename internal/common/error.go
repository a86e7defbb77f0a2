package common

import (
	"errors"
	"fmt"
)

type ErrNo struct {
	ErrCode int    `json:"err_code"`
	ErrMsg  string `json:"err_msg"`
}

const (
	SuccessCode = 0
	ServiceErr  = iota + 10000
	RequestInvalid
	TokenInvalid
	PasswordErr
	UserNotExists
	UserExists
	PipelineInvalid
	PipelineNotExists
	PipelineScheduleFail
	PipelinePaused
	PipelineNotPaused
	PipelineRunning
	ForbiddenPipeline
	GetHistoryFail
	GetPlansFail
)

var errorMsg = map[int]string{
	SuccessCode:          "success",
	ServiceErr:           "service error",
	RequestInvalid:       "request invalid",
	TokenInvalid:         "token invalid",
	PasswordErr:          "password error",
	UserNotExists:        "user not exists",
	UserExists:           "user already exists",
	PipelineInvalid:      "pipeline invalid",
	PipelineNotExists:    "pipeline not exists",
	PipelineScheduleFail: "pipeline schedule fail",
	PipelinePaused:       "pipeline is paused",
	PipelineNotPaused:    "pipeline is not paused",
	PipelineRunning:      "pipeline run already in progress",
	ForbiddenPipeline:    "pipeline belongs to another user",
	GetHistoryFail:       "get history fail",
	GetPlansFail:         "get strategy plans fail",
}

func (e ErrNo) Error() string {
	return fmt.Sprintf("err_code=%d, err_msg=%s", e.ErrCode, e.ErrMsg)
}

func NewErrNo(errCode int) error {
	return ErrNo{
		ErrCode: errCode,
		ErrMsg:  errorMsg[errCode],
	}
}

// WithMsg keeps the code and replaces the message, e.g. with validation details.
func WithMsg(errCode int, msg string) error {
	return ErrNo{
		ErrCode: errCode,
		ErrMsg:  fmt.Sprintf("%s: %s", errorMsg[errCode], msg),
	}
}

func ConvertErr(err error) ErrNo {
	e := ErrNo{}
	if errors.As(err, &e) {
		return e
	}
	e = ErrNo{
		ErrCode: ServiceErr,
		ErrMsg:  err.Error(),
	}
	return e
}
