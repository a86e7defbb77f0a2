package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// httpStatus 业务错误码对应的 HTTP 状态码，未列出的按 200 返回
var httpStatus = map[int]int{
	ServiceErr:           http.StatusInternalServerError,
	RequestInvalid:       http.StatusBadRequest,
	TokenInvalid:         http.StatusUnauthorized,
	PasswordErr:          http.StatusUnauthorized,
	UserNotExists:        http.StatusUnauthorized,
	UserExists:           http.StatusConflict,
	PipelineInvalid:      http.StatusBadRequest,
	PipelineNotExists:    http.StatusNotFound,
	PipelineScheduleFail: http.StatusServiceUnavailable,
	PipelinePaused:       http.StatusConflict,
	PipelineNotPaused:    http.StatusConflict,
	PipelineRunning:      http.StatusConflict,
	ForbiddenPipeline:    http.StatusForbidden,
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    SuccessCode,
		Message: errorMsg[SuccessCode],
		Data:    data,
	})
}

func Error(c *gin.Context, err error) {
	e := ConvertErr(err)
	status, ok := httpStatus[e.ErrCode]
	if !ok {
		status = http.StatusOK
	}
	c.JSON(status, Response{
		Code:    e.ErrCode,
		Message: e.ErrMsg,
		Data:    nil,
	})
}

// Abort writes the error and stops the handler chain.
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}
