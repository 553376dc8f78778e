package httpserver

import (
	"net/http"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/gin-gonic/gin"
)

var (
	errRouteNotFound = common.NewError(common.KindNotFound, "route not found")
	errInvalidJSON   = common.NewError(common.KindValidation, "invalid JSON body")
)

var kindStatus = map[common.Kind]int{
	common.KindConflict:           http.StatusConflict,
	common.KindInvalidCredentials: http.StatusUnauthorized,
	common.KindUnauthenticated:    http.StatusUnauthorized,
	common.KindForbidden:          http.StatusForbidden,
	common.KindNotFound:           http.StatusNotFound,
	common.KindValidation:         http.StatusBadRequest,
	common.KindInternal:           http.StatusInternalServerError,
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError renders err as {"error":{"code","message"}}. Internal causes
// never reach the body.
func writeError(c *gin.Context, err error) {
	kind := common.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, errorBody{Error: errorDetail{Code: kind.String(), Message: common.SafeMessage(err)}})
}
