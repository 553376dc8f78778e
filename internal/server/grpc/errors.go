package grpc

import (
	"github.com/dmitrijs2005/gophblog/internal/common"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var kindCodes = map[common.Kind]codes.Code{
	common.KindConflict:           codes.AlreadyExists,
	common.KindInvalidCredentials: codes.Unauthenticated,
	common.KindUnauthenticated:    codes.Unauthenticated,
	common.KindForbidden:          codes.PermissionDenied,
	common.KindNotFound:           codes.NotFound,
	common.KindValidation:         codes.InvalidArgument,
	common.KindInternal:           codes.Internal,
}

// toStatus converts a core error into a status carrying the safe message and
// the exact kind as an ErrorInfo detail.
func toStatus(err error) error {
	if err == nil {
		return nil
	}

	kind := common.KindOf(err)
	code, ok := kindCodes[kind]
	if !ok {
		code = codes.Internal
	}

	st := status.New(code, common.SafeMessage(err))
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: kind.String(),
		Domain: common.ErrorDomain,
	})
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}
