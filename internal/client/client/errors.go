package client

import (
	"errors"

	"github.com/dmitrijs2005/gophblog/internal/common"
)

var (
	ErrUnavailable = errors.New("server unavailable")
	ErrNotLoggedIn = common.NewError(common.KindUnauthenticated, "not logged in")
)
