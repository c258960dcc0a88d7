package internal

import (
	"net/http"

	"github.com/eventworks/backstage/internal/ctxhelper"
	"github.com/go-kit/kit/endpoint"
	"golang.org/x/net/context"
)

// EnsureUserLoggedIn is a middleware that checks if there is a valid user session for the current call
func EnsureUserLoggedIn(next endpoint.Endpoint) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		user := ctxhelper.User(ctx)
		if user == nil {
			// Nobody logged in
			return nil, MakeError(
				http.StatusForbidden,
				ErrCodeNotLoggedIn,
				"This function needs a logged-in user",
			)
		}
		return next(ctx, request)
	}
}

// EnsureAdmin is a middleware that checks if the current call is made by an administrator.
// A failed role check is rendered as a plain "not allowed" - there is nothing to retry for the
// caller
func EnsureAdmin(next endpoint.Endpoint) endpoint.Endpoint {
	return EnsureUserLoggedIn(func(ctx context.Context, request interface{}) (response interface{}, err error) {
		user := ctxhelper.User(ctx)
		if !user.IsAdmin() {
			return nil, MakeError(
				http.StatusForbidden,
				ErrCodeNotAllowed,
				"This function needs administrative permissions",
			)
		}
		return next(ctx, request)
	})
}
