package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/cors"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/monitor"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/auth"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/httperror"
	"github.com/sebenzapay/escrow-platform-backend/internal/utils"
)

// RecoverHandler is a middleware that recovers from panics and logs the error.
func RecoverHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("panic: %v", r)
			}

			// No need to recover when the client has disconnected:
			if errors.Is(err, http.ErrAbortHandler) {
				panic(err)
			}

			ctx := req.Context()
			log.Ctx(ctx).WithStack(err).Error(err)
			httperror.InternalError(ctx, "", err, nil).Render(rw)
		}()

		next.ServeHTTP(rw, req)
	})
}

// MetricsRequestHandler is a middleware that monitors http requests, and export the data
// to the metrics server
func MetricsRequestHandler(monitorService monitor.MonitorServiceInterface) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			mw := middleware.NewWrapResponseWriter(rw, req.ProtoMajor)
			then := time.Now()
			next.ServeHTTP(mw, req)

			duration := time.Since(then)

			labels := monitor.HttpRequestLabels{
				Status: fmt.Sprintf("%d", mw.Status()),
				Route:  utils.GetRoutePattern(req),
				Method: req.Method,
			}

			err := monitorService.MonitorHttpRequestDuration(duration, labels)
			if err != nil {
				log.Ctx(req.Context()).Errorf("Error trying to monitor request time: %s", err)
			}
		})
	}
}

// AuthenticateMiddleware validates the Authorization header and stores the
// authenticated user in the request context.
func AuthenticateMiddleware(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			authHeader := req.Header.Get("Authorization")
			if authHeader == "" {
				httperror.Unauthorized("", nil, nil).Render(rw)
				return
			}

			authHeaderParts := strings.Split(authHeader, " ")
			if len(authHeaderParts) != 2 || !strings.EqualFold(authHeaderParts[0], "Bearer") {
				httperror.Unauthorized("", nil, nil).Render(rw)
				return
			}

			ctx := req.Context()
			token := authHeaderParts[1]
			user, err := jwtManager.GetUserFromToken(token)
			if err != nil {
				if !errors.Is(err, auth.ErrInvalidToken) {
					err = fmt.Errorf("error validating auth token: %w", err)
					log.Ctx(ctx).Error(err)
				}
				httperror.Unauthorized("", nil, nil).WithErrorCode(httperror.ErrorCodeInvalidToken).Render(rw)
				return
			}

			ctx = auth.SetUserInContext(ctx, user)
			ctx = auth.SetTokenInContext(ctx, token)

			// Add the user ID to the request context logger
			ctx = log.Set(ctx, log.Ctx(ctx).WithField("user_id", user.ID))

			next.ServeHTTP(rw, req.WithContext(ctx))
		})
	}
}

// AnyRoleMiddleware validates if the user has at least one of the required roles to request
// the current endpoint.
func AnyRoleMiddleware(requiredRoles ...data.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			ctx := req.Context()

			user, err := auth.UserFromContext(ctx)
			if err != nil {
				httperror.Unauthorized("", nil, nil).Render(rw)
				return
			}

			// Accessible by all authenticated users
			if len(requiredRoles) == 0 {
				next.ServeHTTP(rw, req)
				return
			}

			if !user.HasAnyRole(data.FromUserRoleArrayToStringArray(requiredRoles)...) {
				httperror.Forbidden("", nil, nil).Render(rw)
				return
			}

			next.ServeHTTP(rw, req)
		})
	}
}

func CorsMiddleware(corsAllowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		cors := cors.New(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedHeaders: []string{"*"},
			AllowedMethods: []string{"GET", "PUT", "POST", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		})

		return cors.Handler(next)
	}
}

// RateLimitMiddleware throttles unauthenticated callers by IP. Webhook
// deliveries retry on 429, so a burst above the limit delays processing
// rather than losing events.
func RateLimitMiddleware(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		windowLength,
		httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
		httprate.WithLimitHandler(func(rw http.ResponseWriter, req *http.Request) {
			httperror.NewHTTPError(http.StatusTooManyRequests, "Rate limit exceeded.", nil, nil).Render(rw)
		}),
	)
}
