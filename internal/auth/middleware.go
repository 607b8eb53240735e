package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/studyforge/notesd/internal/activity"
	"github.com/studyforge/notesd/internal/continuation"
	"github.com/studyforge/notesd/internal/logging"
	"go.uber.org/zap"
)

// principalKey is the echo context key for the authenticated Principal.
const principalKey = "notesd.principal"

// ErrorBody is the 401 response. It carries the activity log like every other
// failure response.
type ErrorBody struct {
	Error       string           `json:"error"`
	ActivityLog []activity.Entry `json:"activityLog"`
}

// BearerAuth authenticates every request with verifier. Failures answer 401
// with an activity log ending in auth_error; the handler is not called.
// On success the Principal is available through PrincipalFrom and the owner
// id is added to the request context for logging.
func BearerAuth(verifier Verifier, logger *zap.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()

			principal, err := verifier.Verify(ctx, bearerToken(req.Header.Get(echo.HeaderAuthorization)))
			if err != nil {
				logger.Info("authentication failed",
					append(logging.ContextFields(ctx), zap.String("path", req.URL.Path), zap.Error(err))...)

				log := activity.New()
				log.Recordf(activity.ActionRequestReceived, activity.StatusInfo, "%s %s", req.Method, req.URL.Path)
				log.Record(activity.ActionAuthError, activity.StatusError, authDetail(err))
				return c.JSON(http.StatusUnauthorized, ErrorBody{
					Error:       continuation.NewError(continuation.KindAuth, err).Message,
					ActivityLog: log.Entries(),
				})
			}

			c.Set(principalKey, principal)
			c.SetRequest(req.WithContext(logging.WithOwnerID(ctx, principal.OwnerID)))
			return next(c)
		}
	}
}

// PrincipalFrom returns the Principal set by BearerAuth.
func PrincipalFrom(c echo.Context) (*Principal, bool) {
	p, ok := c.Get(principalKey).(*Principal)
	return p, ok && p != nil
}

// bearerToken extracts the credential from an Authorization header value.
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func authDetail(err error) string {
	switch err {
	case ErrMissingCredential:
		return "missing bearer credential"
	case ErrInvalidCredential:
		return "credential rejected"
	default:
		return "credential could not be verified"
	}
}
