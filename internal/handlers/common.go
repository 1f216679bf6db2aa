package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	apierrors "github.com/devsync-app/devsync/internal/errors"
	"github.com/devsync-app/devsync/internal/logging"
	"github.com/devsync-app/devsync/internal/policy"
	"github.com/devsync-app/devsync/internal/services"
)

// parseIDParam parses a numeric path parameter. On failure it writes a 400
// and reports false.
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		apierrors.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// respondServiceError translates service-layer errors into API responses.
// Denials become the uniform 404; anything unexpected is logged and hidden
// behind a generic 500.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, policy.ErrDenied):
		apierrors.NotFoundOrDenied(c)

	case errors.Is(err, services.ErrInvalidCredentials):
		apierrors.Unauthorized(c, err.Error())

	case errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrAlreadyTeamMember),
		errors.Is(err, services.ErrAlreadyProjectMember),
		errors.Is(err, services.ErrLabelNameTaken),
		errors.Is(err, services.ErrProjectHasOpenTasks):
		apierrors.Conflict(c, err.Error())

	case errors.Is(err, services.ErrEmailRequired),
		errors.Is(err, services.ErrNameRequired),
		errors.Is(err, services.ErrPasswordTooShort),
		errors.Is(err, services.ErrTeamNameRequired),
		errors.Is(err, services.ErrProjectNameRequired),
		errors.Is(err, services.ErrLabelNameRequired),
		errors.Is(err, services.ErrTitleRequired),
		errors.Is(err, services.ErrTitleEmpty),
		errors.Is(err, services.ErrContentRequired),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidPriority),
		errors.Is(err, services.ErrInvalidAssignee),
		errors.Is(err, services.ErrLabelWrongProject),
		errors.Is(err, services.ErrCannotRemoveYourself),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrNotTeamMember),
		errors.Is(err, services.ErrMemberNotFound),
		errors.Is(err, services.ErrLabelNotFound):
		apierrors.BadRequest(c, err.Error())

	default:
		logging.Error().Err(err).Str("path", c.Request.URL.Path).Msg("unhandled service error")
		apierrors.InternalError(c)
	}
}
