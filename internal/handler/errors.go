package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/civica/membership-backend/internal/response"
	"github.com/civica/membership-backend/internal/service"
)

// failFromService maps service sentinels and pg constraint errors onto the
// response envelope. Anything unrecognised is logged and reported as a 500.
func failFromService(c *gin.Context, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrMemberNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrMemberNotFound)
	case errors.Is(err, service.ErrMandateNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrMandateNotFound)
	case errors.Is(err, service.ErrInvalidDateRange):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidDateRange, map[string]string{
			"end_date": response.GetMessage(response.ErrInvalidDateRange),
		})
	case errors.Is(err, service.ErrRoleNotAssignable):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrRoleNotAssignable, map[string]string{
			"role": response.GetMessage(response.ErrRoleNotAssignable),
		})
	case errors.Is(err, service.ErrEmailTaken):
		response.FailWithFields(c, http.StatusConflict, response.ErrConflict, map[string]string{
			"email": "email is already registered",
		})
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && (pgErr.Code == "23505" || pgErr.Code == "23503") {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// paramID parses a positive integer path parameter.
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}
