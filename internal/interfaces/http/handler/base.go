package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/domain/shared"
	"github.com/beizaplus/commerce-sync/internal/interfaces/http/dto"
	"github.com/beizaplus/commerce-sync/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID set by the RequestID middleware
func getRequestID(c *gin.Context) string {
	return middleware.GetRequestID(c)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Conflict sends a 409 conflict response
func (h *BaseHandler) Conflict(c *gin.Context, message string) {
	h.Error(c, http.StatusConflict, dto.ErrCodeConflict, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// upstreamError is implemented by commerce platform API errors
type upstreamError interface {
	HTTPStatus() int
}

// HandleError maps service errors onto the response envelope.
// Retryable failures become 503 so callers know to try again.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var validationErrs validator.ValidationErrors
	var domainErr *shared.DomainError
	var upstream upstreamError

	switch {
	case errors.Is(err, commerce.ErrOrderNotFound),
		errors.Is(err, commerce.ErrMappingNotFound),
		errors.Is(err, commerce.ErrAssetNotFound),
		errors.Is(err, shared.ErrNotFound):
		h.NotFound(c, notFoundMessage(err))

	case errors.Is(err, commerce.ErrInvalidLocalType),
		errors.Is(err, commerce.ErrInvalidAssetType),
		errors.Is(err, commerce.ErrInvalidFileURL),
		errors.Is(err, commerce.ErrInvalidExpiry),
		errors.Is(err, commerce.ErrInvalidInventoryUpdate),
		errors.Is(err, commerce.ErrMissingDownloadToken):
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, err.Error())

	case errors.As(err, &validationErrs):
		middleware.HandleValidationError(c, err)

	case errors.Is(err, commerce.ErrMappingNotPushed),
		errors.Is(err, commerce.ErrInvalidOrderPayload),
		errors.Is(err, commerce.ErrInvalidProductPayload):
		h.Error(c, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState, err.Error())

	case commerce.IsRetryable(err):
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Temporarily unavailable, please retry")

	case errors.As(err, &upstream) && upstream.HTTPStatus() == http.StatusNotFound:
		h.NotFound(c, "Not found on the commerce platform")

	case errors.As(err, &upstream):
		h.Error(c, http.StatusBadGateway, dto.ErrCodeUpstream, err.Error())

	case errors.As(err, &domainErr):
		h.ErrorWithCode(c, dto.NormalizeErrorCode(domainErr.Code), domainErr.Message)

	default:
		h.InternalError(c, "An unexpected error occurred")
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, commerce.ErrOrderNotFound):
		return "Order not found, check your details"
	case errors.Is(err, commerce.ErrMappingNotFound):
		return "Product mapping not found"
	case errors.Is(err, commerce.ErrAssetNotFound):
		return "Digital asset not found"
	default:
		return "Resource not found"
	}
}
