package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/EberSantana/flowedu-sub004/internal/apperr"
)

// Response is the envelope of every API reply.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func fail(c *gin.Context, code int, message string, data any) {
	c.AbortWithStatusJSON(code, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

func badRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, message, nil)
}

// bindError reports a request body or query that failed to decode or
// violated its binding tags.
func (s *Server) bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fe.Translate(s.trans))
		}
		fail(c, http.StatusBadRequest, "invalid request", gin.H{"errors": msgs})
		return
	}
	badRequest(c, "invalid request: "+err.Error())
}

// classify maps a service error to its status code and message. Anything
// untyped is logged and hidden behind a generic message.
func (s *Server) classify(c *gin.Context, err error) (int, string) {
	switch {
	case apperr.IsValidation(err):
		return http.StatusBadRequest, err.Error()
	case apperr.IsNotFound(err):
		return http.StatusNotFound, err.Error()
	case apperr.IsAlreadyFinalized(err):
		return http.StatusConflict, err.Error()
	}
	s.log.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))
	return http.StatusInternalServerError, "internal server error"
}

func (s *Server) writeError(c *gin.Context, err error) {
	code, msg := s.classify(c, err)

	var data any
	var (
		verr *apperr.ValidationError
		af   *apperr.AlreadyFinalizedError
	)
	switch {
	case errors.As(err, &verr):
		data = gin.H{"field": verr.Field}
	case errors.As(err, &af):
		data = gin.H{"answerId": af.AnswerID, "finalScore": af.FinalScore}
	}
	fail(c, code, msg, data)
}
