package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PaulBabatuyi/coova/internal/apperr"
)

type errorBody struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeError renders err with the status its kind maps to. Forbidden
// attempts and internal failures are logged.
func (h *handler) writeError(c *gin.Context, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		if st, ok := status.FromError(err); ok && st.Code() == codes.Unauthenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: st.Message()})
			return
		}
	}

	code := apperr.HTTPStatus(err)
	entry := h.log.WithError(err).WithField("path", c.FullPath())
	switch {
	case code >= http.StatusInternalServerError:
		entry.Error("request failed")
	case apperr.KindOf(err) == apperr.KindForbidden:
		entry.Warn("forbidden")
	}

	msg, fields := apperr.Public(err)
	body := errorBody{Error: msg, Fields: fields}
	if ae != nil {
		body.Kind = ae.Kind.String()
	}
	c.AbortWithStatusJSON(code, body)
}

// bindError reports an undecodable body or query.
func (h *handler) bindError(c *gin.Context, err error) {
	h.writeError(c, apperr.Validation("malformed request: "+err.Error(), nil))
}
