package httpapi

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/PaulBabatuyi/coova/api/coova/v1"
)

func (h *handler) requestBooking(c *gin.Context) {
	var req v1.RequestBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	b, err := h.svc.RequestBooking(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *handler) getBooking(c *gin.Context) {
	b, err := h.svc.GetBooking(c.Request.Context(), &v1.GetBookingRequest{BookingID: c.Param("id")})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *handler) listBookings(c *gin.Context) {
	var req v1.ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.bindError(c, err)
		return
	}
	out, err := h.svc.ListBookings(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) transitionBooking(c *gin.Context) {
	var req v1.TransitionBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	req.BookingID = c.Param("id")
	b, err := h.svc.TransitionBooking(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *handler) quote(c *gin.Context) {
	var req v1.QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.bindError(c, err)
		return
	}
	req.ResourceID = c.Param("id")
	q, err := h.svc.QuoteBooking(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *handler) availability(c *gin.Context) {
	var req v1.AvailabilityRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.bindError(c, err)
		return
	}
	req.ResourceID = c.Param("id")
	out, err := h.svc.GetAvailability(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) createResource(c *gin.Context) {
	var req v1.CreateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	r, err := h.svc.CreateResource(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *handler) getResource(c *gin.Context) {
	r, err := h.svc.GetResource(c.Request.Context(), &v1.GetResourceRequest{ResourceID: c.Param("id")})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *handler) updateResource(c *gin.Context) {
	var req v1.UpdateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	req.ResourceID = c.Param("id")
	r, err := h.svc.UpdateResource(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *handler) listResources(c *gin.Context) {
	var req v1.ListResourcesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.bindError(c, err)
		return
	}
	out, err := h.svc.ListResources(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) openConversation(c *gin.Context) {
	var req v1.OpenConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	conv, err := h.svc.OpenConversation(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (h *handler) sendMessage(c *gin.Context) {
	var req v1.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	req.ConversationID = c.Param("id")
	m, err := h.svc.SendMessage(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *handler) listMessages(c *gin.Context) {
	var req v1.ListMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.bindError(c, err)
		return
	}
	req.ConversationID = c.Param("id")
	out, err := h.svc.ListMessages(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) deleteMessage(c *gin.Context) {
	out, err := h.svc.DeleteMessage(c.Request.Context(), &v1.DeleteMessageRequest{
		ConversationID: c.Param("id"),
		MessageID:      c.Param("messageId"),
		UserID:         c.Query("userId"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) markRead(c *gin.Context) {
	var req v1.MarkReadRequest
	// the body is optional
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.bindError(c, err)
			return
		}
	}
	req.ConversationID = c.Param("id")
	out, err := h.svc.MarkRead(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) unreadCount(c *gin.Context) {
	out, err := h.svc.GetUnreadCount(c.Request.Context(), &v1.UnreadCountRequest{
		ConversationID: c.Param("id"),
		UserID:         c.Query("userId"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) inbox(c *gin.Context) {
	out, err := h.svc.ListInbox(c.Request.Context(), &v1.InboxRequest{UserID: c.Query("userId")})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type confirmPaymentRequest struct {
	BookingID  string `json:"bookingId" validate:"required"`
	PaymentRef string `json:"paymentRef" validate:"required,max=128"`
}

// confirmPayment is the payment provider callback. It is authenticated by a
// shared secret rather than a user token.
func (h *handler) confirmPayment(c *gin.Context) {
	got := c.GetHeader(PaymentSecretHeader)
	if h.secret == "" || h.payments == nil || subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		h.log.WithField("client", c.ClientIP()).Warn("payment callback rejected")
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Error: "invalid payment secret"})
		return
	}
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(c, err)
		return
	}
	b, err := h.payments.ConfirmPayment(c.Request.Context(), req.BookingID, req.PaymentRef)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v1.FromBooking(b))
}
