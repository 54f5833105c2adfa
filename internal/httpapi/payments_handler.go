package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type invoiceRequest struct {
	Tier string `json:"tier" binding:"required"`
}

type promoRequest struct {
	Code string `json:"code" binding:"required,max=50"`
}

func (r *Router) tiers(c *gin.Context) {
	tiers, err := r.d.Billing.TiersFor(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tiers": tiers})
}

func (r *Router) createInvoice(c *gin.Context) {
	var req invoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	inv, err := r.d.Billing.CreateInvoice(c.Request.Context(), userID(c), req.Tier)
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (r *Router) paymentStatus(c *gin.Context) {
	st, err := r.d.Billing.Status(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (r *Router) applyPromo(c *gin.Context) {
	var req promoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := r.d.Billing.ApplyPromo(c.Request.Context(), userID(c), req.Code)
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
