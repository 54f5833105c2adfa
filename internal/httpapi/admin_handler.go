package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oggyb/pulse/internal/service/billing"
)

func (r *Router) adminStats(c *gin.Context) {
	st, err := r.d.Admin.Stats(c.Request.Context())
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (r *Router) adminUsers(c *gin.Context) {
	page, err := r.d.Admin.Users(c.Request.Context(), queryInt(c, "page", 1), queryInt(c, "limit", 0))
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (r *Router) adminActivity(c *gin.Context) {
	days, err := r.d.Admin.Activity(c.Request.Context(), queryInt(c, "days", 0))
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": days})
}

func (r *Router) adminPromos(c *gin.Context) {
	codes, err := r.d.Billing.Promos(c.Request.Context())
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"promoCodes": codes})
}

func (r *Router) adminCreatePromo(c *gin.Context) {
	var in billing.PromoInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	p, err := r.d.Billing.CreatePromo(c.Request.Context(), in)
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}
