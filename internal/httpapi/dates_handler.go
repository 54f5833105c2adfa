package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oggyb/pulse/internal/db"
	svcErr "github.com/oggyb/pulse/internal/errors"
	"github.com/oggyb/pulse/internal/service/dates"
)

// activePair resolves the caller's pair; dates work before the partner joins.
func (r *Router) activePair(c *gin.Context) (*db.Pair, bool) {
	v, err := r.d.Pairs.GetActivePair(c.Request.Context(), userID(c))
	if err == nil && v == nil {
		err = svcErr.ErrNotPaired
	}
	if err != nil {
		fail(c, r.log, err)
		return nil, false
	}
	return v.Pair, true
}

func (r *Router) listDates(c *gin.Context) {
	pair, ok := r.activePair(c)
	if !ok {
		return
	}
	list, err := r.d.Dates.List(c.Request.Context(), pair.ID, userID(c))
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dates": list})
}

func (r *Router) upcomingDates(c *gin.Context) {
	pair, ok := r.activePair(c)
	if !ok {
		return
	}
	list, err := r.d.Dates.Upcoming(c.Request.Context(), pair.ID, userID(c))
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dates": list})
}

func (r *Router) createDate(c *gin.Context) {
	var in dates.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	pair, ok := r.activePair(c)
	if !ok {
		return
	}
	v, err := r.d.Dates.Create(c.Request.Context(), pair, userID(c), in)
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (r *Router) updateDate(c *gin.Context) {
	var p dates.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err)
		return
	}
	pair, ok := r.activePair(c)
	if !ok {
		return
	}
	v, err := r.d.Dates.Update(c.Request.Context(), pair.ID, userID(c), c.Param("id"), p)
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (r *Router) deleteDate(c *gin.Context) {
	pair, ok := r.activePair(c)
	if !ok {
		return
	}
	if err := r.d.Dates.Delete(c.Request.Context(), pair.ID, userID(c), c.Param("id")); err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
