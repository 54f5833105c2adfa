package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type loveRequest struct {
	Message string `json:"message"`
}

func (r *Router) sendLove(c *gin.Context) {
	var req loveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	res, err := r.d.Love.Send(c.Request.Context(), userID(c), req.Message)
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"loveId":  res.Click.ID,
		"streak":  res.Streak,
	})
}

func (r *Router) loveHistory(c *gin.Context) {
	page, err := r.d.Love.History(c.Request.Context(), userID(c), queryInt(c, "limit", 0), c.Query("cursor"))
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (r *Router) loveStats(c *gin.Context) {
	st, err := r.d.Love.TodayStats(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (r *Router) loveStreak(c *gin.Context) {
	st, err := r.d.Love.Streak(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
