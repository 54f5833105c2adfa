package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type chatRequest struct {
	Message string `json:"message" binding:"required"`
}

func (r *Router) aiHistory(c *gin.Context) {
	ctx := c.Request.Context()
	v, err := r.d.Pairs.RequireJoined(ctx, userID(c))
	if err != nil {
		fail(c, r.log, err)
		return
	}
	msgs, err := r.d.Assistant.History(ctx, v.Pair.ID, queryInt(c, "limit", 0))
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (r *Router) aiChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	v, err := r.d.Pairs.RequireJoined(ctx, userID(c))
	if err != nil {
		fail(c, r.log, err)
		return
	}
	reply, err := r.d.Assistant.Chat(ctx, v.Pair.ID, userID(c), req.Message)
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
