package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type cardsQuery struct {
	Category string `form:"category" binding:"omitempty,wish_category"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=50"`
}

type swipeRequest struct {
	CardID uint  `json:"cardId" binding:"required"`
	Liked  *bool `json:"liked" binding:"required"`
}

func (r *Router) wishCards(c *gin.Context) {
	var q cardsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	cards, err := r.d.Wishes.AvailableItems(c.Request.Context(), userID(c), q.Category, q.Limit)
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cards": cards})
}

func (r *Router) swipe(c *gin.Context) {
	var req swipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	pair, err := r.d.Wishes.PairFor(ctx, userID(c))
	if err != nil {
		fail(c, r.log, err)
		return
	}
	res, err := r.d.Wishes.RecordSwipe(ctx, userID(c), pair, req.CardID, *req.Liked)
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) matches(c *gin.Context) {
	ctx := c.Request.Context()
	pair, err := r.d.Wishes.PairFor(ctx, userID(c))
	if err != nil {
		fail(c, r.log, err)
		return
	}
	ms, err := r.d.Wishes.Matches(ctx, pair.ID)
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": ms})
}

func (r *Router) completeMatch(c *gin.Context) {
	ctx := c.Request.Context()
	pair, err := r.d.Wishes.PairFor(ctx, userID(c))
	if err != nil {
		fail(c, r.log, err)
		return
	}
	m, err := r.d.Wishes.CompleteMatch(ctx, c.Param("id"), pair.ID)
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (r *Router) wishStats(c *gin.Context) {
	ctx := c.Request.Context()
	pair, err := r.d.Wishes.PairFor(ctx, userID(c))
	if err != nil {
		fail(c, r.log, err)
		return
	}
	st, err := r.d.Wishes.Stats(ctx, userID(c), pair.ID)
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
