package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oggyb/pulse/internal/bot"
	"github.com/oggyb/pulse/internal/service/pairing"
)

// InviteResponse carries the pair and, while unjoined, the links to share.
type InviteResponse struct {
	*pairing.View
	InviteLink string `json:"inviteLink,omitempty"`
	ShareLink  string `json:"shareLink,omitempty"`
}

type joinRequest struct {
	Code string `json:"code" binding:"required,max=16"`
}

func (r *Router) createInvite(c *gin.Context) {
	v, err := r.d.Pairs.CreateInvite(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, r.log, err)
		return
	}
	resp := InviteResponse{View: v}
	if !v.Joined() && r.d.BotUsername != "" {
		resp.InviteLink = bot.InviteLink(r.d.BotUsername, v.Pair.InviteCode)
		resp.ShareLink = bot.ShareLink(resp.InviteLink)
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) joinInvite(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	v, err := r.d.Pairs.JoinInvite(c.Request.Context(), userID(c), req.Code)
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (r *Router) unlink(c *gin.Context) {
	p, err := r.d.Pairs.UnlinkForUser(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "pairId": p.ID})
}
