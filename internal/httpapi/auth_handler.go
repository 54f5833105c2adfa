package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oggyb/pulse/internal/db"
	svcErr "github.com/oggyb/pulse/internal/errors"
	"github.com/oggyb/pulse/internal/service/pairing"
)

type loginRequest struct {
	InitData string `json:"initData"`
}

// SessionResponse is returned by login and /me.
type SessionResponse struct {
	Token     string        `json:"token,omitempty"`
	ExpiresAt *time.Time    `json:"expiresAt,omitempty"`
	User      *db.User      `json:"user"`
	Pair      *pairing.View `json:"pair"`
}

func (r *Router) login(c *gin.Context) {
	var req loginRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	if req.InitData == "" {
		req.InitData = c.GetHeader(HeaderInitData)
	}
	if req.InitData == "" {
		fail(c, r.log, svcErr.Invalid("initData is required"))
		return
	}

	profile, err := r.d.Verifier.Verify(req.InitData)
	if err != nil {
		fail(c, r.log, err)
		return
	}
	ctx := c.Request.Context()
	u, err := r.d.Resolver.Resolve(ctx, profile)
	if err != nil {
		fail(c, r.log, err)
		return
	}
	token, exp, err := r.d.Sessions.Sign(u.ID)
	if err != nil {
		fail(c, r.log, err)
		return
	}
	v, err := r.d.Pairs.GetActivePair(ctx, u.ID)
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, SessionResponse{Token: token, ExpiresAt: &exp, User: u, Pair: v})
}

func (r *Router) me(c *gin.Context) {
	ctx := c.Request.Context()
	u, err := r.d.Resolver.Find(ctx, userID(c))
	if err != nil {
		fail(c, r.log, err)
		return
	}
	v, err := r.d.Pairs.GetActivePair(ctx, u.ID)
	if err != nil {
		fail(c, r.log, err)
		return
	}
	c.JSON(http.StatusOK, SessionResponse{User: u, Pair: v})
}
