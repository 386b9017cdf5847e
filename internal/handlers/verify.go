package handlers

import (
	"net/http"

	"github.com/go-authgate/identitygate/internal/keystore"
	"github.com/go-authgate/identitygate/internal/services"

	"github.com/gin-gonic/gin"
)

// VerifyHandler lets tenant services check tokens without holding the keys.
type VerifyHandler struct {
	session *services.SessionService
}

func NewVerifyHandler(session *services.SessionService) *VerifyHandler {
	return &VerifyHandler{session: session}
}

type verifyAccessRequest struct {
	AccessToken string `json:"accessToken"`
}

type verifyRefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// VerifyAccess godoc
//
//	@Summary	Verify an access token
//	@Tags		Verify
//	@Accept		json
//	@Produce	json
//	@Param		request	body		object{accessToken=string}	true	"Access token"
//	@Success	200		{object}	object{message=string,decoded=object}
//	@Failure	400		{object}	object{success=bool,message=string,error=string}
//	@Failure	401		{object}	object{success=bool,message=string,error=string}
//	@Router		/verify/access-token [post]
func (h *VerifyHandler) VerifyAccess(c *gin.Context) {
	var req verifyAccessRequest
	_ = c.ShouldBindJSON(&req)
	h.verify(c, req.AccessToken, keystore.ClassAccess, "Access token")
}

// VerifyRefresh godoc
//
//	@Summary	Verify a refresh token
//	@Tags		Verify
//	@Accept		json
//	@Produce	json
//	@Param		request	body		object{refreshToken=string}	true	"Refresh token"
//	@Success	200		{object}	object{message=string,decoded=object}
//	@Failure	400		{object}	object{success=bool,message=string,error=string}
//	@Failure	401		{object}	object{success=bool,message=string,error=string}
//	@Router		/verify/refresh-token [post]
func (h *VerifyHandler) VerifyRefresh(c *gin.Context) {
	var req verifyRefreshRequest
	_ = c.ShouldBindJSON(&req)
	h.verify(c, req.RefreshToken, keystore.ClassRefresh, "Refresh token")
}

func (h *VerifyHandler) verify(c *gin.Context, raw string, class keystore.TokenClass, label string) {
	if raw == "" {
		respondFailure(c, http.StatusBadRequest, label+" is required", "No token provided")
		return
	}
	claims, err := h.session.VerifyToken(raw, class)
	if err != nil {
		respondFailure(c, http.StatusUnauthorized, "Invalid token", "Invalid or expired token")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": label + " is valid",
		"decoded": claims,
	})
}
