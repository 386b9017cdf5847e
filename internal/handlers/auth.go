package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-authgate/identitygate/internal/keystore"
	"github.com/go-authgate/identitygate/internal/middleware"
	"github.com/go-authgate/identitygate/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// AuthHandler serves password login, signup, refresh, logout and the current user.
type AuthHandler struct {
	session *services.SessionService
	cookies CookieConfig
}

func NewAuthHandler(session *services.SessionService, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{session: session, cookies: cookies}
}

type loginRequest struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
	Service  string `json:"service"  binding:"required"`
}

type signupRequest struct {
	Email    string `json:"email"    binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Service  string `json:"service"  binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func loginResponse(result *services.LoginResult) gin.H {
	return gin.H{
		"success":      true,
		"message":      "Login successful for service " + result.Service,
		"user":         result.User,
		"service":      result.Service,
		"accessToken":  result.Access.TokenString,
		"refreshToken": result.Refresh.TokenString,
		"expiresAt":    result.Access.ExpiresAt.Format(time.RFC3339),
		"notified":     result.Notified,
	}
}

// Login godoc
//
//	@Summary		Password login
//	@Description	Authenticates email and password for a service and returns a token pair. Tokens are also set as cookies.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		object{email=string,password=string,service=string}	true	"Credentials"
//	@Success		200		{object}	object{success=bool,message=string,user=object,service=string,accessToken=string,refreshToken=string,expiresAt=string,notified=bool}
//	@Failure		400		{object}	object{success=bool,message=string,error=string}
//	@Failure		401		{object}	object{success=bool,message=string,error=string}
//	@Failure		403		{object}	object{success=bool,message=string,error=string}
//	@Failure		429		{object}	object{success=bool,message=string,error=string}
//	@Router			/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "Invalid request",
			"email, password and service are required")
		return
	}

	result, err := h.session.LocalLogin(c.Request.Context(),
		req.Email, req.Password, req.Service, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}

	h.cookies.setTokens(c, result.Access, result.Refresh)
	c.JSON(http.StatusOK, loginResponse(result))
}

// Signup godoc
//
//	@Summary		Password signup
//	@Description	Registers a password user, grants the service and logs in
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		object{email=string,username=string,password=string,service=string}	true	"New account"
//	@Success		201		{object}	object{success=bool,message=string,user=object,service=string,accessToken=string,refreshToken=string,expiresAt=string,notified=bool}
//	@Failure		400		{object}	object{success=bool,message=string,error=string}
//	@Failure		409		{object}	object{success=bool,message=string,error=string}
//	@Failure		429		{object}	object{success=bool,message=string,error=string}
//	@Router			/auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "Invalid request",
			"email, username, password and service are required")
		return
	}

	result, err := h.session.Signup(c.Request.Context(),
		req.Email, req.Username, req.Password, req.Service, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}

	h.cookies.setTokens(c, result.Access, result.Refresh)
	c.JSON(http.StatusCreated, loginResponse(result))
}

// Refresh godoc
//
//	@Summary		Refresh the access token
//	@Description	The refresh token is read from the cookie, then the Authorization header, then the JSON body.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		object{refreshToken=string}	false	"Refresh token"
//	@Success		200		{object}	object{success=bool,accessToken=string,service=string,expiresAt=string}
//	@Failure		401		{object}	object{success=bool,message=string,error=string}
//	@Router			/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	raw, _ := c.Cookie(middleware.RefreshTokenCookie)
	if raw == "" {
		raw = middleware.BearerToken(c)
	}
	if raw == "" {
		var req refreshRequest
		_ = c.ShouldBindJSON(&req)
		raw = req.RefreshToken
	}
	if raw == "" {
		respondFailure(c, http.StatusUnauthorized, "Unauthorized", "No refresh token provided")
		return
	}

	access, err := h.session.Refresh(c.Request.Context(), raw, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}

	h.cookies.setTokens(c, access, nil)
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"accessToken": access.TokenString,
		"service":     access.Service,
		"expiresAt":   access.ExpiresAt.Format(time.RFC3339),
	})
}

// Logout godoc
//
//	@Summary		Log out
//	@Description	Clears the token cookies and destroys the server-side session
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	object{success=bool,message=string}
//	@Failure		500	{object}	object{success=bool,message=string,error=string}
//	@Router			/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	userID, _ := session.Get(sessionKeyUserID).(string)
	username := ""
	if userID == "" {
		if raw, _ := c.Cookie(middleware.AccessTokenCookie); raw != "" {
			if claims, err := h.session.VerifyToken(raw, keystore.ClassAccess); err == nil {
				userID, username = claims.Subject, claims.Name
			}
		}
	}

	session.Clear()
	h.cookies.clear(c)
	if err := session.Save(); err != nil {
		respondError(c, fmt.Errorf("failed to destroy session: %w", err))
		return
	}

	if err := h.session.Logout(c.Request.Context(), userID, username, requestMeta(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

// Me godoc
//
//	@Summary	Current user
//	@Tags		Auth
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	object{success=bool,user=object}
//	@Failure	401	{object}	object{success=bool,message=string,error=string}
//	@Router		/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.GetUser(c)
	resp := gin.H{
		"success":     true,
		"user":        user,
		"permissions": user.Permissions(),
	}
	if claims := middleware.GetClaims(c); claims != nil {
		resp["service"] = claims.Service
	}
	c.JSON(http.StatusOK, resp)
}
