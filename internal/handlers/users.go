package handlers

import (
	"net/http"

	"github.com/go-authgate/identitygate/internal/middleware"
	"github.com/go-authgate/identitygate/internal/services"

	"github.com/gin-gonic/gin"
)

// UserHandler serves user administration.
type UserHandler struct {
	identity *services.IdentityService
	session  *services.SessionService
}

func NewUserHandler(identity *services.IdentityService, session *services.SessionService) *UserHandler {
	return &UserHandler{identity: identity, session: session}
}

type createUserRequest struct {
	Email    string `json:"email"    binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// List godoc
//
//	@Summary		List users
//	@Description	Pages through all users. Admins only.
//	@Tags			Users
//	@Produce		json
//	@Security		BearerAuth
//	@Param			page		query		int	false	"Page number"		default(1)
//	@Param			page_size	query		int	false	"Items per page"	default(20)
//	@Success		200			{object}	object{success=bool,users=[]object,pagination=object}
//	@Failure		401			{object}	object{success=bool,message=string,error=string}
//	@Failure		403			{object}	object{success=bool,message=string,error=string}
//	@Router			/users [get]
func (h *UserHandler) List(c *gin.Context) {
	if !middleware.GetUser(c).IsAdmin() {
		respondFailure(c, http.StatusForbidden, "Forbidden", "Only administrators can list users")
		return
	}
	users, page, err := h.identity.ListUsers(c.Request.Context(), paginationFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"users":      users,
		"pagination": page,
	})
}

// Get godoc
//
//	@Summary	Get a user
//	@Tags		Users
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"User ID"
//	@Success	200	{object}	object{success=bool,user=object}
//	@Failure	403	{object}	object{success=bool,message=string,error=string}
//	@Failure	404	{object}	object{success=bool,message=string,error=string}
//	@Router		/users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.identity.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// Create godoc
//
//	@Summary		Create a user
//	@Description	Registers a password user without granting any service
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		object{email=string,username=string,password=string}	true	"New user"
//	@Success		201		{object}	object{success=bool,user=object}
//	@Failure		400		{object}	object{success=bool,message=string,error=string}
//	@Failure		403		{object}	object{success=bool,message=string,error=string}
//	@Failure		409		{object}	object{success=bool,message=string,error=string}
//	@Router			/users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "Invalid request",
			"email, username and password are required")
		return
	}
	user, err := h.session.CreateUser(c.Request.Context(), middleware.GetUser(c),
		req.Email, req.Username, req.Password, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "user": user})
}
