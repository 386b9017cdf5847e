package handlers

import (
	"net/http"

	"github.com/go-authgate/identitygate/internal/services"

	"github.com/gin-gonic/gin"
)

// KeyHandler exposes service key management and the public key documents.
type KeyHandler struct {
	keys *services.KeyService
}

func NewKeyHandler(keys *services.KeyService) *KeyHandler {
	return &KeyHandler{keys: keys}
}

// Generate godoc
//
//	@Summary		Rotate service keys
//	@Description	Replaces both key pairs of a service. Existing tokens stop verifying.
//	@Tags			Keys
//	@Produce		json
//	@Security		BearerAuth
//	@Param			service	path		string	true	"Service name"
//	@Success		201		{object}	object{success=bool,message=string}
//	@Failure		403		{object}	object{success=bool,message=string,error=string}
//	@Failure		404		{object}	object{success=bool,message=string,error=string}
//	@Router			/keys/{service}/generate [post]
func (h *KeyHandler) Generate(c *gin.Context) {
	service := c.Param("service")
	if err := h.keys.GenerateServiceKeys(c.Request.Context(), service, requestMeta(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Keys generated for service " + service,
	})
}

// PublicKey godoc
//
//	@Summary	Public key PEM
//	@Tags		Keys
//	@Produce	application/x-pem-file
//	@Security	BearerAuth
//	@Param		service	path		string	true	"Service name"
//	@Param		keyType	path		string	true	"Key pair"	Enums(access, refresh)
//	@Success	200		{string}	string
//	@Failure	400		{object}	object{success=bool,message=string,error=string}
//	@Failure	403		{object}	object{success=bool,message=string,error=string}
//	@Failure	404		{object}	object{success=bool,message=string,error=string}
//	@Router		/keys/{service}/{keyType} [get]
func (h *KeyHandler) PublicKey(c *gin.Context) {
	pem, err := h.keys.PublicKeyPEM(c.Param("service"), c.Param("keyType"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/x-pem-file", pem)
}

// JWKS godoc
//
//	@Summary		Service JWKS
//	@Description	Publishes both public keys of a service
//	@Tags			Keys
//	@Produce		json
//	@Param			service	path		string	true	"Service name"
//	@Success		200		{object}	object{keys=[]object}
//	@Failure		404		{object}	object{success=bool,message=string,error=string}
//	@Router			/keys/{service}/jwks.json [get]
func (h *KeyHandler) JWKS(c *gin.Context) {
	set, err := h.keys.JWKS(c.Param("service"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, set)
}
