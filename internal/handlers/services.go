package handlers

import (
	"net/http"

	"github.com/go-authgate/identitygate/internal/middleware"
	"github.com/go-authgate/identitygate/internal/models"
	"github.com/go-authgate/identitygate/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServiceHandler registers and retires tenants.
type ServiceHandler struct {
	registry *services.RegistryService
	keys     *services.KeyService
	audit    *services.AuditService
	logger   *zap.Logger
}

func NewServiceHandler(
	registry *services.RegistryService,
	keys *services.KeyService,
	audit *services.AuditService,
) *ServiceHandler {
	return &ServiceHandler{
		registry: registry,
		keys:     keys,
		audit:    audit,
		logger:   zap.L().Named("services"),
	}
}

type createServiceRequest struct {
	Name        string   `json:"name"         binding:"required"`
	Public      bool     `json:"public"`
	WebhookURLs []string `json:"webhook_urls"`
}

// Create godoc
//
//	@Summary		Register a service
//	@Description	Creates a tenant with fresh signing keys. The bearer token and hook secret are only returned here.
//	@Tags			Services
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		object{name=string,public=bool,webhook_urls=[]string}	true	"Service registration"
//	@Success		201		{object}	object{success=bool,service=object,bearer_token=string,hook_secret=string}
//	@Failure		400		{object}	object{success=bool,message=string,error=string}
//	@Failure		403		{object}	object{success=bool,message=string,error=string}
//	@Failure		409		{object}	object{success=bool,message=string,error=string}
//	@Router			/services [post]
func (h *ServiceHandler) Create(c *gin.Context) {
	var req createServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "Invalid request", "name is required")
		return
	}

	ctx := c.Request.Context()
	svc, err := h.registry.CreateService(ctx, services.CreateServiceInput{
		Name:        req.Name,
		Public:      req.Public,
		WebhookURLs: req.WebhookURLs,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.keys.GenerateServiceKeys(ctx, svc.Name, requestMeta(c)); err != nil {
		if _, derr := h.registry.DeleteService(ctx, svc.Name); derr != nil {
			h.logger.Error("failed to roll back service without keys",
				zap.String("service", svc.Name), zap.Error(derr))
		}
		respondError(c, err)
		return
	}

	h.record(c, models.EventServiceCreated, svc)
	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"service":      svc,
		"bearer_token": svc.BearerToken,
		"hook_secret":  svc.HookSecret,
	})
}

// Delete godoc
//
//	@Summary		Delete a service
//	@Description	Soft-deletes the service with exactly this name and removes its key files
//	@Tags			Services
//	@Produce		json
//	@Security		BearerAuth
//	@Param			name	path		string	true	"Service name"
//	@Success		200		{object}	object{success=bool,message=string}
//	@Failure		403		{object}	object{success=bool,message=string,error=string}
//	@Failure		404		{object}	object{success=bool,message=string,error=string}
//	@Router			/services/{name} [delete]
func (h *ServiceHandler) Delete(c *gin.Context) {
	svc, err := h.registry.DeleteService(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.keys.DeleteServiceKeys(svc.Name); err != nil {
		h.logger.Warn("service deleted but key files remain",
			zap.String("service", svc.Name), zap.Error(err))
	}

	h.record(c, models.EventServiceDeleted, svc)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Service " + svc.Name + " deleted"})
}

func (h *ServiceHandler) record(c *gin.Context, event models.EventType, svc *models.Service) {
	entry := services.AuditLogEntry{
		EventType:     event,
		Severity:      models.SeverityWarning,
		ActorIP:       c.ClientIP(),
		UserAgent:     c.Request.UserAgent(),
		RequestPath:   c.Request.URL.Path,
		RequestMethod: c.Request.Method,
		ResourceType:  models.ResourceService,
		ResourceID:    svc.ID,
		ResourceName:  svc.Name,
		Success:       true,
	}
	if user := middleware.GetUser(c); user != nil {
		entry.ActorUserID = user.ID
		entry.ActorUsername = user.Username
	}
	h.audit.Log(c.Request.Context(), entry)
}
