package handler

import (
	"context"
	"net/http"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/repository"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/resolution"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/internal/clients/transport"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/apperr"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/httpkit"
	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgQueueUnavailable = "background conversion is not configured"
)

// ConvertEnqueuer schedules a lead conversion in the background.
type ConvertEnqueuer interface {
	EnqueueEnsureFromLead(ctx context.Context, organizationID, leadID uuid.UUID, siretOverride string) (string, error)
}

type Handler struct {
	svc   *resolution.Service
	store repository.Store
	leads repository.LeadStore
	queue ConvertEnqueuer
	val   *validator.Validator
}

// New creates the clients handler. queue may be nil, in which case the
// async conversion endpoint answers 503.
func New(svc *resolution.Service, store repository.Store, leads repository.LeadStore, queue ConvertEnqueuer, val *validator.Validator) *Handler {
	return &Handler{svc: svc, store: store, leads: leads, queue: queue, val: val}
}

func (h *Handler) RegisterRoutes(clients, leads *gin.RouterGroup) {
	clients.POST("/resolve", h.Resolve)
	clients.POST("/match", h.Match)
	clients.POST("/preview", h.Preview)
	clients.PUT("/:id/billing-contact", h.SetBillingContact)

	leads.POST("/:id/convert", h.ConvertLead)
	leads.POST("/:id/convert-async", h.ConvertLeadAsync)
}

func (h *Handler) Resolve(c *gin.Context) {
	var req transport.ResolveRequest
	if !h.bind(c, &req) {
		return
	}
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	res, err := h.svc.EnsureClient(c.Request.Context(), req.Lead.ToLead(id.TenantID()), h.store.ForOrganization(id.TenantID()),
		resolution.WithSiretOverride(req.SiretOverride))
	if httpkit.HandleError(c, err) {
		return
	}
	h.respondResolution(c, res)
}

func (h *Handler) Match(c *gin.Context) {
	var req transport.MatchRequest
	if !h.bind(c, &req) {
		return
	}
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	m, err := h.svc.MatchInRepository(c.Request.Context(), req.Lead.ToLead(id.TenantID()), h.store.ForOrganization(id.TenantID()))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToMatchResponse(m))
}

func (h *Handler) Preview(c *gin.Context) {
	var req transport.MatchRequest
	if !h.bind(c, &req) {
		return
	}
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	preview := h.svc.PreviewClient(req.Lead.ToLead(id.TenantID()))
	preview.OrganizationID = id.TenantID()
	httpkit.OK(c, transport.ToClientResponse(preview))
}

func (h *Handler) SetBillingContact(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	var req transport.SetBillingContactRequest
	if !h.bind(c, &req) {
		return
	}
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	client, err := h.svc.SetBillingContact(c.Request.Context(), h.store.ForOrganization(id.TenantID()), clientID, req.ContactID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToClientResponse(client))
}

func (h *Handler) ConvertLead(c *gin.Context) {
	leadID, req, ok := h.bindConvert(c)
	if !ok {
		return
	}
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	res, err := h.svc.ConvertLead(c.Request.Context(), h.leads, h.store.ForOrganization(id.TenantID()), id.TenantID(), leadID,
		resolution.WithSiretOverride(req.SiretOverride))
	if httpkit.HandleError(c, err) {
		return
	}
	h.respondResolution(c, res)
}

func (h *Handler) ConvertLeadAsync(c *gin.Context) {
	leadID, req, ok := h.bindConvert(c)
	if !ok {
		return
	}
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	if h.queue == nil {
		httpkit.HandleError(c, apperr.Unavailable(msgQueueUnavailable))
		return
	}

	if _, err := h.leads.GetLead(c.Request.Context(), id.TenantID(), leadID); httpkit.HandleError(c, err) {
		return
	}
	taskID, err := h.queue.EnqueueEnsureFromLead(c.Request.Context(), id.TenantID(), leadID, req.SiretOverride)
	if err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindUnavailable, "could not queue conversion", err))
		return
	}
	httpkit.Accepted(c, transport.ConvertQueuedResponse{LeadID: leadID, TaskID: taskID, Status: "queued"})
}

func (h *Handler) respondResolution(c *gin.Context, res resolution.Resolution) {
	status := http.StatusOK
	if res.Created() {
		status = http.StatusCreated
	}
	httpkit.JSON(c, status, transport.ToResolutionResponse(res))
}

// bindConvert reads the lead ID and the optional body of the convert routes.
func (h *Handler) bindConvert(c *gin.Context) (uuid.UUID, transport.ConvertLeadRequest, bool) {
	var req transport.ConvertLeadRequest
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, req, false
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return uuid.Nil, req, false
		}
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return uuid.Nil, req, false
	}
	return leadID, req, true
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}
