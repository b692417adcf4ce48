// Package handler exposes the inspection workflow over HTTP.
package handler

import (
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fleetgate/internal/inspection/domain"
	"fleetgate/internal/inspection/service"
	"fleetgate/internal/inspection/transport"
	"fleetgate/platform/httpkit"
	"fleetgate/platform/validator"
)

const msgInvalidRequest = "invalid request"

// maxPhotoUpload bounds the multipart photo size read into memory.
const maxPhotoUpload = 25 << 20

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts the inspection routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Start)
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id/metadata", h.UpdateMetadata)
	rg.POST("/:id/navigate", h.Navigate)
	rg.POST("/:id/steps/:stepType/photo", h.CapturePhoto)
	rg.POST("/:id/steps/:stepType/retake", h.RetakePhoto)
	rg.POST("/:id/steps/:stepType/description/approve", h.ApproveDescription)
	rg.PUT("/:id/steps/:stepType/description", h.EditDescription)
	rg.POST("/:id/signatures", h.RecordSignature)
	rg.POST("/:id/lock", h.Lock)
}

// RegisterMissionRoutes mounts the per-mission listing route.
func (h *Handler) RegisterMissionRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/inspections", h.ListByMission)
}

func (h *Handler) sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) Start(c *gin.Context) {
	var req transport.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	result, err := h.svc.Start(c.Request.Context(), service.StartInput{
		MissionID: req.MissionID,
		Kind:      domain.Kind(req.Kind),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	status := http.StatusCreated
	if result.Resumed {
		status = http.StatusOK
	}
	httpkit.JSON(c, status, result)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	session, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, session)
}

func (h *Handler) ListByMission(c *gin.Context) {
	missionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	sessions, err := h.svc.ListByMission(c.Request.Context(), missionID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, sessions)
}

func (h *Handler) UpdateMetadata(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req transport.UpdateMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	in := service.MetadataInput{
		FuelLevel:  req.FuelLevel,
		OdometerKm: req.OdometerKm,
		Notes:      req.Notes,
	}
	if req.OverallCondition != nil {
		condition := domain.Condition(*req.OverallCondition)
		in.OverallCondition = &condition
	}

	session, err := h.svc.UpdateMetadata(c.Request.Context(), id, in)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, session)
}

func (h *Handler) Navigate(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req transport.NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	session, err := h.svc.Navigate(c.Request.Context(), id, service.NavigateAction(req.Action), req.Index)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, session)
}

func (h *Handler) CapturePhoto(c *gin.Context) {
	h.capture(c, false)
}

func (h *Handler) RetakePhoto(c *gin.Context) {
	h.capture(c, true)
}

func (h *Handler) capture(c *gin.Context, retake bool) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	stepType := c.Param("stepType")

	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "photo file is required", nil)
		return
	}
	defer func() {
		_ = file.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(file, maxPhotoUpload+1))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "failed to read photo", nil)
		return
	}
	if len(data) > maxPhotoUpload {
		httpkit.Error(c, http.StatusRequestEntityTooLarge, "photo too large", nil)
		return
	}

	in := service.CaptureInput{StepType: stepType, FileName: header.Filename, Data: data}
	var result *service.CaptureResult
	if retake {
		result, err = h.svc.RetakePhoto(c.Request.Context(), id, in)
	} else {
		result, err = h.svc.CapturePhoto(c.Request.Context(), id, in)
	}
	if httpkit.HandleError(c, err) {
		return
	}

	// Accepted: the photo displays immediately while upload and analysis
	// continue in the background.
	httpkit.JSON(c, http.StatusAccepted, result)
}

func (h *Handler) ApproveDescription(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	session, err := h.svc.ApproveDescription(c.Request.Context(), id, c.Param("stepType"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, session)
}

func (h *Handler) EditDescription(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req transport.EditDescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	session, err := h.svc.EditDescription(c.Request.Context(), id, c.Param("stepType"), req.Text)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, session)
}

func (h *Handler) RecordSignature(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req transport.SignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	imageData, err := decodeSignatureImage(req.ImageData)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "signature image must be base64-encoded", nil)
		return
	}

	session, err := h.svc.RecordSignature(c.Request.Context(), id, service.SignatureInput{
		Role:       domain.SignerRole(req.Role),
		ImageData:  imageData,
		SignerName: req.SignerName,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, session)
}

func (h *Handler) Lock(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	session, err := h.svc.Lock(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, session)
}

// decodeSignatureImage accepts raw base64 or a data URL.
func decodeSignatureImage(encoded string) ([]byte, error) {
	if idx := strings.Index(encoded, ","); idx >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[idx+1:]
	}
	return base64.StdEncoding.DecodeString(encoded)
}
