// Package handler exposes HTTP endpoints for missions.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fleetgate/internal/missions/repository"
	"fleetgate/internal/missions/transport"
	"fleetgate/platform/httpkit"
	"fleetgate/platform/logger"
	"fleetgate/platform/validator"
)

const msgInvalidRequest = "invalid request"

type Handler struct {
	repo *repository.Repository
	val  *validator.Validator
	log  *logger.Logger
}

func New(repo *repository.Repository, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{repo: repo, val: val, log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateMissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	mission, err := h.repo.Create(c.Request.Context(), &repository.Mission{
		Reference:       req.Reference,
		VehicleBrand:    req.VehicleBrand,
		VehicleModel:    req.VehicleModel,
		VehiclePlate:    req.VehiclePlate,
		VehicleVIN:      req.VehicleVIN,
		VehicleYear:     req.VehicleYear,
		VehicleColor:    req.VehicleColor,
		ClientName:      req.ClientName,
		ClientEmail:     req.ClientEmail,
		PickupAddress:   req.PickupAddress,
		DeliveryAddress: req.DeliveryAddress,
	})
	if err != nil {
		h.log.DatabaseError("create mission", err)
		httpkit.Error(c, http.StatusInternalServerError, "failed to create mission", nil)
		return
	}

	httpkit.JSON(c, http.StatusCreated, mission)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	mission, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if err == repository.ErrNotFound {
			httpkit.Error(c, http.StatusNotFound, "mission not found", nil)
			return
		}
		h.log.DatabaseError("get mission", err)
		httpkit.Error(c, http.StatusInternalServerError, "failed to fetch mission", nil)
		return
	}

	httpkit.OK(c, mission)
}

func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	missions, err := h.repo.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.log.DatabaseError("list missions", err)
		httpkit.Error(c, http.StatusInternalServerError, "failed to list missions", nil)
		return
	}

	httpkit.OK(c, missions)
}
