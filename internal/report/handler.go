package report

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	insprepo "fleetgate/internal/inspection/repository"
	"fleetgate/platform/httpkit"
	"fleetgate/platform/logger"
)

// Handler serves public report links. The token is the only credential; no
// session or login is involved.
type Handler struct {
	svc *Service
	log *logger.Logger
}

func NewHandler(svc *Service, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/reports/:token", h.Download)
	rg.GET("/reports/:token/meta", h.Meta)
}

// Download redirects the caller to a short-lived presigned URL for the PDF.
func (h *Handler) Download(c *gin.Context) {
	rep, ok := h.resolve(c)
	if !ok {
		return
	}

	presigned, err := h.svc.DownloadURL(c.Request.Context(), rep)
	if err != nil {
		h.log.Error("failed to presign report download", "reportId", rep.ID, "error", err)
		httpkit.Error(c, http.StatusServiceUnavailable, "report temporarily unavailable", nil)
		return
	}

	c.Redirect(http.StatusFound, presigned.URL)
}

// Meta returns the report record without the file, for link preview clients.
func (h *Handler) Meta(c *gin.Context) {
	rep, ok := h.resolve(c)
	if !ok {
		return
	}
	httpkit.OK(c, rep)
}

func (h *Handler) resolve(c *gin.Context) (*insprepo.Report, bool) {
	token := c.Param("token")
	if token == "" {
		httpkit.Error(c, http.StatusNotFound, "report not found", nil)
		return nil, false
	}

	rep, err := h.svc.ResolveToken(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, insprepo.ErrNotFound) {
			httpkit.Error(c, http.StatusNotFound, "report not found", nil)
		} else {
			h.log.DatabaseError("resolve report token", err)
			httpkit.Error(c, http.StatusInternalServerError, "internal error", nil)
		}
		return nil, false
	}
	return rep, true
}
