package patient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/patient-api/internal/handler"
	"github.com/jwalitptl/patient-api/internal/model"
	"github.com/jwalitptl/patient-api/internal/service/patient"
	apperrors "github.com/jwalitptl/patient-api/pkg/errors"
)

type Handler struct {
	service patient.PatientService
}

func NewHandler(service patient.PatientService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.GET("", h.ListPatients)
		patients.PUT("/:id", h.UpdatePatient)
	}
}

// ListPatients returns every patient with all owned records.
func (h *Handler) ListPatients(c *gin.Context) {
	records, err := h.service.ListPatients(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to fetch patients"))
		return
	}
	c.JSON(http.StatusOK, records)
}

// UpdatePatient replaces the stored state of the patient and responds with
// its primary fields.
func (h *Handler) UpdatePatient(c *gin.Context) {
	id := c.Param("id")

	var payload model.PatientRecord
	if err := c.ShouldBindJSON(&payload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.Error(apperrors.BadRequest("request body too large", err))
			c.JSON(http.StatusRequestEntityTooLarge,
				handler.NewErrorResponse(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)))
			return
		}
		c.Error(apperrors.BadRequest("invalid request body", err))
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request body: "+err.Error()))
		return
	}

	updated, err := h.service.UpdatePatient(c.Request.Context(), id, &payload)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(fmt.Sprintf("failed to update patient %s", id)))
		return
	}
	c.JSON(http.StatusOK, updated)
}
