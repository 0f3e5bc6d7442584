package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/pkg/response"
)

type exportService interface {
	Export(ctx context.Context, req models.ExportRequest) (*models.ExportFile, error)
}

// ExportHandler streams dataset exports.
type ExportHandler struct {
	service exportService
}

func NewExportHandler(svc exportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Export godoc
// @Summary Export a dataset
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param dataset path string true "attendance, payments or children"
// @Param format query string false "csv (default), pdf or xlsx"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /admin/exports/{dataset} [get]
func (h *ExportHandler) Export(c *gin.Context) {
	req := models.ExportRequest{
		Dataset: models.ExportDataset(strings.ToLower(c.Param("dataset"))),
		Format:  models.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(models.ExportFormatCSV)))),
	}
	var ok bool
	if req.From, ok = dateQuery(c, "from"); !ok {
		return
	}
	if req.To, ok = dateQuery(c, "to"); !ok {
		return
	}

	file, err := h.service.Export(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
