package admin

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/workpulse/survey/internal/models"
	"github.com/workpulse/survey/internal/web"
	"github.com/workpulse/survey/pkg/response"
)

// MIMEXLSX is the content type of the export download.
const MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sheet names in the export workbook.
const (
	ResponsesSheet   = "Responses"
	DepartmentsSheet = "Departments"
)

// ResponsesHeader is the first row of the responses sheet.
var ResponsesHeader = []string{
	"ID", "Submitted", "Name", "Department", "Age", "Future state", "Emotion impact",
	"Obstacles", "Solution", "Help channel", "Avoid", "Prefer",
}

var responsesWidths = []float64{8, 20, 20, 20, 6, 30, 30, 30, 30, 20, 30, 30}

// Export handles GET /admin/export.xlsx: every stored response plus the department breakdown.
func (h *Handler) Export(c *gin.Context) {
	ctx := c.Request.Context()

	all, err := h.repo.All(ctx)
	if err != nil {
		h.fail(c, "load responses", err)
		return
	}
	departments, err := h.repo.CountByDepartment(ctx)
	if err != nil {
		h.fail(c, "count departments", err)
		return
	}

	data, err := BuildWorkbook(all, departments, h.loc)
	if err != nil {
		h.logger.Error("build export workbook", zap.Error(err))
		if response.WantsJSON(c) {
			response.Internal(c, "failed to build export")
			return
		}
		c.HTML(http.StatusInternalServerError, web.ErrorTemplate, web.ErrorPage{
			Status:  http.StatusInternalServerError,
			Message: "The export could not be generated.",
		})
		return
	}

	filename := fmt.Sprintf("survey-responses-%s.xlsx", h.now().In(h.loc).Format("20060102-150405"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, MIMEXLSX, data)
}

// BuildWorkbook renders responses and department counts as an XLSX file.
// Timestamps are written as text in loc so spreadsheet apps do not shift them.
func BuildWorkbook(responses []models.SurveyResponse, departments []models.DepartmentCount, loc *time.Location) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ResponsesSheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeHeader(f, ResponsesSheet, ResponsesHeader, responsesWidths, headerStyle); err != nil {
		return nil, err
	}
	for i, r := range responses {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{
			r.ID,
			r.CreatedAt.In(loc).Format("2006-01-02 15:04:05"),
			r.Name,
			r.Department,
			r.Age,
			r.FutureState,
			r.EmotionImpact,
			strings.Join(r.Obstacles, "; "),
			r.Solution,
			r.HelpChannel,
			r.Avoid,
			r.Prefer,
		}
		if err := f.SetSheetRow(ResponsesSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write response %d: %w", r.ID, err)
		}
	}

	if _, err := f.NewSheet(DepartmentsSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := writeHeader(f, DepartmentsSheet, []string{"Department", "Responses"}, []float64{30, 12}, headerStyle); err != nil {
		return nil, err
	}
	for i, d := range departments {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(DepartmentsSheet, cell, &[]interface{}{d.Department, d.Count}); err != nil {
			return nil, fmt.Errorf("write department %q: %w", d.Department, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, widths []float64, style int) error {
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("set header %s: %w", cell, err)
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if i < len(widths) {
			if err := f.SetColWidth(sheet, col, col, widths[i]); err != nil {
				return fmt.Errorf("set column width: %w", err)
			}
		}
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}
