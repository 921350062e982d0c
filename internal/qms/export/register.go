// Package export builds the NC register spreadsheet required for ISO 9001
// management review.
package export

import (
	"fmt"
	"time"

	"github.com/stratamine/qms/internal/qms/entity"
	"github.com/stratamine/qms/internal/qms/workflow"
	"github.com/xuri/excelize/v2"
)

var registerHeaders = []string{
	"NC Number", "Title", "Source", "Status", "Step", "Risk",
	"Reported By", "Responsible Person", "Department",
	"Due Date", "Closed At", "Declines", "Created At",
}

// BuildNCRegister renders the NC list as a workbook. Caller owns the file.
func BuildNCRegister(siteID string, ncs []entity.NonConformance) (*excelize.File, string, error) {
	f := excelize.NewFile()
	sheet := "NC Register"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, h := range registerHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for rowIdx, nc := range ncs {
		row := rowIdx + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), nc.NCNumber)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), nc.Title)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), nc.Source)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), nc.Status)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), workflow.StepDescription(nc.CurrentStep))
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), nc.RiskClassification)
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), userName(nc.Reporter, nc.ReportedBy))
		f.SetCellValue(sheet, fmt.Sprintf("H%d", row), userName(nc.Responsible, nc.ResponsiblePerson))
		f.SetCellValue(sheet, fmt.Sprintf("I%d", row), departmentName(nc.Department, nc.DepartmentID))
		f.SetCellValue(sheet, fmt.Sprintf("J%d", row), dateOrBlank(nc.DueDate))
		f.SetCellValue(sheet, fmt.Sprintf("K%d", row), dateOrBlank(nc.ClosedAt))
		f.SetCellValue(sheet, fmt.Sprintf("L%d", row), workflow.CountDeclines(nc.WorkflowHistory))
		f.SetCellValue(sheet, fmt.Sprintf("M%d", row), nc.CreatedAt.Format("2006-01-02"))
	}

	// Readable column widths for the text-heavy columns.
	f.SetColWidth(sheet, "A", "A", 18)
	f.SetColWidth(sheet, "B", "B", 40)
	f.SetColWidth(sheet, "G", "I", 20)

	fileName := fmt.Sprintf("nc-register-%s-%s.xlsx", siteID, time.Now().Format("20060102"))
	return f, fileName, nil
}

func userName(u *entity.User, fallback string) string {
	if u != nil {
		return u.Name
	}
	return fallback
}

func departmentName(d *entity.Department, fallback string) string {
	if d != nil {
		return d.Name
	}
	return fallback
}

func dateOrBlank(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
