package workflow

import (
	"context"
	"fmt"
	"io"
	"strings"

	"bitbucket.org/mmdatafocus/retailcheck_backend/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ExportRow is one run's aggregated line in the export workbook.
type ExportRow struct {
	ShopId       int
	Date         string
	Status       models.RunStatus
	CashTotal    decimal.Decimal
	NonCashTotal decimal.Decimal
	DeltaTotal   decimal.Decimal
	DeltaNotes   string
	Attachments  int
	StepsOk      int
	StepsSkipped int
}

// cash/noncash classification by step-code token. Codes are authored with
// these tokens in the templates ("cash_open", "card_total", ...).
var cashTokens = []string{"cash", "нал"}
var nonCashTokens = []string{"card", "noncash", "acquiring", "безнал"}

func classifyStepCode(code string) (cash bool, nonCash bool) {
	lower := strings.ToLower(code)
	for _, t := range nonCashTokens {
		if strings.Contains(lower, t) {
			return false, true
		}
	}
	for _, t := range cashTokens {
		if strings.Contains(lower, t) {
			return true, false
		}
	}
	return false, false
}

// BuildExportRows aggregates runs in [dateFrom, dateTo] (shopId 0 = all
// shops) into one row per run: cash and non-cash value totals, accumulated
// delta, over-threshold comments, attachment count.
func BuildExportRows(ctx context.Context, shopId int, dateFrom string, dateTo string) ([]*ExportRow, error) {
	runs, err := models.ListRunsForRange(ctx, shopId, dateFrom, dateTo)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}

	runIds := make([]int, 0, len(runs))
	for _, r := range runs {
		runIds = append(runIds, r.ID)
	}
	steps, err := models.ListRunStepsForRuns(ctx, runIds)
	if err != nil {
		return nil, err
	}
	stepsByRun := make(map[int][]*models.RunStep)
	for _, s := range steps {
		stepsByRun[s.RunId] = append(stepsByRun[s.RunId], s)
	}

	rows := make([]*ExportRow, 0, len(runs))
	for _, run := range runs {
		row := &ExportRow{
			ShopId:     run.ShopId,
			Date:       run.Date,
			Status:     run.Status,
			DeltaTotal: run.DeltaTotal,
		}
		var notes []string
		for _, s := range stepsByRun[run.ID] {
			switch s.Status {
			case models.StepStatusOk:
				row.StepsOk++
			case models.StepStatusSkipped:
				row.StepsSkipped++
			}
			if s.ValueNumber != nil {
				cash, nonCash := classifyStepCode(s.StepCode)
				if cash {
					row.CashTotal = row.CashTotal.Add(*s.ValueNumber)
				} else if nonCash {
					row.NonCashTotal = row.NonCashTotal.Add(*s.ValueNumber)
				}
			}
			if !s.Delta.IsZero() && s.Comment != "" {
				notes = append(notes, fmt.Sprintf("%s: %s (%s)", s.StepCode, s.Comment, s.Delta.StringFixed(2)))
			}
		}
		row.DeltaNotes = strings.Join(notes, "; ")

		atts, err := models.ListAttachments(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		row.Attachments = len(atts)

		rows = append(rows, row)
	}
	return rows, nil
}

// WriteExportXLSX renders rows into a workbook and writes it to w.
func WriteExportXLSX(rows []*ExportRow, w io.Writer) error {
	f := excelize.NewFile()
	sheetName := "Sheet1"
	_, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}

	// Add headers
	headers := []string{"Shop", "Date", "Status", "Cash", "NonCash", "DeltaTotal", "DeltaNotes", "Attachments", "StepsOk", "StepsSkipped"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(sheetName, cell, h)
	}

	// Add data
	for i, r := range rows {
		values := []interface{}{
			r.ShopId, r.Date, string(r.Status),
			r.CashTotal.InexactFloat64(), r.NonCashTotal.InexactFloat64(),
			r.DeltaTotal.InexactFloat64(), r.DeltaNotes,
			r.Attachments, r.StepsOk, r.StepsSkipped,
		}
		for j, v := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			f.SetCellValue(sheetName, cell, v)
		}
	}

	return f.Write(w)
}
