package report

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"issuerank/internal/errs"
	"issuerank/internal/ranking"
)

const sheetName = "Ranking"

// WriteXLSX exports the ranking as a spreadsheet with one row per issue in rank order.
func WriteXLSX(path string, rep Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return errs.Persistence("prepare spreadsheet", err)
	}

	header := []interface{}{"Rank", "ID", "Severity", "Type", "Title/Message"}
	switch rep.Stats.Strategy {
	case ranking.NameElo:
		header = append(header, "Elo", "Comparisons")
	case ranking.NameScore:
		header = append(header, "Score", "Reasoning")
	default:
		header = append(header, "Comparisons")
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return errs.Persistence("write spreadsheet header", err)
	}

	for i, it := range rep.Items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errs.Persistence("address spreadsheet row", err)
		}
		row := []interface{}{i + 1, it.ID(), severity(it), it.Type(), it.Title()}
		switch rep.Stats.Strategy {
		case ranking.NameElo:
			r, _ := it.Rating()
			row = append(row, r, len(it.Trail()))
		case ranking.NameScore:
			s, _ := it.Score()
			row = append(row, s, it.Reasoning())
		default:
			row = append(row, len(it.Trail()))
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return errs.Persistence(fmt.Sprintf("write spreadsheet row %d", i+1), err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return errs.Persistence("save spreadsheet "+path, err)
	}
	return nil
}

// XLSXExporter writes the spreadsheet as a publication destination.
type XLSXExporter struct {
	Path string
}

func (x XLSXExporter) Name() string { return "xlsx" }

func (x XLSXExporter) Notify(_ context.Context, rep Report) error {
	return WriteXLSX(x.Path, rep)
}
