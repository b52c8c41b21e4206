// Package review writes batch results to a workbook for manual donor review.
package review

import (
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/check-match/internal/model"
)

// Sheet names.
const (
	SheetChecks     = "Checks"
	SheetCandidates = "Candidates"
	SheetSearchLog  = "Search Log"
)

var (
	checksHeader     = []string{"Check ID", "File", "Date", "Amount", "Payee", "Memo", "Check Number", "Donor Name", "Candidates", "Error"}
	candidatesHeader = []string{"Check ID", "File", "Donor ID", "Display Name"}
	searchLogHeader  = []string{"Check ID", "File", "Candidate", "Label", "Query", "URL", "Result Count", "Error", "Note"}
)

// Entry is the outcome of one check in a batch. Payload is nil when Err is set.
type Entry struct {
	CheckID string
	File    string
	Payload *model.Payload
	Err     error
}

// Build lays out entries across the Checks, Candidates and Search Log sheets
// in the order given.
func Build(entries []Entry) (*xlsx.File, error) {
	f := xlsx.NewFile()

	checks, err := addSheet(f, SheetChecks, checksHeader)
	if err != nil {
		return nil, err
	}
	candidates, err := addSheet(f, SheetCandidates, candidatesHeader)
	if err != nil {
		return nil, err
	}
	searchLog, err := addSheet(f, SheetSearchLog, searchLogHeader)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		if e.Err != nil || e.Payload == nil {
			msg := "no result"
			if e.Err != nil {
				msg = e.Err.Error()
			}
			addRow(checks, e.CheckID, e.File, "", "", "", "", "", "", "", msg)
			continue
		}

		p := e.Payload
		addRow(checks,
			e.CheckID, e.File,
			p.Fields.Date, p.Fields.Amount, p.Fields.Payee, p.Fields.Memo,
			p.Fields.CheckNumber, p.Fields.DonorName,
			strconv.Itoa(len(p.Candidates)), "",
		)
		for _, c := range p.Candidates {
			addRow(candidates, e.CheckID, e.File, c.ID, c.Name)
		}
		for _, a := range p.SearchLog {
			count := ""
			if a.ResultCount != nil {
				count = strconv.Itoa(*a.ResultCount)
			}
			addRow(searchLog, e.CheckID, e.File, a.Candidate, a.Label, a.Query, a.URL, count, a.Error, a.Note)
		}
	}

	return f, nil
}

// Save builds the workbook and writes it to path.
func Save(path string, entries []Entry) error {
	f, err := Build(entries)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "review: save %s", path)
	}
	return nil
}

// Write builds the workbook and streams it to w.
func Write(w io.Writer, entries []Entry) error {
	f, err := Build(entries)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "review: write workbook")
	}
	return nil
}

func addSheet(f *xlsx.File, name string, header []string) (*xlsx.Sheet, error) {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "review: add sheet %s", name)
	}
	addRow(sheet, header...)
	return sheet, nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
