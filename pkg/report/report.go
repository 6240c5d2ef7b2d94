// Package report renders import outcomes for humans and machines. The
// table format is for terminals, JSON emits one object per line so a
// batch can be streamed into downstream tooling.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/partsync/partsync/pkg/parts"
)

// Format selects an output representation.
type Format string

const (
	// FormatTable renders a terminal table.
	FormatTable Format = "table"
	// FormatJSON renders one JSON object per outcome.
	FormatJSON Format = "json"
)

// Formatter renders a batch of outcomes.
type Formatter interface {
	Render(w io.Writer, outcomes []parts.ImportOutcome) error
}

// New returns the formatter for a format name, defaulting to the table.
func New(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	default:
		return &TableFormatter{}
	}
}

// Summary aggregates a batch by status.
type Summary struct {
	Total     int
	Created   int
	Updated   int
	UpToDate  int
	Partial   int
	Skipped   int
	Failed    int
	Conflicts int
}

// Summarize counts outcomes per status.
func Summarize(outcomes []parts.ImportOutcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case parts.StatusCreated:
			s.Created++
		case parts.StatusUpdated:
			s.Updated++
		case parts.StatusUpToDate:
			s.UpToDate++
		case parts.StatusPartial:
			s.Partial++
		case parts.StatusSkipped:
			s.Skipped++
		case parts.StatusFailed:
			s.Failed++
		}
		s.Conflicts += len(o.Conflicts)
	}
	return s
}

// String renders the one-line batch summary.
func (s Summary) String() string {
	return fmt.Sprintf("%d items: %d created, %d updated, %d up-to-date, %d partial, %d skipped, %d failed",
		s.Total, s.Created, s.Updated, s.UpToDate, s.Partial, s.Skipped, s.Failed)
}

// TableFormatter renders a terminal table plus the summary line.
type TableFormatter struct{}

// Render implements Formatter.
func (f *TableFormatter) Render(w io.Writer, outcomes []parts.ImportOutcome) error {
	table := tablewriter.NewTable(w)
	table.Header("IDENTIFIER", "STATUS", "PART", "OPS", "DETAIL")

	for _, o := range outcomes {
		if err := table.Append(o.Identifier, o.Status.String(), o.PartRef,
			fmt.Sprintf("%d", len(o.Executed)), detail(o)); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, Summarize(outcomes).String())
	return err
}

// detail picks the one line worth showing per outcome.
func detail(o parts.ImportOutcome) string {
	if o.Reason != "" {
		return o.Reason
	}
	if len(o.Conflicts) > 0 {
		fields := make([]string, 0, len(o.Conflicts))
		for _, c := range o.Conflicts {
			fields = append(fields, c.Field)
		}
		return "conflicts: " + strings.Join(fields, ", ")
	}
	return ""
}

// JSONFormatter renders one JSON object per outcome (JSON Lines).
type JSONFormatter struct{}

// outcomeRecord is the stable wire shape of one outcome.
type outcomeRecord struct {
	Identifier string           `json:"identifier"`
	Status     string           `json:"status"`
	Reason     string           `json:"reason,omitempty"`
	PartRef    string           `json:"part_ref,omitempty"`
	Executed   []executedRecord `json:"executed,omitempty"`
	Conflicts  []conflictRecord `json:"conflicts,omitempty"`
}

type executedRecord struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
	Error       string `json:"error,omitempty"`
}

type conflictRecord struct {
	Key              string `json:"key"`
	Field            string `json:"field"`
	ChosenSupplier   string `json:"chosen_supplier"`
	ChosenValue      string `json:"chosen_value"`
	RejectedSupplier string `json:"rejected_supplier"`
	RejectedValue    string `json:"rejected_value"`
}

// Render implements Formatter.
func (f *JSONFormatter) Render(w io.Writer, outcomes []parts.ImportOutcome) error {
	enc := json.NewEncoder(w)
	for _, o := range outcomes {
		rec := outcomeRecord{
			Identifier: o.Identifier,
			Status:     o.Status.String(),
			Reason:     o.Reason,
			PartRef:    o.PartRef,
		}
		for _, e := range o.Executed {
			rec.Executed = append(rec.Executed, executedRecord{
				Index: e.Index, Description: e.Description, Error: e.Err,
			})
		}
		for _, c := range o.Conflicts {
			rec.Conflicts = append(rec.Conflicts, conflictRecord{
				Key:              c.Key.String(),
				Field:            c.Field,
				ChosenSupplier:   c.ChosenSupplier,
				ChosenValue:      c.ChosenValue,
				RejectedSupplier: c.RejectedSupplier,
				RejectedValue:    c.RejectedValue,
			})
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}
