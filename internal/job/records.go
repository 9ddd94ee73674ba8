package job

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type Records struct {
	Items []*Record
}

func NewRecords(items ...*Record) *Records {
	return &Records{Items: items}
}

func (r *Records) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Items)
}

func (r *Records) FindByID(id string) *Record {
	for _, rec := range r.Items {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

// Keep retains records for which keep returns true, preserving order.
// It returns the dropped records.
func (r *Records) Keep(keep func(*Record) bool) []*Record {
	kept := r.Items[:0:0]
	var dropped []*Record
	for _, rec := range r.Items {
		if keep(rec) {
			kept = append(kept, rec)
			continue
		}
		dropped = append(dropped, rec)
	}
	r.Items = kept
	return dropped
}

func (r *Records) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "records_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// ReportByCompany groups records by company with their score details.
func (r *Records) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, rec := range r.Items {
		entry := map[string]string{
			"title":    rec.Title,
			"url":      rec.URL,
			"location": rec.Location,
			"source":   rec.Source,
		}
		if rec.Score != nil {
			entry["score"] = fmt.Sprintf("%.1f", *rec.Score)
		}
		if len(rec.WhyMatched) > 0 {
			entry["why_matched"] = strings.Join(rec.WhyMatched, "; ")
		}
		report[rec.Company] = append(report[rec.Company], entry)
	}
	return report
}
