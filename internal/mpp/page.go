package mpp

import "encoding/json"

// Page is one page of the registry's /api/v1/mpps/ listing.
type Page struct {
	// Next is the fully qualified URL of the following page, nil on the last one.
	Next     *string
	Previous *string
	// Count is the total number of matches across all pages.
	Count   int
	Results []Record
}

// ParsePage extracts a Page from a decoded listing response. A failure in
// any result fails the whole page.
func ParsePage(raw map[string]json.RawMessage) (Page, error) {
	var (
		p       Page
		results []map[string]json.RawMessage
	)
	d := decoder{fields: raw}
	d.value("results", &results)
	d.value("next", &p.Next)
	d.value("previous", &p.Previous)
	d.value("count", &p.Count)
	if d.err != nil {
		return Page{}, d.err
	}

	p.Results = make([]Record, 0, len(results))
	for _, item := range results {
		rec, err := ParseRecord(item)
		if err != nil {
			return Page{}, err
		}
		p.Results = append(p.Results, rec)
	}
	return p, nil
}
