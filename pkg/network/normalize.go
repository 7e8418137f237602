package network

import (
	"fmt"
	"sort"
)

// Normalize returns a cleaned, ordered copy of the log's records:
//   - records without a URL are dropped
//   - duplicate request IDs keep the last entry
//   - records are ordered by StartTime, ties keep log order
//   - redirect chains are linked through RedirectSource/RedirectDestination
//
// The input records are not modified.
func Normalize(log *Log) ([]*Record, error) {
	if log == nil || len(log.Records) == 0 {
		return nil, ErrEmptyLog
	}

	lastIndex := make(map[string]int, len(log.Records))
	for i, rec := range log.Records {
		if rec == nil || rec.URL == "" {
			continue
		}
		if rec.RequestID == "" {
			continue
		}
		lastIndex[rec.RequestID] = i
	}

	records := make([]*Record, 0, len(log.Records))
	for i, rec := range log.Records {
		if rec == nil || rec.URL == "" {
			continue
		}
		if rec.RequestID != "" && lastIndex[rec.RequestID] != i {
			continue
		}
		cp := *rec
		cp.RedirectSource = nil
		cp.RedirectDestination = nil
		if cp.RequestID == "" {
			cp.RequestID = fmt.Sprintf("anon-%d", i)
		}
		cp.origin, cp.scheme = parseOrigin(cp.URL)
		if cp.EndTime < cp.StartTime {
			cp.EndTime = cp.StartTime
		}
		if cp.ResponseHeadersEndTime < cp.StartTime {
			cp.ResponseHeadersEndTime = cp.StartTime
		}
		records = append(records, &cp)
	}
	if len(records) == 0 {
		return nil, ErrEmptyLog
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartTime < records[j].StartTime
	})

	byID := make(map[string]*Record, len(records))
	for _, rec := range records {
		byID[rec.RequestID] = rec
	}
	for _, rec := range records {
		if rec.RedirectSourceID == "" {
			continue
		}
		src, ok := byID[rec.RedirectSourceID]
		if !ok || src == rec || src.RedirectDestination != nil {
			continue
		}
		src.RedirectDestination = rec
		rec.RedirectSource = src
	}

	return records, nil
}

// MainDocument returns the final destination of the first document
// request's redirect chain.
func MainDocument(records []*Record) (*Record, error) {
	first := firstDocument(records)
	if first == nil {
		return nil, ErrNoMainDocument
	}
	doc := first
	for seen := 0; doc.RedirectDestination != nil && seen <= len(records); seen++ {
		doc = doc.RedirectDestination
	}
	return doc, nil
}

// Root returns the first request of the main document's redirect chain,
// the request every other request transitively depends on.
func Root(records []*Record) (*Record, error) {
	first := firstDocument(records)
	if first == nil {
		return nil, ErrNoMainDocument
	}
	root := first
	for seen := 0; root.RedirectSource != nil && seen <= len(records); seen++ {
		root = root.RedirectSource
	}
	return root, nil
}

func firstDocument(records []*Record) *Record {
	for _, rec := range records {
		if rec.IsDocument() {
			return rec
		}
	}
	return nil
}
