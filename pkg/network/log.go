package network

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

var (
	ErrEmptyLog       = errors.New("network log contains no records")
	ErrNoMainDocument = errors.New("network log has no document request")
)

// Log is one page load's network activity. ID identifies the log for
// memoization; two logs with the same ID must hold the same records.
type Log struct {
	ID      uuid.UUID `json:"id"`
	Records []*Record `json:"records"`
}

// NewLog wraps records in a Log with a fresh identity
func NewLog(records []*Record) *Log {
	return &Log{ID: uuid.New(), Records: records}
}

// ReadLog decodes either {"records": [...]} or a bare array of records.
func ReadLog(r io.Reader) (*Log, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read network log: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyLog
	}

	var records []*Record
	if data[0] == '[' {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decode network log: %w", err)
		}
	} else {
		var wrapper struct {
			ID      string    `json:"id"`
			Records []*Record `json:"records"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("decode network log: %w", err)
		}
		records = wrapper.Records
		if id, err := uuid.Parse(wrapper.ID); err == nil {
			return &Log{ID: id, Records: records}, nil
		}
	}
	return NewLog(records), nil
}
