package provider

import "strings"

// Status is the canonical transaction state
type Status string

const (
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
)

// IsFinal reports whether the status will not change any more
func (s Status) IsFinal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// StatusMap maps a vendor's status vocabulary onto the canonical states.
// Keys are matched case-insensitively.
type StatusMap map[string]Status

// NewStatusMap builds a StatusMap, upper-casing every key
func NewStatusMap(entries map[string]Status) StatusMap {
	m := make(StatusMap, len(entries))
	for token, status := range entries {
		m[strings.ToUpper(strings.TrimSpace(token))] = status
	}
	return m
}

// Normalize maps token to a canonical status. Unknown tokens are pending.
func (m StatusMap) Normalize(token string) Status {
	if status, ok := m[strings.ToUpper(strings.TrimSpace(token))]; ok {
		return status
	}
	return StatusPending
}
