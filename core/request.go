package core

import (
	"time"

	"github.com/google/uuid"
)

// Sensitivity is the caller-declared data sensitivity of a request.
type Sensitivity string

const (
	SensitivityUnspecified  Sensitivity = ""
	SensitivityPublic       Sensitivity = "public"
	SensitivityInternal     Sensitivity = "internal"
	SensitivityConfidential Sensitivity = "confidential"
	SensitivityRestricted   Sensitivity = "restricted"
)

// Request is the immutable input to the routing engine. It is created
// once per inbound call and never mutated afterwards.
type Request struct {
	ID             string        `json:"id"`
	Text           string        `json:"text"`
	Budget         float64       `json:"budget,omitempty"`          // 0 = unbounded
	LatencyCeiling time.Duration `json:"latency_ceiling,omitempty"` // 0 = none
	Sensitivity    Sensitivity   `json:"sensitivity,omitempty"`
	Preferred      []string      `json:"preferred,omitempty"` // caller-preferred executor ids
	CreatedAt      time.Time     `json:"created_at"`
}

// RequestOption configures a Request at construction time.
type RequestOption func(*Request)

// WithBudget declares a cost budget for the request.
func WithBudget(budget float64) RequestOption {
	return func(r *Request) { r.Budget = budget }
}

// WithLatencyCeiling declares a latency ceiling for the request.
func WithLatencyCeiling(d time.Duration) RequestOption {
	return func(r *Request) { r.LatencyCeiling = d }
}

// WithSensitivity declares the data sensitivity level.
func WithSensitivity(s Sensitivity) RequestOption {
	return func(r *Request) { r.Sensitivity = s }
}

// WithPreferred declares caller-preferred executor ids.
func WithPreferred(ids ...string) RequestOption {
	return func(r *Request) { r.Preferred = ids }
}

// NewRequest creates a request with a generated id.
func NewRequest(text string, opts ...RequestOption) *Request {
	r := &Request{
		ID:        uuid.New().String(),
		Text:      text,
		CreatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
