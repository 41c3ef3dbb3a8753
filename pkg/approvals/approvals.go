// Package approvals is the in-memory human-in-the-loop queue. A caller
// that needs a credential or permission files a request; an administrator
// resolves it exactly once.
package approvals

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// RequestType classifies what the requester needs
type RequestType string

const (
	TypeCredential   RequestType = "credential"
	TypePermission   RequestType = "permission"
	TypeNotification RequestType = "notification"
)

// Status of an approval request
type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
)

var (
	// ErrNotFound is returned for an unknown request id.
	ErrNotFound = errors.New("approval request not found")
	// ErrAlreadyResolved is returned when a request was resolved before.
	ErrAlreadyResolved = errors.New("approval request already resolved")
	// ErrInvalidType is returned for a request type outside the known set.
	ErrInvalidType = errors.New("invalid approval request type")
)

// Request is a single approval entry. Resolution is set exactly once.
type Request struct {
	ID         string      `json:"id"`
	Rationale  string      `json:"rationale"`
	Needs      string      `json:"needs"`
	Type       RequestType `json:"request_type"`
	Status     Status      `json:"status"`
	Resolution string      `json:"resolution,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	ResolvedAt *time.Time  `json:"resolved_at,omitempty"`
}

// Queue is the in-memory approval table. Safe for concurrent use.
type Queue struct {
	mu       sync.Mutex
	requests map[string]*Request
}

// NewQueue creates an empty approval queue
func NewQueue() *Queue {
	return &Queue{requests: make(map[string]*Request)}
}

// Create files a new pending request and returns it
func (q *Queue) Create(rationale, needs string, reqType RequestType) (*Request, error) {
	switch reqType {
	case TypeCredential, TypePermission, TypeNotification:
	default:
		return nil, errors.Wrapf(ErrInvalidType, "%q", reqType)
	}

	req := &Request{
		ID:        uuid.NewString(),
		Rationale: rationale,
		Needs:     needs,
		Type:      reqType,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.requests[req.ID] = req
	return copyRequest(req), nil
}

// Get returns the request with the given id
func (q *Queue) Get(id string) (*Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	req, ok := q.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRequest(req), nil
}

// Resolve marks a pending request resolved. The first resolver wins;
// any later attempt gets ErrAlreadyResolved. Requests are never reopened.
func (q *Queue) Resolve(id, resolution string) (*Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	req, ok := q.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if req.Status != StatusPending {
		return nil, ErrAlreadyResolved
	}

	now := time.Now()
	req.Status = StatusResolved
	req.Resolution = resolution
	req.ResolvedAt = &now
	return copyRequest(req), nil
}

// Pending returns all requests still awaiting resolution
func (q *Queue) Pending() []*Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	var pending []*Request
	for _, req := range q.requests {
		if req.Status == StatusPending {
			pending = append(pending, copyRequest(req))
		}
	}
	return pending
}

func copyRequest(req *Request) *Request {
	clone := *req
	if req.ResolvedAt != nil {
		ts := *req.ResolvedAt
		clone.ResolvedAt = &ts
	}
	return &clone
}
