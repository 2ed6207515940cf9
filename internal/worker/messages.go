package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	KindStandardize = "standardize"
	KindMatch       = "match"

	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// errMalformed marks messages that can never be processed.
var errMalformed = errors.New("malformed message")

// Request is the body of a queued message.
type Request struct {
	RequestID string `json:"request_id"`
	Kind      string `json:"kind"`

	// standardize
	Site    string   `json:"site,omitempty"`
	Owner   string   `json:"owner,omitempty"`
	Phrases []string `json:"phrases,omitempty"`

	// match
	Requirements   []string `json:"requirements,omitempty"`
	Candidates     []string `json:"candidates,omitempty"`
	JobOwner       string   `json:"job_owner,omitempty"`
	CandidateOwner string   `json:"candidate_owner,omitempty"`
}

// Response is published to the results exchange for every request.
type Response struct {
	RequestID string    `json:"request_id"`
	Status    string    `json:"status"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func decodeRequest(body []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	if req.RequestID == "" {
		return &req, fmt.Errorf("%w: request_id is required", errMalformed)
	}

	switch req.Kind {
	case KindStandardize:
		if req.Site == "" {
			return &req, fmt.Errorf("%w: site is required", errMalformed)
		}
	case KindMatch:
	default:
		return &req, fmt.Errorf("%w: unknown kind %q", errMalformed, req.Kind)
	}

	return &req, nil
}
