package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxNodes bounds the number of nodes in one request graph.
const DefaultMaxNodes = 1000

// GraphTooLargeError reports a graph with more nodes than the persister
// accepts. It is raised before any storage I/O.
type GraphTooLargeError struct {
	RequestID string
	Nodes     int
	Limit     int
}

func (e *GraphTooLargeError) Error() string {
	if e.RequestID == "" {
		return fmt.Sprintf("graph has %d nodes > %d limit", e.Nodes, e.Limit)
	}
	return fmt.Sprintf("request %s: graph has %d nodes > %d limit", e.RequestID, e.Nodes, e.Limit)
}

// IsQuotaError returns true if the error is a GraphTooLargeError.
func IsQuotaError(err error) bool {
	var ge *GraphTooLargeError
	return errors.As(err, &ge)
}

// checkNodeQuota returns a GraphTooLargeError when nodes exceeds limit.
// A limit <= 0 disables the check.
func checkNodeQuota(nodes, limit int) error {
	if limit > 0 && nodes > limit {
		return &GraphTooLargeError{Nodes: nodes, Limit: limit}
	}
	return nil
}
