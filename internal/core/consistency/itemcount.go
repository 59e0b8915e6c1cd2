package consistency

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedReplicationLine is returned when a replication status line is not "<label> <code>".
var ErrMalformedReplicationLine = errors.New("malformed replication status line")

// DefaultReplicationOKCodes are the agreement status codes tolerated by default:
// 0 is a clean update, 1 is a transient busy replica.
var DefaultReplicationOKCodes = []int{0, 1}

// ReplicationPolicy lists the replication status codes that count as healthy.
type ReplicationPolicy struct {
	OKCodes []int
}

// DefaultReplicationPolicy returns the policy built from DefaultReplicationOKCodes.
func DefaultReplicationPolicy() ReplicationPolicy {
	codes := make([]int, len(DefaultReplicationOKCodes))
	copy(codes, DefaultReplicationOKCodes)
	return ReplicationPolicy{OKCodes: codes}
}

func (p ReplicationPolicy) allows(code int) bool {
	for _, ok := range p.OKCodes {
		if ok == code {
			return true
		}
	}
	return false
}

// ItemCountOK judges the per-node summaries of one check according to its policy.
// An empty summary list never disagrees with itself and passes.
func ItemCountOK(spec CheckSpec, summaries []Value, policy ReplicationPolicy) (bool, error) {
	if len(summaries) == 0 {
		return true, nil
	}
	switch spec.Policy {
	case ZeroTolerance:
		return allZero(summaries), nil
	case ReplicationCodes:
		return replicationHealthy(summaries, policy)
	default:
		return allEqual(summaries), nil
	}
}

func allEqual(summaries []Value) bool {
	first := summaries[0]
	for _, v := range summaries {
		if v.IsAbsent() || !v.Equal(first) {
			return false
		}
	}
	return true
}

func allZero(summaries []Value) bool {
	if !allEqual(summaries) {
		return false
	}
	n, ok := summaries[0].Int()
	return ok && n == 0
}

func replicationHealthy(summaries []Value, policy ReplicationPolicy) (bool, error) {
	healthy := true
	for _, v := range summaries {
		if v.IsAbsent() {
			healthy = false
			continue
		}
		text, ok := v.Text()
		if !ok {
			return false, fmt.Errorf("%w: expected status text, got %q", ErrMalformedReplicationLine, v.String())
		}
		codes, err := ParseReplicationStatus(text)
		if err != nil {
			return false, err
		}
		for _, code := range codes {
			if !policy.allows(code) {
				healthy = false
			}
		}
	}
	return healthy, nil
}

// ParseReplicationStatus extracts the status code of every "<label> <code>" line.
// Blank lines are skipped.
func ParseReplicationStatus(text string) ([]int, error) {
	var codes []int
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: %q", ErrMalformedReplicationLine, line)
		}
		code, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %q: status code is not a number", ErrMalformedReplicationLine, line)
		}
		codes = append(codes, code)
	}
	return codes, nil
}
