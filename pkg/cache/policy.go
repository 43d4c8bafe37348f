package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Priority orders entries for eviction under memory pressure. It never affects correctness.
type Priority int

const (
	PriorityLow Priority = iota - 1
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority accepts "low", "normal" or "high" in any case. An empty string is Normal.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "", "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	default:
		return PriorityNormal, errors.Newf("unknown cache priority %q", s)
	}
}

// ExpirationMode selects how an entry's deadline is computed.
type ExpirationMode int

const (
	// AbsoluteExpiration fixes the deadline at write time.
	AbsoluteExpiration ExpirationMode = iota + 1
	// SlidingExpiration pushes the deadline forward on every read.
	SlidingExpiration
)

// EntryPolicy describes how long an entry lives and how eagerly it may be evicted.
// Exactly one expiration mode is active.
type EntryPolicy struct {
	Mode     ExpirationMode
	TTL      time.Duration
	Priority Priority
}

// Absolute returns a policy expiring ttl after the write.
func Absolute(ttl time.Duration) EntryPolicy {
	return EntryPolicy{Mode: AbsoluteExpiration, TTL: ttl, Priority: PriorityNormal}
}

// Sliding returns a policy expiring ttl after the last read or write.
func Sliding(ttl time.Duration) EntryPolicy {
	return EntryPolicy{Mode: SlidingExpiration, TTL: ttl, Priority: PriorityNormal}
}

// WithPriority returns a copy of the policy with the given priority.
func (p EntryPolicy) WithPriority(priority Priority) EntryPolicy {
	p.Priority = priority
	return p
}

// IsSliding reports whether reads renew the entry.
func (p EntryPolicy) IsSliding() bool {
	return p.Mode == SlidingExpiration
}

// Validate rejects policies without a single positive expiration.
func (p EntryPolicy) Validate() error {
	if p.Mode != AbsoluteExpiration && p.Mode != SlidingExpiration {
		return errors.Newf("entry policy: unknown expiration mode %d", int(p.Mode))
	}
	if p.TTL <= 0 {
		return errors.Newf("entry policy: ttl must be positive, got %s", p.TTL)
	}
	if p.Priority < PriorityLow || p.Priority > PriorityHigh {
		return errors.Newf("entry policy: unknown priority %d", int(p.Priority))
	}
	return nil
}

// deadline is the expiry of an entry touched at now.
func (p EntryPolicy) deadline(now time.Time) time.Time {
	return now.Add(p.TTL)
}
