package domain

import (
	"fmt"
	"strings"
)

// AgentType identifies one of the pre-configured scout-then-snipe pipelines.
// Each type selects its own set of source fetchers, profit thresholds, and
// verification prompt.
type AgentType string

const (
	AgentCrypto       AgentType = "crypto"
	AgentResale       AgentType = "resale"
	AgentDeals        AgentType = "deals"
	AgentBooks        AgentType = "books"
	AgentCollectibles AgentType = "collectibles"
)

// AllAgentTypes lists every supported agent type.
var AllAgentTypes = []AgentType{
	AgentCrypto,
	AgentResale,
	AgentDeals,
	AgentBooks,
	AgentCollectibles,
}

// ParseAgentType normalizes and validates a user-supplied agent type string.
func ParseAgentType(s string) (AgentType, error) {
	t := AgentType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllAgentTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("domain: unknown agent type %q", s)
}

// Valid reports whether t is a known agent type.
func (t AgentType) Valid() bool {
	_, err := ParseAgentType(string(t))
	return err == nil
}
