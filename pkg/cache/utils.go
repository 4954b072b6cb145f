package cache

import (
	"fmt"
	"strings"
)

// GenerateKey creates a cache key with prefix and ID.
func GenerateKey(prefix string, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

// AgentKey is the cache key holding an agent's latest output.
func AgentKey(agentName string) string {
	return GenerateKey("agent:cache", strings.ToLower(agentName))
}

// AgentLockKey guards a single in-flight tick per agent.
func AgentLockKey(agentName string) string {
	return GenerateKey("agent:lock", strings.ToLower(agentName))
}

const (
	// AlphaKey holds the latest aggregated snapshot.
	AlphaKey = "agent:cache:alpha"
	// HaltedKey holds the emergency halt flag.
	HaltedKey = "system:halted"
	// WhalesKey holds recent whale alerts fed from Kafka.
	WhalesKey = "market:whales"
)
