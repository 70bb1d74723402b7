package fetcher

import (
	"math/rand"
	"sync"
)

// AgentPool is the user-agent rotation. The first entry is the canonical
// agent used for robots.txt matching; per-request agents are drawn uniformly
// at random.
type AgentPool struct {
	mu     sync.Mutex
	agents []string
	rng    *rand.Rand
}

// NewAgentPool creates an AgentPool from the configured rotation list.
func NewAgentPool(agents []string) *AgentPool {
	return &AgentPool{
		agents: agents,
		rng:    rand.New(rand.NewSource(rand.Int63())),
	}
}

// Default returns the canonical agent.
func (p *AgentPool) Default() string {
	if len(p.agents) == 0 {
		return "ratcrawler/1.0"
	}
	return p.agents[0]
}

// Random returns a uniformly random agent from the pool.
func (p *AgentPool) Random() string {
	if len(p.agents) == 0 {
		return p.Default()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.agents[p.rng.Intn(len(p.agents))]
}
