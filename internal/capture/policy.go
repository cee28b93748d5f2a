package capture

import (
	"time"

	"github.com/benvon/smart-todo-capture/internal/models"
)

// DefaultInterval is the periodic flush interval for channels without a policy
const DefaultInterval = 30 * time.Second

// FlushPolicy controls when a session's buffer is handed to the dispatcher
type FlushPolicy struct {
	// Interval is the periodic flush interval; zero disables it
	Interval time.Duration `koanf:"interval"`
	// Silence flushes once no fragment has been accepted for this long; zero disables it
	Silence time.Duration `koanf:"silence"`
	// MinFragmentLength ignores shorter fragments (counted in runes)
	MinFragmentLength int `koanf:"min_fragment_length"`
	// FlushOnEnd dispatches the remaining buffer when the session ends
	FlushOnEnd bool `koanf:"flush_on_end"`
}

// Policies maps a channel to its flush policy
type Policies map[models.TaskSource]FlushPolicy

// DefaultPolicies returns the built-in per-channel policies
func DefaultPolicies() Policies {
	return Policies{
		models.TaskSourceMeet:       {Interval: DefaultInterval},
		models.TaskSourceGoogleMeet: {Interval: DefaultInterval},
		models.TaskSourceZoom:       {Interval: DefaultInterval, Silence: 5 * time.Second, MinFragmentLength: 4},
		models.TaskSourceSlack:      {Interval: 2 * time.Minute},
		models.TaskSourceLinkedIn:   {Interval: 2 * time.Minute},
		models.TaskSourceBotRecall:  {Interval: DefaultInterval, FlushOnEnd: true},
	}
}

// For returns the policy for channel, falling back to the periodic default
func (p Policies) For(channel models.TaskSource) FlushPolicy {
	if policy, ok := p[channel]; ok {
		return policy
	}
	return FlushPolicy{Interval: DefaultInterval}
}

// Merge returns a copy of p with overrides applied on top
func (p Policies) Merge(overrides Policies) Policies {
	out := make(Policies, len(p)+len(overrides))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
