package config

import "time"

// RateLimitProfile describes a fixed-window request limit.  Max requests are
// counted per key within Window; the counter resets when the window elapses.
// KeyStrategy controls how the counter key is derived from the request:
// "ip" for anonymous traffic, "user" for authenticated traffic (falling back
// to IP), and "ip_account" for credential endpoints where both the caller IP
// and, when known, the targeted account share one counter.
type RateLimitProfile struct {
	Enabled     bool
	Max         int
	Window      time.Duration
	KeyStrategy string
	Prefix      string
}

// RateLimits bundles the three limiter profiles the router wires up.
type RateLimits struct {
	Public    RateLimitProfile // unauthenticated endpoints (tightest general profile)
	Sensitive RateLimitProfile // login, password reset (tightest, composite key)
	General   RateLimitProfile // authenticated resource endpoints (generous)
}

// LoadRateLimits builds the limiter profiles from environment variables.
// Defaults follow the documented contract: public 20/10min, sensitive
// 8/10min, authenticated-general 200/10min.
func LoadRateLimits() RateLimits {
	window := envDur("RATE_LIMIT_WINDOW", 10*time.Minute)
	enabled := envStr("RATE_LIMIT_ENABLED", "true") == "true"
	rl := RateLimits{
		Public: RateLimitProfile{
			Enabled:     enabled,
			Max:         envInt("RATE_LIMIT_PUBLIC_MAX", 20),
			Window:      window,
			KeyStrategy: "ip",
			Prefix:      "rl:public",
		},
		Sensitive: RateLimitProfile{
			Enabled:     enabled,
			Max:         envInt("RATE_LIMIT_SENSITIVE_MAX", 8),
			Window:      window,
			KeyStrategy: "ip_account",
			Prefix:      "rl:sensitive",
		},
		General: RateLimitProfile{
			Enabled:     enabled,
			Max:         envInt("RATE_LIMIT_GENERAL_MAX", 200),
			Window:      window,
			KeyStrategy: "user",
			Prefix:      "rl:general",
		},
	}
	for _, p := range []*RateLimitProfile{&rl.Public, &rl.Sensitive, &rl.General} {
		if p.Max < 1 {
			p.Max = 1
		}
		if p.Window <= 0 {
			p.Window = 10 * time.Minute
		}
	}
	return rl
}
