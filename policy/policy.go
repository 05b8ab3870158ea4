package policy

import (
	"context"
	"strings"
)

// Approval modes for high-risk actions.
const (
	ModeAsk  = "ask"  // pause for a human decision (default)
	ModeAuto = "auto" // execute without asking
	ModeDeny = "deny" // refuse high-risk actions outright
)

// DefaultHighRiskKeywords mark a goal as high risk.
var DefaultHighRiskKeywords = []string{"delete", "offboard", "remove", "offload"}

// Policy holds the rules applied to every request.
type Policy struct {
	Mode             string
	AllowList        []string // actions permitted; empty permits all
	BlockList        []string // actions refused; wins over AllowList
	HighRiskKeywords []string
	BlockedApps      []string
	Constraints      []string // free text rules echoed into plan summaries
}

// Config is the serialisable form of Policy.
type Config struct {
	Mode             string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowList        []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	BlockList        []string `json:"block,omitempty" yaml:"block,omitempty"`
	HighRiskKeywords []string `json:"highRiskKeywords,omitempty" yaml:"highRiskKeywords,omitempty"`
	BlockedApps      []string `json:"blockedApps,omitempty" yaml:"blockedApps,omitempty"`
	Constraints      []string `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// ToConfig converts p to its serialisable form.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	return &Config{
		Mode:             p.Mode,
		AllowList:        append([]string(nil), p.AllowList...),
		BlockList:        append([]string(nil), p.BlockList...),
		HighRiskKeywords: append([]string(nil), p.HighRiskKeywords...),
		BlockedApps:      append([]string(nil), p.BlockedApps...),
		Constraints:      append([]string(nil), p.Constraints...),
	}
}

// FromConfig builds a Policy, filling defaults for an empty mode or keyword list.
func FromConfig(c *Config) *Policy {
	if c == nil {
		c = &Config{}
	}
	ret := &Policy{
		Mode:             strings.ToLower(strings.TrimSpace(c.Mode)),
		AllowList:        append([]string(nil), c.AllowList...),
		BlockList:        append([]string(nil), c.BlockList...),
		HighRiskKeywords: append([]string(nil), c.HighRiskKeywords...),
		BlockedApps:      append([]string(nil), c.BlockedApps...),
		Constraints:      append([]string(nil), c.Constraints...),
	}
	if ret.Mode == "" {
		ret.Mode = ModeAsk
	}
	if len(ret.HighRiskKeywords) == 0 {
		ret.HighRiskKeywords = append([]string(nil), DefaultHighRiskKeywords...)
	}
	return ret
}

// IsAllowed evaluates BlockList then AllowList, case-insensitively.
func (p *Policy) IsAllowed(action string) bool {
	if p == nil {
		return true
	}
	if containsFold(p.BlockList, action) {
		return false
	}
	if len(p.AllowList) == 0 {
		return true
	}
	return containsFold(p.AllowList, action)
}

// IsHighRisk reports whether any high-risk keyword occurs in text. A nil
// policy uses DefaultHighRiskKeywords.
func (p *Policy) IsHighRisk(text string) bool {
	keywords := DefaultHighRiskKeywords
	if p != nil && len(p.HighRiskKeywords) > 0 {
		keywords = p.HighRiskKeywords
	}
	text = strings.ToLower(text)
	for _, keyword := range keywords {
		if keyword = strings.ToLower(strings.TrimSpace(keyword)); keyword != "" && strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

// AppAllowed reports whether app may be granted.
func (p *Policy) AppAllowed(app string) bool {
	return p == nil || !containsFold(p.BlockedApps, app)
}

// Verdict is the outcome of Evaluate.
type Verdict struct {
	Allowed          bool
	HighRisk         bool
	RequiresApproval bool
	Reason           string
}

// Evaluate combines the allow/block lists with the high-risk classification
// of goal for action.
func (p *Policy) Evaluate(action, goal string) *Verdict {
	verdict := &Verdict{Allowed: p.IsAllowed(action), HighRisk: p.IsHighRisk(goal) || p.IsHighRisk(action)}
	mode := ModeAsk
	if p != nil && p.Mode != "" {
		mode = p.Mode
	}
	switch {
	case !verdict.Allowed:
		verdict.Reason = "action " + action + " is blocked by policy"
	case verdict.HighRisk && mode == ModeDeny:
		verdict.Allowed = false
		verdict.Reason = "high-risk action " + action + " is denied by policy"
	case verdict.HighRisk && mode != ModeAuto:
		verdict.RequiresApproval = true
		verdict.Reason = "high-risk action " + action + " requires approval"
	default:
		verdict.Reason = "action " + action + " is permitted"
	}
	return verdict
}

func containsFold(values []string, candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	for _, value := range values {
		if strings.EqualFold(strings.TrimSpace(value), candidate) {
			return true
		}
	}
	return false
}

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds p in ctx.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext returns the embedded policy or nil.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
