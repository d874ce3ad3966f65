package tier

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"vaultingest/internal/services"
)

// Tier identifies an account plan and the upload limits attached to it.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

const (
	freeMaxBytes       = 5 * 1000 * 1000
	proMaxBytes        = 100 * 1000 * 1000
	enterpriseMaxBytes = 1000 * 1000 * 1000
)

// Parse maps a tier name to a known Tier. Unknown or empty names fall
// back to the free tier so limits are never loosened by a typo.
func Parse(name string) Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(name))) {
	case TierPro:
		return TierPro
	case TierEnterprise:
		return TierEnterprise
	default:
		return TierFree
	}
}

// MaxBytes returns the per-file size ceiling for the tier.
func (t Tier) MaxBytes() int64 {
	switch t {
	case TierPro:
		return proMaxBytes
	case TierEnterprise:
		return enterpriseMaxBytes
	default:
		return freeMaxBytes
	}
}

func (t Tier) String() string {
	return string(t)
}

// Policy validates candidate files against the plan limits before any
// bytes move or session state is created.
type Policy struct {
	tier           Tier
	chunkThreshold int64
}

// NewPolicy builds a policy for the named tier. chunkThreshold is the
// size above which uploads switch to the chunked resumable path.
func NewPolicy(name string, chunkThreshold int64) *Policy {
	return &Policy{tier: Parse(name), chunkThreshold: chunkThreshold}
}

// Tier reports the resolved plan.
func (p *Policy) Tier() Tier {
	return p.tier
}

// Validate rejects files that exceed the tier ceiling. The returned
// error names the tier and its limit so the caller can surface it
// verbatim.
func (p *Policy) Validate(filename string, size int64) error {
	if size < 0 {
		return services.Wrap(services.ErrValidation, "validate", "tier_check",
			fmt.Sprintf("%s: negative size %d", filename, size), nil)
	}
	limit := p.tier.MaxBytes()
	if size > limit {
		return services.Wrap(services.ErrValidation, "validate", "tier_check",
			fmt.Sprintf("%s exceeds the %s tier limit of %s (file is %s)",
				filename, p.tier, humanize.Bytes(uint64(limit)), humanize.Bytes(uint64(size))), nil)
	}
	return nil
}

// RequiresChunked reports whether a file of the given size takes the
// resumable chunked path instead of a single request.
func (p *Policy) RequiresChunked(size int64) bool {
	return size > p.chunkThreshold
}
