package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideAllowsKnownOrigins(t *testing.T) {
	t.Parallel()

	policy := NewPolicy(DefaultHosts, false)

	allowed := []string{
		"https://threedots.ca",
		"https://www.threedots.ca",
		"http://threedots.ca:8080",
		"https://3f2a1b.threedots.pages.dev",
		"https://THREEDOTS.CA",
	}

	for _, origin := range allowed {
		decision := policy.Decide(origin)
		assert.Equal(t, AllowOrigin, decision.Kind, origin)
		assert.Equal(t, origin, decision.Header(), origin)
	}
}

func TestDecideRejectsUnknownOrigins(t *testing.T) {
	t.Parallel()

	policy := NewPolicy(DefaultHosts, false)

	rejected := []string{
		"https://evil.example",
		"https://evilthreedots.ca",
		"https://threedots.ca.evil.example",
		"https://pages.dev",
		"ftp://threedots.ca",
		"null",
		"",
		"threedots.ca",
		"https://threedots.ca/path",
		"https://user@threedots.ca",
	}

	for _, origin := range rejected {
		decision := policy.Decide(origin)
		assert.Equal(t, AllowNone, decision.Kind, origin)
		assert.Empty(t, decision.Header(), origin)
	}
}

func TestDecideAllowAnyInDevelopment(t *testing.T) {
	t.Parallel()

	policy := NewPolicy(nil, true)

	decision := policy.Decide("https://evil.example")
	assert.Equal(t, AllowAny, decision.Kind)
	assert.Equal(t, "*", decision.Header())
}

func TestNewPolicyNormalizesHosts(t *testing.T) {
	t.Parallel()

	policy := NewPolicy([]string{" Example.COM. ", "", "  "}, false)

	assert.Equal(t, []string{"example.com"}, policy.hosts)
	assert.Equal(t, AllowOrigin, policy.Decide("https://blog.example.com").Kind)
}

func TestNilPolicyAllowsNone(t *testing.T) {
	t.Parallel()

	var policy *Policy
	assert.Equal(t, AllowNone, policy.Decide("https://threedots.ca").Kind)
}
