package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanMakeRequest_DeniesAfterCapacity(t *testing.T) {
	l := New()
	host := "api.example.com"

	for i := 0; i < 3; i++ {
		assert.True(t, l.CanMakeRequest(host, 3, time.Minute), "request %d should be allowed", i)
	}
	assert.False(t, l.CanMakeRequest(host, 3, time.Minute), "4th request should be denied")
}

func TestCanMakeRequest_AllowsAfterWindowElapses(t *testing.T) {
	l := New()
	fake := time.Now()
	l.now = func() time.Time { return fake }
	host := "api.example.com"

	assert.True(t, l.CanMakeRequest(host, 1, time.Minute))
	assert.False(t, l.CanMakeRequest(host, 1, time.Minute))

	fake = fake.Add(time.Minute + time.Second)
	assert.True(t, l.CanMakeRequest(host, 1, time.Minute))
}

func TestCanMakeRequest_HostsAreIndependent(t *testing.T) {
	l := New()
	assert.True(t, l.CanMakeRequest("a.com", 1, time.Minute))
	assert.False(t, l.CanMakeRequest("a.com", 1, time.Minute))
	assert.True(t, l.CanMakeRequest("b.com", 1, time.Minute))
}

func TestReset(t *testing.T) {
	l := New()
	host := "api.example.com"
	assert.True(t, l.CanMakeRequest(host, 1, time.Minute))
	assert.False(t, l.CanMakeRequest(host, 1, time.Minute))

	l.Reset(host)
	assert.True(t, l.CanMakeRequest(host, 1, time.Minute))
}

func TestStatus_ReflectsConsumedTokens(t *testing.T) {
	l := New()
	host := "api.example.com"

	s := l.Status(host, 5, time.Minute)
	assert.Equal(t, 5, s.Tokens)
	assert.Equal(t, 0, s.RequestCount)

	l.CanMakeRequest(host, 5, time.Minute)
	l.CanMakeRequest(host, 5, time.Minute)

	s = l.Status(host, 5, time.Minute)
	assert.Equal(t, 3, s.Tokens)
	assert.Equal(t, 2, s.RequestCount)
}

func TestStatus_DoesNotConsumeATokenItself(t *testing.T) {
	l := New()
	host := "api.example.com"

	l.Status(host, 2, time.Minute)
	l.Status(host, 2, time.Minute)
	l.Status(host, 2, time.Minute)

	assert.True(t, l.CanMakeRequest(host, 2, time.Minute))
	assert.True(t, l.CanMakeRequest(host, 2, time.Minute))
	assert.False(t, l.CanMakeRequest(host, 2, time.Minute))
}

func TestStatus_ResetsAfterWindowElapses(t *testing.T) {
	l := New()
	fake := time.Now()
	l.now = func() time.Time { return fake }
	host := "api.example.com"

	l.CanMakeRequest(host, 1, time.Minute)
	fake = fake.Add(2 * time.Minute)

	s := l.Status(host, 1, time.Minute)
	assert.Equal(t, 1, s.Tokens)
	assert.Equal(t, 0, s.RequestCount)
}
