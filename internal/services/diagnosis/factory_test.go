package diagnosis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestFactory_MakeReturnsAvailableDefault(t *testing.T) {
	f, err := NewFactory(settingsFor("a", "b"), Registry{
		"a": fakeConstructor(true),
		"b": fakeConstructor(true),
	}, nopLogger{})
	require.NoError(t, err)

	p, err := f.Make(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "a", p.Config().Key)
}

func TestFactory_MakeFallsBackWhenUnavailable(t *testing.T) {
	f, err := NewFactory(settingsFor("a", "b", "c"), Registry{
		"a": fakeConstructor(false),
		"b": fakeConstructor(true),
		"c": fakeConstructor(true),
	}, nopLogger{})
	require.NoError(t, err)

	p, err := f.Make(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "b", p.Config().Key)
}

func TestFactory_MakeSkipsEveryUnavailableCandidate(t *testing.T) {
	f, err := NewFactory(settingsFor("a", "b", "c"), Registry{
		"a": fakeConstructor(false),
		"b": fakeConstructor(false),
		"c": fakeConstructor(true),
	}, nopLogger{})
	require.NoError(t, err)

	p, err := f.Make(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "c", p.Config().Key)
}

func failingConstructor(cfg ProviderConfig, _ *rate.Limiter, logger Logger) (Provider, error) {
	return nil, NewInvalidAPIKeyError(cfg.Key)
}

func TestFactory_MakeReturnsConstructionErrorOfRequestedProvider(t *testing.T) {
	f, err := NewFactory(settingsFor("a", "b"), Registry{
		"a": failingConstructor,
		"b": fakeConstructor(true),
	}, nopLogger{})
	require.NoError(t, err)

	p, err := f.Make(context.Background(), "a")
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestFactory_FallbackSkipsCandidatesThatFailToConstruct(t *testing.T) {
	f, err := NewFactory(settingsFor("a", "b", "c"), Registry{
		"a": fakeConstructor(false),
		"b": failingConstructor,
		"c": fakeConstructor(true),
	}, nopLogger{})
	require.NoError(t, err)

	p, err := f.Make(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "c", p.Config().Key)
}

func TestFactory_SharesOutboundLimiterAcrossRequests(t *testing.T) {
	u := newUpstream(t, okContent(exampleContent), okContent(exampleContent))
	s := DefaultSettings()
	cfg := testProviderConfig(u.server.URL)
	cfg.RequestsPerMinute = 1
	s.Providers[KeyFastInference] = cfg

	f, err := NewFactory(s, DefaultRegistry(), nopLogger{})
	require.NoError(t, err)

	first, err := f.Make(context.Background(), KeyFastInference)
	require.NoError(t, err)
	_, err = first.Diagnose(context.Background(), camryRequest())
	require.NoError(t, err)

	second, err := f.Make(context.Background(), KeyFastInference)
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = second.Diagnose(ctx, camryRequest())
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, u.chatCalls())
}

func TestNewFactory_OnlyThrottledKeysGetLimiters(t *testing.T) {
	s := settingsFor("a", "b")
	a := s.Providers["a"]
	a.RequestsPerMinute = 30
	s.Providers["a"] = a

	f, err := NewFactory(s, Registry{"a": fakeConstructor(true), "b": fakeConstructor(true)}, nopLogger{})
	require.NoError(t, err)

	require.Contains(t, f.limiters, "a")
	assert.NotContains(t, f.limiters, "b")
	assert.Equal(t, rate.Every(2*time.Second), f.limiters["a"].Limit())
}

func TestFactory_FallbackExhausted(t *testing.T) {
	f, err := NewFactory(settingsFor("a", "b", "c"), Registry{
		"a": fakeConstructor(false),
		"b": fakeConstructor(false),
		"c": fakeConstructor(false),
	}, nopLogger{})
	require.NoError(t, err)

	_, err = f.Make(context.Background(), "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Contains(t, err.Error(), "no AI providers available (attempted: a, b, c)")
}

func TestFactory_FallbackSkipsFailedKeyAndDuplicates(t *testing.T) {
	s := settingsFor("a", "b")
	s.FallbackOrder = []string{"a", "a", "b", "b"}
	f, err := NewFactory(s, Registry{
		"a": fakeConstructor(true),
		"b": fakeConstructor(false),
	}, nopLogger{})
	require.NoError(t, err)

	_, err = f.Fallback(context.Background(), "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "(attempted: a, b)")
}

func TestFactory_MakeUnknownKey(t *testing.T) {
	f, err := NewFactory(settingsFor("a"), Registry{"a": fakeConstructor(true)}, nopLogger{})
	require.NoError(t, err)

	_, err = f.Make(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInvalidConfiguration))
	assert.Contains(t, err.Error(), "unknown provider: nope")
}

func TestNewFactory_RejectsBadSettings(t *testing.T) {
	_, err := NewFactory(nil, DefaultRegistry(), nopLogger{})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	s := settingsFor("a")
	s.DefaultProvider = "missing"
	_, err = NewFactory(s, Registry{"a": fakeConstructor(true)}, nopLogger{})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewFactory(settingsFor("a"), Registry{}, nopLogger{})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestFactory_ListAvailableProviders(t *testing.T) {
	s := DefaultSettings()
	fast := s.Providers[KeyFastInference]
	fast.APIKey = "secret"
	s.Providers[KeyFastInference] = fast

	registry := DefaultRegistry()
	registry[KeyFastInference] = fakeConstructor(true)

	f, err := NewFactory(s, registry, nopLogger{})
	require.NoError(t, err)

	statuses := f.ListAvailableProviders(context.Background())
	require.Len(t, statuses, 3)

	assert.True(t, statuses[KeyFastInference].Available)
	require.NotNil(t, statuses[KeyFastInference].Config)

	for _, key := range []string{KeyMultimodalA, KeyMultimodalB} {
		st := statuses[key]
		assert.False(t, st.Available, key)
		assert.Nil(t, st.Config, key)
		assert.Contains(t, st.Error, "API key", key)
	}
}

func TestFactory_TestProvider(t *testing.T) {
	u := newUpstream(t, okContent(exampleContent))
	s := DefaultSettings()
	s.Providers[KeyFastInference] = testProviderConfig(u.server.URL)

	f, err := NewFactory(s, DefaultRegistry(), nopLogger{})
	require.NoError(t, err)

	report := f.TestProvider(context.Background(), KeyFastInference)
	assert.True(t, report.Success, report.Error)
	assert.Equal(t, 85, report.Confidence)
	assert.Equal(t, "Brief name of the most likely issue", report.Issue)
	assert.Equal(t, "FastInference (llama-3.3-70b-versatile)", report.Provider)

	failed := f.TestProvider(context.Background(), KeyMultimodalA)
	assert.False(t, failed.Success)
	assert.NotEmpty(t, failed.Error)

	unknown := f.TestProvider(context.Background(), "nope")
	assert.False(t, unknown.Success)
	assert.Contains(t, unknown.Error, "unknown provider")
}

func TestFactory_EstimateCost(t *testing.T) {
	f, err := NewFactory(DefaultSettings(), DefaultRegistry(), nopLogger{})
	require.NoError(t, err)

	assert.InDelta(t, 1.18, f.EstimateCost(KeyFastInference, 2000), 1e-9)
	assert.InDelta(t, 1.18, f.EstimateCost(KeyFastInference, 0), 1e-9)
	assert.InDelta(t, 5.0, f.EstimateCost(KeyMultimodalA, 1000), 1e-9)
	assert.Equal(t, 0.0, f.EstimateCost("nope", 2000))
}

func TestRegistryKeysSorted(t *testing.T) {
	assert.Equal(t, []string{KeyFastInference, KeyMultimodalA, KeyMultimodalB}, DefaultRegistry().Keys())
}
