package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toppsdigital/cardsync/cache"
	"github.com/toppsdigital/cardsync/config"
	"github.com/toppsdigital/cardsync/errors"
)

func TestResolveJobsKey(t *testing.T) {
	req, err := Resolve(SelectorJobs, Options{Mine: true, StatusFilter: StatusFilterInProgress})
	require.NoError(t, err)
	assert.Equal(t, cache.Key("jobs|mine=true|status=in-progress"), req.Key)

	req, err = Resolve(SelectorJobs, Options{})
	require.NoError(t, err)
	assert.Equal(t, cache.Key("jobs|mine=false|status="), req.Key)
}

func TestResolveJobsRejectsUnknownStatusFilter(t *testing.T) {
	_, err := Resolve(SelectorJobs, Options{StatusFilter: "archived"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestResolveDetailKeyIgnoresIncludeFlags(t *testing.T) {
	plain, err := Resolve(SelectorJobDetails, Options{JobID: "JB_1"})
	require.NoError(t, err)
	loaded, err := Resolve(SelectorJobDetails, Options{JobID: "JB_1", IncludeFiles: true, IncludeAssets: true})
	require.NoError(t, err)

	assert.Equal(t, plain.Key, loaded.Key, "all views of one job share a single detail entry")
	assert.Equal(t, cache.Key("job|JB_1"), plain.Key)
}

func TestResolveRequiresJobID(t *testing.T) {
	for _, sel := range []Selector{SelectorJobDetails, SelectorJobFiles, SelectorJobAssets, SelectorDownloadURL} {
		_, err := Resolve(sel, Options{})
		assert.Error(t, err, "selector %s must require a job id", sel)
	}
}

func TestResolveBatchNormalizesIDs(t *testing.T) {
	a, err := Resolve(SelectorBatchJobs, Options{JobIDs: []string{"JB_2", "JB_1", "JB_2", ""}})
	require.NoError(t, err)
	b, err := Resolve(SelectorBatchJobs, Options{JobIDs: []string{"JB_1", "JB_2"}})
	require.NoError(t, err)

	assert.Equal(t, a.Key, b.Key)
	assert.Equal(t, cache.Key("batch|JB_1,JB_2"), a.Key)
	assert.Equal(t, []string{"JB_1", "JB_2"}, a.Options.JobIDs)
}

func TestResolveBatchRequiresIDs(t *testing.T) {
	_, err := Resolve(SelectorBatchJobs, Options{})
	assert.Error(t, err)
}

func TestResolveUnknownSelector(t *testing.T) {
	_, err := Resolve(Selector("nonsense"), Options{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestFreshnessPerCategory(t *testing.T) {
	cfg := config.Default().Cache

	cases := []struct {
		sel   Selector
		opts  Options
		stale time.Duration
		evict time.Duration
	}{
		{SelectorJobs, Options{}, 30 * time.Second, 300 * time.Second},
		{SelectorJobDetails, Options{JobID: "a"}, 30 * time.Second, 300 * time.Second},
		{SelectorJobFiles, Options{JobID: "a"}, 15 * time.Second, 180 * time.Second},
		{SelectorJobAssets, Options{JobID: "a"}, 60 * time.Second, 600 * time.Second},
		{SelectorDownloadURL, Options{JobID: "a"}, 1800 * time.Second, 3600 * time.Second},
		{SelectorBatchJobs, Options{JobIDs: []string{"a"}}, 0, 300 * time.Second},
	}

	for _, tc := range cases {
		req, err := Resolve(tc.sel, tc.opts)
		require.NoError(t, err, "selector %s", tc.sel)
		fresh := req.Freshness(cfg)
		assert.Equal(t, tc.stale, fresh.Stale, "stale window for %s", tc.sel)
		assert.Equal(t, tc.evict, fresh.Evict, "evict window for %s", tc.sel)
	}
}
