package netwatch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/assetwatch/internal/types"
)

func TestRegistryPending(t *testing.T) {
	r := newRegistry()

	r.insertPending("req-1", "https://example.com/a", "GET")
	p, ok := r.popPending("req-1")
	require.True(t, ok)
	require.Equal(t, "https://example.com/a", p.url)
	require.Equal(t, "GET", p.method)

	_, ok = r.popPending("req-1")
	require.False(t, ok, "popPending must remove the entry")
}

func TestRegistryPutAndForget(t *testing.T) {
	r := newRegistry()
	rec := &types.RequestRecord{RequestID: "req-1", InterceptID: "int-1", URL: "https://example.com/a"}
	r.put(rec)

	got, ok := r.get("req-1")
	require.True(t, ok)
	require.Equal(t, rec, got)

	require.False(t, r.authOffered("int-1"), "authOffered is a pure read until markAuthOffered is called")
	r.markAuthOffered("int-1")
	require.True(t, r.authOffered("int-1"), "markAuthOffered must be reflected by a subsequent authOffered read")

	r.forget("req-1", false)
	_, ok = r.get("req-1")
	require.False(t, ok, "forget must remove the in-flight record")

	require.False(t, r.authOffered("int-1"), "forget must clear the Authentications entry for the interceptId")
}

func TestRegistryForgetKeepsPendingWhenAsked(t *testing.T) {
	r := newRegistry()
	r.insertPending("req-1", "https://example.com/a", "GET")
	r.put(&types.RequestRecord{RequestID: "req-1"})

	r.forget("req-1", true)

	_, ok := r.popPending("req-1")
	require.True(t, ok, "keepPending=true must preserve the Pending entry")
}

func TestRegistryRedirectChain(t *testing.T) {
	r := newRegistry()

	first := &types.RequestRecord{RequestID: "req-1", InterceptID: "int-1", URL: "https://example.com/old"}
	hadPrior := r.redirectInto("req-1", first)
	require.False(t, hadPrior)
	r.markAuthOffered("int-1")

	second := &types.RequestRecord{RequestID: "req-1", InterceptID: "int-2", URL: "https://example.com/new"}
	hadPrior = r.redirectInto("req-1", second)
	require.True(t, hadPrior)

	got, ok := r.get("req-1")
	require.True(t, ok)
	require.Len(t, got.RedirectChain, 1)
	require.Equal(t, "https://example.com/old", got.RedirectChain[0].URL)

	require.False(t, r.authOffered("int-1"), "redirectInto must clear the prior record's interceptId from Authentications")
}

func TestRegistryRedirectChainAccumulatesInOrder(t *testing.T) {
	r := newRegistry()

	r.redirectInto("req-1", &types.RequestRecord{RequestID: "req-1", InterceptID: "int-1", URL: "https://example.com/a"})
	r.redirectInto("req-1", &types.RequestRecord{RequestID: "req-1", InterceptID: "int-2", URL: "https://example.com/b"})
	r.redirectInto("req-1", &types.RequestRecord{RequestID: "req-1", InterceptID: "int-3", URL: "https://example.com/c"})

	got, ok := r.get("req-1")
	require.True(t, ok)

	want := []types.RequestRecord{
		{RequestID: "req-1", InterceptID: "int-1", URL: "https://example.com/a"},
		{RequestID: "req-1", InterceptID: "int-2", URL: "https://example.com/b", RedirectChain: []types.RequestRecord{
			{RequestID: "req-1", InterceptID: "int-1", URL: "https://example.com/a"},
		}},
	}
	if diff := cmp.Diff(want, got.RedirectChain); diff != "" {
		t.Fatalf("RedirectChain mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "https://example.com/c", got.URL, "the current record is the latest hop, not archived into the chain")
}

func TestRegistryAborted(t *testing.T) {
	r := newRegistry()
	require.False(t, r.isAborted("req-1"))
	r.markAborted("req-1")
	require.True(t, r.isAborted("req-1"))
}

func TestRegistryInFlightSnapshotAndCount(t *testing.T) {
	r := newRegistry()
	r.put(&types.RequestRecord{RequestID: "req-1", ResourceType: types.ResourceTypeDocument})
	r.put(&types.RequestRecord{RequestID: "req-2", ResourceType: types.ResourceTypeStylesheet})

	require.Equal(t, 2, r.count())

	docs := r.inFlight(func(rec *types.RequestRecord) bool {
		return rec.ResourceType == types.ResourceTypeDocument
	})
	require.Len(t, docs, 1)
	require.Equal(t, "req-1", docs[0].RequestID)

	all := r.inFlight(nil)
	require.Len(t, all, 2)
}
