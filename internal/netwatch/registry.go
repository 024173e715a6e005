package netwatch

import (
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/dgnsrekt/assetwatch/internal/types"
)

// pendingEntry is the Pending Map value: the requestWillBeSent payload a
// request was seen with, kept until Fetch.requestPaused consumes it.
type pendingEntry struct {
	url    string
	method string
}

// registry is the Request Registry. The in-flight record map and the
// Pending map share one mutex because forget removes a record and its
// Pending entry in a single step; Authentications and Aborted are simple sets
// with no such cross-map invariant, so they use a concurrent set type
// instead (DESIGN.md).
type registry struct {
	mu      sync.RWMutex
	records map[string]*types.RequestRecord
	pending map[string]pendingEntry

	authentications cmap.ConcurrentMap[string, struct{}]
	aborted         cmap.ConcurrentMap[string, struct{}]

	latches *latchSet
}

func newRegistry() *registry {
	return &registry{
		records:         make(map[string]*types.RequestRecord),
		pending:         make(map[string]pendingEntry),
		authentications: cmap.New[struct{}](),
		aborted:         cmap.New[struct{}](),
		latches:         newLatchSet(),
	}
}

// insertPending records a requestWillBeSent payload under requestID.
func (r *registry) insertPending(requestID, url, method string) {
	r.mu.Lock()
	r.pending[requestID] = pendingEntry{url: url, method: method}
	r.mu.Unlock()
}

// popPending removes and returns the pending entry for requestID, if any.
func (r *registry) popPending(requestID string) (pendingEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[requestID]
	if ok {
		delete(r.pending, requestID)
	}
	return p, ok
}

// get returns the in-flight record for requestID, if present.
func (r *registry) get(requestID string) (*types.RequestRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[requestID]
	return rec, ok
}

// redirectInto archives the current record for requestID (if any) into a
// fresh record's redirect chain, as a single atomic step, then installs the
// fresh record. Returns whether a prior record existed.
func (r *registry) redirectInto(requestID string, fresh *types.RequestRecord) (hadPrior bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prior, ok := r.records[requestID]; ok {
		fresh.RedirectChain = append(append([]types.RequestRecord{}, prior.RedirectChain...), *prior)
		delete(r.records, requestID)
		r.authentications.Remove(prior.InterceptID)
		hadPrior = true
	}
	r.records[requestID] = fresh
	return hadPrior
}

// put installs a record with no prior redirect history.
func (r *registry) put(rec *types.RequestRecord) {
	r.mu.Lock()
	r.records[rec.RequestID] = rec
	r.mu.Unlock()
}

// setResponse attaches response info to an existing record.
func (r *registry) setResponse(requestID string, resp *types.ResponseInfo) (ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[requestID]
	if !ok {
		return false
	}
	rec.Response = resp
	return true
}

// forget removes the in-flight record for requestID and its interceptId
// from Authentications; it also removes the Pending entry unless
// keepPending is true.
func (r *registry) forget(requestID string, keepPending bool) {
	r.mu.Lock()
	rec, ok := r.records[requestID]
	if ok {
		delete(r.records, requestID)
	}
	if !keepPending {
		delete(r.pending, requestID)
	}
	r.mu.Unlock()

	if ok && rec.InterceptID != "" {
		r.authentications.Remove(rec.InterceptID)
	}
}

// isAborted reports whether requestID is in the Aborted set.
func (r *registry) isAborted(requestID string) bool {
	return r.aborted.Has(requestID)
}

// markAborted adds requestID to the Aborted set. Never removed for the
// lifetime of the page.
func (r *registry) markAborted(requestID string) {
	r.aborted.Set(requestID, struct{}{})
}

// authOffered reports whether interceptID has already had credentials
// offered to it. It only ever reads the set; markAuthOffered is the sole
// writer.
func (r *registry) authOffered(interceptID string) bool {
	return r.authentications.Has(interceptID)
}

// markAuthOffered records that credentials have been offered for
// interceptID.
func (r *registry) markAuthOffered(interceptID string) {
	r.authentications.Set(interceptID, struct{}{})
}

// inFlight returns a snapshot copy of records matching filter.
func (r *registry) inFlight(filter func(*types.RequestRecord) bool) []types.RequestRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.RequestRecord, 0, len(r.records))
	for _, rec := range r.records {
		if filter == nil || filter(rec) {
			out = append(out, *rec)
		}
	}
	return out
}

// count returns the number of in-flight records (used by the status API).
func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// abortedCount returns the size of the Aborted set (used by the status API).
func (r *registry) abortedCount() int {
	return r.aborted.Count()
}
