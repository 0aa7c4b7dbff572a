package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zkpay/shieldpool/syncer"
	"github.com/zkpay/shieldpool/types"
)

// root handles GET /root: the current accumulator head.
func (a *API) root(w http.ResponseWriter, _ *http.Request) {
	cp := a.ledger.Accumulator().LatestCheckpoint()
	httpWriteJSON(w, &RootResponse{
		Root:       cp.Root,
		Checkpoint: cp.ID,
		ShardIndex: cp.ShardIndex,
		LeafCount:  cp.LeafCount,
	})
}

// roots handles GET /roots: the retained checkpoint window.
func (a *API) roots(w http.ResponseWriter, _ *http.Request) {
	httpWriteJSON(w, &RootsResponse{Roots: a.ledger.Accumulator().RootHistory()})
}

// supply handles GET /supply/{assetId}.
func (a *API) supply(w http.ResponseWriter, r *http.Request) {
	asset := new(types.BigInt)
	if err := asset.SetString(chi.URLParam(r, SupplyURLParam)); err != nil {
		ErrMalformedAssetID.WithErr(err).Write(w)
		return
	}
	s, err := a.ledger.Supply(asset)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &SupplyResponse{
		AssetID:   asset,
		Issued:    s.Issued,
		Deposited: s.Deposited,
		Withdrawn: s.Withdrawn,
	})
}

// syncExport handles GET /sync/{checkpoint}?limit=N: one page of state
// deltas after the given checkpoint id.
func (a *API) syncExport(w http.ResponseWriter, r *http.Request) {
	since, err := strconv.ParseUint(chi.URLParam(r, SyncURLParam), 10, 64)
	if err != nil {
		ErrMalformedCheckpoint.WithErr(err).Write(w)
		return
	}
	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		limit, err = strconv.Atoi(q)
		if err != nil {
			ErrMalformedCheckpoint.Withf("limit: %v", err).Write(w)
			return
		}
	}
	batch, err := a.syncer.ExportSince(since, limit)
	if err != nil {
		if errors.Is(err, syncer.ErrUnknownCheckpoint) {
			ErrUnknownCheckpoint.WithErr(err).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, batch)
}

// submitTransaction handles POST /transactions: structural validation, then
// enqueue for the ledger service loop. Full validation (proof, nullifiers,
// supply) happens asynchronously.
func (a *API) submitTransaction(w http.ResponseWriter, r *http.Request) {
	tx := &types.Transaction{}
	if err := json.NewDecoder(r.Body).Decode(tx); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if err := tx.Validate(); err != nil {
		ErrMalformedTx.WithErr(err).Write(w)
		return
	}
	if err := a.ledger.Storage().PushTransaction(tx); err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &SubmitResponse{Queued: true})
}
