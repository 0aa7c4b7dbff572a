package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/zkpay/shieldpool/api"
	"github.com/zkpay/shieldpool/syncer"
	"github.com/zkpay/shieldpool/types"
)

// Root fetches the current accumulator head.
func (c *HTTPclient) Root() (*api.RootResponse, error) {
	data, status, err := c.Request(HTTPGET, nil, nil, api.RootEndpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	root := &api.RootResponse{}
	if err := json.Unmarshal(data, root); err != nil {
		return nil, fmt.Errorf("decode root response: %w", err)
	}
	return root, nil
}

// Roots fetches the retained checkpoint window.
func (c *HTTPclient) Roots() ([]types.Checkpoint, error) {
	data, status, err := c.Request(HTTPGET, nil, nil, api.RootsEndpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	resp := &api.RootsResponse{}
	if err := json.Unmarshal(data, resp); err != nil {
		return nil, fmt.Errorf("decode roots response: %w", err)
	}
	return resp.Roots, nil
}

// Supply fetches the public supply book entry of one asset.
func (c *HTTPclient) Supply(assetID *types.BigInt) (*api.SupplyResponse, error) {
	data, status, err := c.Request(HTTPGET, nil, nil, "supply", assetID.String())
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	resp := &api.SupplyResponse{}
	if err := json.Unmarshal(data, resp); err != nil {
		return nil, fmt.Errorf("decode supply response: %w", err)
	}
	return resp, nil
}

// SyncSince fetches one page of state deltas after the given checkpoint.
func (c *HTTPclient) SyncSince(checkpointID uint64, limit int) (*syncer.SyncBatch, error) {
	var params []string
	if limit > 0 {
		params = []string{"limit", strconv.Itoa(limit)}
	}
	data, status, err := c.Request(HTTPGET, nil, params, "sync", strconv.FormatUint(checkpointID, 10))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	batch := &syncer.SyncBatch{}
	if err := json.Unmarshal(data, batch); err != nil {
		return nil, fmt.Errorf("decode sync batch: %w", err)
	}
	return batch, nil
}

// SubmitTransaction enqueues a transaction for validation.
func (c *HTTPclient) SubmitTransaction(tx *types.Transaction) error {
	data, status, err := c.Request(HTTPPOST, tx, nil, api.TransactionsEndpoint)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	return nil
}
