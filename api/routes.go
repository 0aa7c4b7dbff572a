package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// RootEndpoint is the endpoint to get the current accumulator root
	RootEndpoint = "/root"
	// RootsEndpoint is the endpoint to get the retained checkpoint window
	RootsEndpoint = "/roots"
	// SupplyEndpoint is the endpoint to get the public supply book entry of
	// one asset
	SupplyURLParam = "assetId"
	SupplyEndpoint = "/supply/{" + SupplyURLParam + "}"
	// SyncEndpoint is the endpoint for exporting state deltas after a given
	// checkpoint; the page size is bounded by the "limit" query parameter
	SyncURLParam = "checkpoint"
	SyncEndpoint = "/sync/{" + SyncURLParam + "}"
	// TransactionsEndpoint is the endpoint for submitting a transaction to
	// the pending queue
	TransactionsEndpoint = "/transactions"
)
