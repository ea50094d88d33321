package entity

// ChainFetchFailure records why one chain did not contribute to an
// aggregation run.
type ChainFetchFailure struct {
	ChainID   uint64 `json:"chainId"`
	ChainName string `json:"chainName"`
	Reason    string `json:"reason"`
	TimedOut  bool   `json:"timedOut"`
}
