package domain

// ChainSpec describes an EVM network the wallet may need to register before
// switching to it (wallet_addEthereumChain parameters).
type ChainSpec struct {
	ID             int64
	Name           string
	CurrencyName   string
	CurrencySymbol string
	RPCURL         string
	ExplorerURL    string
}
