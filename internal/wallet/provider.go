package wallet

import "context"

// Provider is the raw injected wallet object. Its capabilities are discovered
// through the interfaces below; none of them is mandatory. Every value a
// provider returns is untrusted and goes through normalization.
type Provider any

// Connector is the wallet's native connect entry point (prompts the user)
type Connector interface {
	Connect(ctx context.Context) (any, error)
}

// AccountLister reads the connected accounts without prompting
type AccountLister interface {
	Accounts(ctx context.Context) (any, error)
}

type ChainIDGetter interface {
	ChainID(ctx context.Context) (any, error)
}

type TransactionSender interface {
	SendTransaction(ctx context.Context, tx TxRequest) (any, error)
}

type MessageSigner interface {
	SignMessage(ctx context.Context, message any) (any, error)
}

type NetworkSwitcher interface {
	SwitchNetwork(ctx context.Context, chainIDHex string) (any, error)
}

type NetworkAdder interface {
	AddNetwork(ctx context.Context, params NetworkParams) (any, error)
}

// Requester is the wallet's own generic passthrough
type Requester interface {
	Request(ctx context.Context, method string, params ...any) (any, error)
}

type Disconnector interface {
	Disconnect(ctx context.Context) error
}

// Handler receives event payloads (raw, un-normalized)
type Handler func(payload any)

// EventSource is the wallet's native listener registration. The returned
// function removes the listener.
type EventSource interface {
	On(event string, h Handler) (remove func())
}

// Named lets a provider report its wallet kind
type Named interface {
	WalletName() string
}

// Event names
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
	EventDisconnect      = "disconnect"
)

// TxRequest is the transaction shape forwarded to the wallet. Quantities are
// 0x-prefixed hex strings.
type TxRequest struct {
	From     string `json:"from"`
	To       string `json:"to,omitempty"`
	Data     string `json:"data,omitempty"`
	Value    string `json:"value,omitempty"`
	Gas      string `json:"gas,omitempty"`
	GasPrice string `json:"gasPrice,omitempty"`
}

// NativeCurrency describes a chain's native coin for add-network requests
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// NetworkParams carries the full chain metadata of an add-network request
type NetworkParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}
