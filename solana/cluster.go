package solana

import "fmt"

type Cluster string

const (
	Devnet      Cluster = "devnet"
	Testnet     Cluster = "testnet"
	MainnetBeta Cluster = "mainnet-beta"
	Localnet    Cluster = "localnet"
)

var clusterURLs = map[Cluster]string{
	Devnet:      "https://api.devnet.solana.com",
	Testnet:     "https://api.testnet.solana.com",
	MainnetBeta: "https://api.mainnet-beta.solana.com",
	Localnet:    "http://127.0.0.1:8899",
}

// URL is the public RPC endpoint of a known cluster.
func (c Cluster) URL() (string, error) {
	u, ok := clusterURLs[c]
	if !ok {
		return "", fmt.Errorf("unknown cluster %q", string(c))
	}
	return u, nil
}
