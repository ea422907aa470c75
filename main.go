package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"notes-dapp/config"
	"notes-dapp/db"
	"notes-dapp/localnet"
	"notes-dapp/metrics"
	"notes-dapp/solana"
	"notes-dapp/wallet"
)

// defaultLabel holds the keypair named by NOTES_KEYPAIR.
const defaultLabel = "default"

var (
	envFile     string
	clusterFlag string
	rpcURLFlag  string
	keypairFlag string
	walletFlag  string
	logLevel    string

	cfg config.Config
	log *logrus.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "notes-dapp",
		Short:         "Client for the Solana notes program",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file to load")
	rootCmd.PersistentFlags().StringVar(&clusterFlag, "cluster", "", "devnet, testnet, mainnet-beta, localnet or simulated")
	rootCmd.PersistentFlags().StringVar(&rpcURLFlag, "rpc-url", "", "RPC endpoint, overrides --cluster")
	rootCmd.PersistentFlags().StringVar(&keypairFlag, "keypair", "", "Solana CLI keypair file to sign with")
	rootCmd.PersistentFlags().StringVar(&walletFlag, "wallet", "", "keystore label to sign with instead of --keypair")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(updateCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(addressCmd())
	rootCmd.AddCommand(balanceCmd())
	rootCmd.AddCommand(airdropCmd())
	rootCmd.AddCommand(walletCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	if err := config.LoadEnv(envFile); err != nil {
		return err
	}
	if clusterFlag != "" {
		os.Setenv("NOTES_CLUSTER", clusterFlag)
	}
	if rpcURLFlag != "" {
		os.Setenv("NOTES_RPC_URL", rpcURLFlag)
	}
	if logLevel != "" {
		os.Setenv("LOG_LEVEL", logLevel)
	}
	var err error
	if cfg, err = config.Load(); err != nil {
		return err
	}
	if keypairFlag != "" {
		cfg.Keypair = keypairFlag
	}
	log = config.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	return nil
}

// app is everything a command needs, built from cfg.
type app struct {
	metrics  *metrics.Metrics
	rpc      *solana.Client
	endpoint string
	store    *db.Store
	keystore wallet.Keystore
	provider *wallet.Provider
	closers  []func() error
}

func newApp(ctx context.Context) (*app, error) {
	a := &app{metrics: metrics.NewMetrics(), endpoint: cfg.Endpoint()}

	if cfg.Simulated() {
		endpoint, closeFn, err := startSimulatedCluster()
		if err != nil {
			return nil, err
		}
		a.endpoint = endpoint
		a.closers = append(a.closers, closeFn)
	}
	a.rpc = solana.NewClient(a.endpoint,
		solana.WithCommitment(cfg.Commitment),
		solana.WithObserver(a.metrics),
		solana.WithLogger(log.WithField("component", "rpc")),
	)

	providerOpts := []wallet.ProviderOption{
		wallet.WithProgramID(cfg.ProgramID),
		wallet.WithLogger(log.WithField("component", "wallet")),
	}
	if cfg.DSN != "" {
		store, err := db.Open(cfg.DSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.store = store
		a.keystore = store
		providerOpts = append(providerOpts, wallet.WithRecorder(store))
	} else {
		a.keystore = wallet.NewMemoryKeystore()
	}

	adapter := wallet.NewAdapter(a.keystore, log)
	a.provider = wallet.NewProvider(a.rpc, a.endpoint, adapter, providerOpts...)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}
}

// startSimulatedCluster serves an in-process ledger on a loopback port.
func startSimulatedCluster() (string, func() error, error) {
	cluster := localnet.New(
		localnet.WithProgramID(cfg.ProgramID),
		localnet.WithFaucet(localnet.LamportsPerSOL),
		localnet.WithLogger(log.WithField("component", "localnet")),
	)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("listen for simulated cluster: %w", err)
	}
	srv := &http.Server{Handler: cluster, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("simulated cluster stopped")
		}
	}()
	endpoint := "http://" + ln.Addr().String()
	log.WithFields(logrus.Fields{"endpoint": endpoint, "program": cfg.ProgramID.String()}).Info("simulated cluster running")
	return endpoint, srv.Close, nil
}

// keypairPath is NOTES_KEYPAIR/--keypair, else the Solana CLI default.
func keypairPath() string {
	if cfg.Keypair != "" {
		return cfg.Keypair
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "solana", "id.json")
}

// connect returns a signing connection: the --wallet keystore entry when
// set, else the keypair file.
func (a *app) connect(ctx context.Context) (*wallet.Connection, error) {
	if walletFlag != "" {
		return a.provider.Connect(ctx, walletFlag, cfg.WalletPassphrase)
	}
	kp, err := solana.LoadKeypairFile(keypairPath())
	if err != nil {
		return nil, err
	}
	return a.provider.Attach(wallet.NewKeypairWallet(kp)), nil
}

// importDefault seals the configured keypair under defaultLabel so the page
// can connect it.
func (a *app) importDefault(ctx context.Context) error {
	if cfg.Keypair == "" {
		return nil
	}
	if cfg.WalletPassphrase == "" {
		log.Warn("NOTES_KEYPAIR is set without NOTES_WALLET_PASSPHRASE, not importing it")
		return nil
	}
	kp, err := solana.LoadKeypairFile(cfg.Keypair)
	if err != nil {
		return err
	}
	if err := a.provider.Adapter().EnsureImported(ctx, defaultLabel, kp, cfg.WalletPassphrase); err != nil {
		return fmt.Errorf("import %s: %w", cfg.Keypair, err)
	}
	log.WithFields(logrus.Fields{"label": defaultLabel, "address": kp.PublicKey().String()}).Info("keypair available to the page")
	return nil
}
