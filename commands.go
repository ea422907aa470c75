package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"notes-dapp/handlers"
	"notes-dapp/models"
	"notes-dapp/program"
	"notes-dapp/solana"
	"notes-dapp/wallet"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the notes page and JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.importDefault(ctx); err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is required to serve")
			}

			opts := []handlers.Option{
				handlers.WithLogger(log.WithField("component", "http")),
				handlers.WithMetrics(a.metrics),
				handlers.WithTimeout(cfg.ConfirmTimeout),
			}
			if a.store != nil {
				opts = append(opts, handlers.WithJournal(a.store), handlers.WithHealthCheck(a.store.Ping))
				go recordPoolStats(ctx, a)
			}
			server := handlers.NewServer(a.provider, []byte(cfg.JWTSecret), opts...)
			go server.RunSweeper(ctx, time.Minute)

			if addr == "" {
				addr = cfg.ListenAddr
			}
			srv := &http.Server{Addr: addr, Handler: server.Routes(), ReadHeaderTimeout: 10 * time.Second}
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			log.WithField("addr", addr).Infof("Server running on http://localhost%s", addr)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default LISTEN_ADDR or :3002)")
	return cmd
}

func recordPoolStats(ctx context.Context, a *app) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		a.metrics.RecordDBPoolStats(a.store.DB.Stats())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// withProgram runs fn with a program client bound to the signing wallet.
func withProgram(cmd *cobra.Command, fn func(ctx context.Context, p *program.Client) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ConfirmTimeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	conn, err := a.connect(ctx)
	if err != nil {
		return err
	}
	p, err := conn.Program()
	if err != nil {
		return err
	}
	return fn(ctx, p)
}

// explain turns a program failure into its IDL message when one is known.
func explain(op string, err error) error {
	if perr, ok := program.ParseError(err); ok {
		return fmt.Errorf("%s: %s (%d %s)", op, perr.Msg, perr.Code, perr.Name)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func listCmd() *cobra.Command {
	var (
		output string
		author string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes of the signing wallet or --author",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProgram(cmd, func(ctx context.Context, p *program.Client) error {
				owner := p.Author()
				if author != "" {
					pk, err := solana.PublicKeyFromBase58(author)
					if err != nil {
						return err
					}
					owner = pk
				}
				notes, err := p.ListNotes(ctx, owner)
				if err != nil {
					return explain("list notes", err)
				}
				return printNotes(cmd.OutOrStdout(), output, notes)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "table, json or yaml")
	cmd.Flags().StringVar(&author, "author", "", "list another author's notes")
	return cmd
}

func printNotes(w io.Writer, format string, notes []models.NoteAccount) error {
	if notes == nil {
		notes = []models.NoteAccount{}
	}
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(notes)
	case "yaml":
		rows := make([]map[string]string, 0, len(notes))
		for _, n := range notes {
			rows = append(rows, map[string]string{
				"address":      n.Address.String(),
				"title":        n.Title,
				"content":      n.Content,
				"created_at":   n.CreatedAt.Format(time.RFC3339),
				"last_updated": n.LastUpdated.Format(time.RFC3339),
			})
		}
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(rows)
	case "table", "":
		if len(notes) == 0 {
			fmt.Fprintln(w, "No notes found")
			return nil
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TITLE\tCONTENT\tLAST UPDATED\tADDRESS")
		for _, n := range notes {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.Title, truncate(n.Content, 40), n.LastUpdated.Local().Format(time.DateTime), n.Address)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create [title] [content]",
		Short: "Create a note",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, content := args[0], strings.Join(args[1:], " ")
			if err := (models.NoteInput{Title: title, Content: content}).Validate(); err != nil {
				return err
			}
			return withProgram(cmd, func(ctx context.Context, p *program.Client) error {
				addr, err := p.NoteAddress(title)
				if err != nil {
					return errors.New(models.MsgTitleSeedTooBig)
				}
				sig, err := p.CreateNote(ctx, title, content)
				if err != nil {
					return explain("create note", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Note created successfully\naddress:   %s\nsignature: %s\n", addr, sig)
				return nil
			})
		},
	}
}

func updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update [title] [content]",
		Short: "Replace a note's content",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, content := args[0], strings.Join(args[1:], " ")
			if err := (models.ContentInput{Content: content}).Validate(); err != nil {
				return err
			}
			return withProgram(cmd, func(ctx context.Context, p *program.Client) error {
				sig, err := p.UpdateNote(ctx, title, content)
				if err != nil {
					return explain("update note", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "successfully updated note\nsignature: %s\n", sig)
				return nil
			})
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [title]",
		Short: "Delete a note and reclaim its rent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProgram(cmd, func(ctx context.Context, p *program.Client) error {
				sig, err := p.DeleteNote(ctx, args[0])
				if err != nil {
					return explain("delete note", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Note deleted successfully\nsignature: %s\n", sig)
				return nil
			})
		},
	}
}

func addressCmd() *cobra.Command {
	var author string

	cmd := &cobra.Command{
		Use:   "address [title]",
		Short: "Derive the address of a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var owner solana.PublicKey
			if author != "" {
				pk, err := solana.PublicKeyFromBase58(author)
				if err != nil {
					return err
				}
				owner = pk
			} else {
				kp, err := solana.LoadKeypairFile(keypairPath())
				if err != nil {
					return fmt.Errorf("%w (or pass --author)", err)
				}
				owner = kp.PublicKey()
			}
			addr, bump, err := program.NoteAddress(cfg.ProgramID, owner, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (bump %d)\n", addr, bump)
			return nil
		},
	}

	cmd.Flags().StringVar(&author, "author", "", "author public key (default: the keypair's)")
	return cmd
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the signing wallet's balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ConfirmTimeout)
			defer cancel()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			conn, err := a.connect(ctx)
			if err != nil {
				return err
			}
			lamports, err := conn.Balance(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), wallet.FormatSOL(lamports))
			return nil
		},
	}
}

func airdropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "airdrop [amount]",
		Short: "Request SOL from the cluster faucet (devnet, testnet, localnet)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lamports, err := wallet.ParseSOL(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ConfirmTimeout)
			defer cancel()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			conn, err := a.connect(ctx)
			if err != nil {
				return err
			}
			pk, _ := conn.PublicKey()
			sig, err := a.rpc.RequestAirdrop(ctx, pk, lamports)
			if err != nil {
				return err
			}
			if err := a.rpc.ConfirmTransaction(ctx, sig); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Airdropped %s to %s\nsignature: %s\n", wallet.FormatSOL(lamports), pk, sig)
			return nil
		},
	}
}

func walletCmd() *cobra.Command {
	var passphrase string

	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage keystore wallets (needs DSN to persist)",
	}
	cmd.PersistentFlags().StringVar(&passphrase, "passphrase", "", "passphrase (default NOTES_WALLET_PASSPHRASE)")

	pass := func() (string, error) {
		if passphrase != "" {
			return passphrase, nil
		}
		if cfg.WalletPassphrase != "" {
			return cfg.WalletPassphrase, nil
		}
		return "", errors.New("a passphrase is required (--passphrase or NOTES_WALLET_PASSPHRASE)")
	}

	newCmd := &cobra.Command{
		Use:   "new [label]",
		Short: "Generate a keypair and seal it under label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pass()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			pk, err := a.provider.Adapter().Create(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], pk)
			return nil
		},
	}

	importCmd := &cobra.Command{
		Use:   "import [label] [keypair-file]",
		Short: "Seal a Solana CLI keypair file under label",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pass()
			if err != nil {
				return err
			}
			kp, err := solana.LoadKeypairFile(args[1])
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			pk, err := a.provider.Adapter().Import(cmd.Context(), args[0], kp, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], pk)
			return nil
		},
	}

	lsCmd := &cobra.Command{
		Use:   "list",
		Short: "List keystore labels",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			labels, err := a.provider.Adapter().Labels(cmd.Context())
			if err != nil {
				return err
			}
			for _, l := range labels {
				fmt.Fprintln(cmd.OutOrStdout(), l)
			}
			return nil
		},
	}

	cmd.AddCommand(newCmd, importCmd, lsCmd)
	return cmd
}
