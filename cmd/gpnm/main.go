package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/drunlade/go-pnm/device"
	"github.com/drunlade/go-pnm/pnm"
	"github.com/drunlade/go-pnm/tftp"
)

var (
	logPath string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "gpnm",
		Short:         "PNM capture transfer and decoding tools",
		Long:          "gpnm moves Proactive Network Maintenance capture files between cable modems and a capture host, triggers captures over SSH, and decodes capture files.",
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "write a protocol log to this file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose transfer output")

	rootCmd.AddCommand(
		serveCmd(),
		getCmd(),
		putCmd(),
		decodeCmd(),
		captureCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the logger the --log flag asks for. The returned
// function releases it.
func newLogger() (tftp.Logger, func(), error) {
	if logPath == "" {
		return tftp.NoopLogger{}, func() {}, nil
	}
	fl, err := tftp.NewFileLogger(logPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return fl, func() { fl.Close() }, nil
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-sigChan
		cancel()
	}()
	return ctx, cancel
}

func transferCallbacks() *tftp.Callbacks {
	return &tftp.Callbacks{
		OnProgress: func(filename string, transferred, total int64, rate float64) {
			if verbose {
				fmt.Fprintf(os.Stderr, "\r%s: %d bytes (%.0f bytes/s)", filename, transferred, rate)
			}
		},
		OnTransferComplete: func(filename string, bytesTransferred int64, duration time.Duration) {
			if verbose {
				fmt.Fprintln(os.Stderr)
			}
			fmt.Fprintf(os.Stderr, "%s: %d bytes in %v\n", filename, bytesTransferred, duration)
		},
		OnError: func(err error, context string) {
			fmt.Fprintf(os.Stderr, "Error in %s: %v\n", context, err)
		},
	}
}

func serveCmd() *cobra.Command {
	var listen, root string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve capture transfers from a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closeLog, err := newLogger()
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, cancel := signalContext()
			defer cancel()

			srv := tftp.NewServer(tftp.NewDirStore(root),
				tftp.WithLogger(logger),
				tftp.WithCallbacks(transferCallbacks()),
				tftp.WithContext(ctx),
			)
			fmt.Fprintf(os.Stderr, "serving %s on %s\n", root, listen)
			return srv.ListenAndServe(listen)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":69", "UDP address to listen on")
	cmd.Flags().StringVar(&root, "root", ".", "directory served to peers")
	return cmd
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get HOST:PORT REMOTE [LOCAL]",
		Short: "Retrieve a capture file from a device",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  runGet,
	}
}

func runGet(cmd *cobra.Command, args []string) error {
	addr, remote := args[0], args[1]
	local := filepath.Base(remote)
	if len(args) == 3 {
		local = args[2]
	}

	logger, closeLog, err := newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := signalContext()
	defer cancel()

	out, err := os.Create(local)
	if err != nil {
		return fmt.Errorf("creating %s: %w", local, err)
	}

	client := tftp.NewClient(
		tftp.WithLogger(logger),
		tftp.WithCallbacks(transferCallbacks()),
	)
	if _, err := client.Get(ctx, addr, remote, out); err != nil {
		out.Close()
		os.Remove(local)
		return err
	}
	return out.Close()
}

func putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put HOST:PORT LOCAL [REMOTE]",
		Short: "Deposit a capture file on a server",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  runPut,
	}
}

func runPut(cmd *cobra.Command, args []string) error {
	addr, local := args[0], args[1]
	remote := filepath.Base(local)
	if len(args) == 3 {
		remote = args[2]
	}

	logger, closeLog, err := newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := signalContext()
	defer cancel()

	in, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("opening %s: %w", local, err)
	}
	defer in.Close()

	client := tftp.NewClient(
		tftp.WithLogger(logger),
		tftp.WithCallbacks(transferCallbacks()),
	)
	_, err = client.Put(ctx, addr, remote, in)
	return err
}

func decodeCmd() *cobra.Command {
	var mer, spectrum bool

	cmd := &cobra.Command{
		Use:   "decode FILE",
		Short: "Decode a capture file and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			switch {
			case mer && spectrum:
				return fmt.Errorf("--mer and --spectrum are mutually exclusive")
			case mer:
				d, err := pnm.DecodeRxMER(data)
				if err != nil {
					return err
				}
				return printJSON(d)
			case spectrum:
				header, payload, err := pnm.DecodeFile(data)
				if err != nil {
					return err
				}
				b, err := pnm.DecodeBinAmplitude(payload)
				if err != nil {
					return err
				}
				return printJSON(struct {
					Header pnm.Header            `json:"header"`
					Data   *pnm.BinAmplitudeData `json:"data"`
				}{header, b})
			default:
				header, _, err := pnm.DecodeFile(data)
				if err != nil {
					return err
				}
				return printJSON(header)
			}
		},
	}

	cmd.Flags().BoolVar(&mer, "mer", false, "decode the payload as RxMER subcarrier values")
	cmd.Flags().BoolVar(&spectrum, "spectrum", false, "decode the payload as spectrum bin amplitudes")
	return cmd
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}

func captureCmd() *cobra.Command {
	var user, password string
	var cmds []string

	cmd := &cobra.Command{
		Use:   "capture HOST",
		Short: "Trigger a capture on a device over SSH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(cmds) == 0 {
				return fmt.Errorf("at least one --cmd is required")
			}

			logger, closeLog, err := newLogger()
			if err != nil {
				return err
			}
			defer closeLog()

			if password == "" {
				password, err = promptPassword(user, args[0])
				if err != nil {
					return err
				}
			}

			ctx, cancel := signalContext()
			defer cancel()

			config := device.DefaultConfig()
			config.Addr = args[0]
			config.User = user
			config.Password = password

			sess, err := device.Dial(ctx, config, device.WithLogger(logger))
			if err != nil {
				return err
			}
			defer sess.Close()

			for _, c := range cmds {
				out, err := sess.Run(ctx, c)
				if err != nil {
					return err
				}
				fmt.Print(out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "device login user")
	cmd.Flags().StringVarP(&password, "password", "p", "", "device login password (prompted when empty)")
	cmd.Flags().StringArrayVar(&cmds, "cmd", nil, "capture trigger command, repeatable")
	cmd.MarkFlagRequired("user")
	return cmd
}

func promptPassword(user, host string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("no password given and stdin is not a terminal")
	}
	fmt.Fprintf(os.Stderr, "%s@%s password: ", user, host)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}
