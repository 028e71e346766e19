package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/thruflo/loom/internal/config"
	"github.com/thruflo/loom/internal/control"
)

var (
	ctlHost        string
	ctlPort        int
	ctlNoHandshake bool
)

var ctlCmd = &cobra.Command{
	Use:   "ctl [command...]",
	Short: "Talk to a running program's control port",
	Long: `Connects to the control port of an instrumented program.

With no command, starts an interactive session: each line is sent as one
request and its reply is printed. With a command, sends it once, prints
the reply and exits.

Commands:
  get_name                          identify the program
  add <fix ID> <extension name>     install or replace a fix
  del <fix ID>                      remove a fix
  ls                                list installed fixes

Examples:
  loom ctl
  loom ctl --port 1300 add 7 /srv/fixes/hotfix_a.filter
  loom ctl ls`,
	RunE: runCtl,
}

func init() {
	ctlCmd.Flags().StringVar(&ctlHost, "host", config.DefaultControlHost, "control endpoint host")
	ctlCmd.Flags().IntVarP(&ctlPort, "port", "p", config.DefaultControlPort, "control endpoint port")
	ctlCmd.Flags().BoolVar(&ctlNoHandshake, "no-handshake", false, "skip get_name when an interactive session starts")
	rootCmd.AddCommand(ctlCmd)
}

func runCtl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	endpoint := cfg.Control
	if cmd.Flags().Changed("host") {
		endpoint.Host = ctlHost
	}
	if cmd.Flags().Changed("port") {
		endpoint.Port = ctlPort
	}
	if endpoint.Port <= 0 || endpoint.Port > 65535 {
		return fmt.Errorf("invalid port %d", endpoint.Port)
	}
	addr := endpoint.Address()

	ctx := commandContext(cmd)
	client, err := control.Dial(ctx, addr)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		defer client.Close()
		reply, err := client.Do(strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("%s: %w", addr, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply)
		return nil
	}

	in := cmd.InOrStdin()
	session := &control.Interactive{
		In:        in,
		Out:       cmd.OutOrStdout(),
		Handshake: !ctlNoHandshake,
	}
	if isTerminal(in) {
		session.Prompt = "loom> "
	}

	err = session.Run(ctx, client)
	if errors.Is(err, control.ErrDisconnected) {
		// The disconnect notice has been printed; the session is over.
		return nil
	}
	return err
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
