package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/thruflo/loom/internal/protocol"
)

// ErrDisconnected wraps the failure that ended an interactive session.
var ErrDisconnected = errors.New("disconnected")

// Usage is printed at the start of an interactive session and on "help".
const Usage = `Usage:
	add <fix ID> <extension name>
	del <fix ID>
	ls
	get_name
	exit`

// Interactive is the operator loop: read a line, send it, print the
// single reply, repeat.
type Interactive struct {
	In  io.Reader
	Out io.Writer

	// Prompt is printed before each line is read. Leave empty when input
	// is not a terminal.
	Prompt string

	// Handshake sends get_name once before reading input.
	Handshake bool
}

// Run drives the session until the operator exits, input ends or the
// connection fails. A connection failure prints a disconnect notice and
// returns an error wrapping ErrDisconnected. The client is closed on
// return.
func (i *Interactive) Run(ctx context.Context, c *Client) error {
	defer c.Close()

	fmt.Fprintln(i.Out, Usage)

	peer := c.RemoteAddr().String()

	if i.Handshake {
		name, err := c.GetName()
		if err != nil {
			return i.disconnected(peer, err)
		}
		fmt.Fprintf(i.Out, "Connected to %s (%s)\n", name, peer)
	}

	scanner := bufio.NewScanner(i.In)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if i.Prompt != "" {
			fmt.Fprint(i.Out, i.Prompt)
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "help":
			fmt.Fprintln(i.Out, Usage)
			continue
		}

		reply, err := c.Do(line)
		if errors.Is(err, protocol.ErrFrameTooLarge) {
			fmt.Fprintf(i.Out, "Error: command longer than %d bytes\n", protocol.MaxFrameSize-1)
			continue
		}
		if err != nil {
			return i.disconnected(peer, err)
		}
		fmt.Fprintf(i.Out, "Response: %s\n", reply)
	}
}

func (i *Interactive) disconnected(peer string, err error) error {
	fmt.Fprintf(i.Out, "%s disconnected\n", peer)
	return fmt.Errorf("%w: %w", ErrDisconnected, err)
}
