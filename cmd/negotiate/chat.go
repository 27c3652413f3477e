package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"zen7-console/internal/model"
	"zen7-console/internal/negotiation"
)

var chatItem model.Item

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Negotiate a payment for one item interactively",
	Long: `Selects the item, resets the completion oracle, and sends one turn per input line.
The first turn carries the structured payment request; later lines are forwarded as-is.

In-chat commands: /state shows correlation ids, /reset starts over, /quit exits.`,
	RunE: chatRun,
}

func init() {
	chatCmd.Flags().IntVar(&chatItem.ID, "item-id", 5, "catalog id of the item")
	chatCmd.Flags().StringVar(&chatItem.Name, "item-name", "Moutai", "item name")
	chatCmd.Flags().Int64Var(&chatItem.Price, "price", 1499, "price in major currency units")
	chatCmd.Flags().StringVar(&chatItem.Payee, "payee", "Merchant A", "merchant receiving the payment")
}

func chatRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := newNegotiator(cfg, logger)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), ui.title.Render(fmt.Sprintf("zen7 negotiate (%s)", cfg.Transport)))
	return runChat(ctx, n, chatItem, cmd.InOrStdin(), cmd.OutOrStdout())
}

// runChat reads one turn per line from in until EOF, /quit, or ctx is done.
func runChat(ctx context.Context, n *negotiation.Negotiator, item model.Item, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := negotiation.NewState()
	if err := n.SelectItem(ctx, state, item); err != nil {
		return fmt.Errorf("selecting item: %w", err)
	}
	fmt.Fprintln(out, ui.dim.Render("selected "+item.String()))

	lines, readErr := readLines(ctx, in)
	for {
		fmt.Fprint(out, ui.prompt.Render("You: "))

		var raw string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return <-readErr
			}
			raw = l
		}

		line := strings.TrimSpace(raw)
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/state":
			printState(out, state)
			continue
		case "/reset":
			if err := n.SelectItem(ctx, state, item); err != nil {
				return fmt.Errorf("selecting item: %w", err)
			}
			fmt.Fprintln(out, ui.dim.Render("negotiation restarted"))
			continue
		}

		printResult(out, n.Proceed(ctx, state, line))
	}
}

// readLines scans in on its own goroutine so the chat loop can stop on ctx
// while a read is pending. readErr receives the scanner error once lines closes.
func readLines(ctx context.Context, in io.Reader) (lines <-chan string, readErr <-chan error) {
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case out <- scanner.Text():
			case <-ctx.Done():
				errc <- nil
				return
			}
		}
		errc <- scanner.Err()
	}()
	return out, errc
}

func printResult(out io.Writer, res negotiation.Result) {
	if res.Status == negotiation.StatusFailed {
		fmt.Fprintln(out, ui.err.Render("✗ "+res.Message))
		return
	}

	label := string(res.State)
	switch res.State {
	case model.TaskStateCompleted:
		fmt.Fprintln(out, ui.success.Render("✓ ["+label+"] "+res.Message))
	case model.TaskStateInputRequired:
		fmt.Fprintln(out, ui.warn.Render("["+label+"]"), ui.agent.Render(res.Message))
	default:
		fmt.Fprintln(out, ui.dim.Render("["+label+"]"), ui.agent.Render(res.Message))
	}
}

func printState(out io.Writer, s *negotiation.State) {
	item := "none"
	if s.Item != nil {
		item = s.Item.String()
	}
	fmt.Fprintln(out, ui.dim.Render(fmt.Sprintf(
		"item=%s turn=%d context_id=%q task_id=%q completed=%t",
		item, s.Turn, s.ContextID, s.TaskID, s.Completed,
	)))
}
