package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Vovarama1992/webchat-skin/internal/config"
	"github.com/Vovarama1992/webchat-skin/internal/webchat"
)

func newReplayCmd() *cobra.Command {
	var (
		sound   bool
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "replay <payloads.json>",
		Short: "Run recorded vendor payloads through an engaged chat and print the transcript",
		Long: "The file holds either a JSON array of vendor data objects or " +
			`{"messages":[{"data":{...}}, ...]} as returned by the history endpoint.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "read payloads")
			}
			payloads, err := decodePayloads(raw)
			if err != nil {
				return err
			}

			level := "warn"
			if verbose {
				level = "debug"
			}
			logger := newLogger(config.LogConfig{Level: level, Pretty: true})
			return replay(cmd.OutOrStdout(), payloads, sound, logger)
		},
	}
	cmd.Flags().BoolVar(&sound, "sound", true, "sound toggle of the replayed chat")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log ignored payloads")
	return cmd
}

func decodePayloads(raw []byte) ([]webchat.Payload, error) {
	var list []webchat.Payload
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var history struct {
		Messages []struct {
			Data webchat.Payload `json:"data"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, errors.Wrap(err, "decode payloads")
	}
	for _, m := range history.Messages {
		if m.Data != nil {
			list = append(list, m.Data)
		}
	}
	return list, nil
}

// replay feeds payloads to an EngagedState as its pending messages.
func replay(out io.Writer, payloads []webchat.Payload, sound bool, logger zerolog.Logger) error {
	c := &printContainer{out: out, sound: sound}
	engaged := webchat.NewEngagedState(nopSDK{}, c, payloads,
		func() { fmt.Fprintln(out, "[close chat requested]") },
		webchat.WithEngagementEnded(func() { fmt.Fprintln(out, "[engagement ended]") }),
		webchat.WithLogger(logger),
	)
	engaged.Stop()
	return c.err
}

type printContainer struct {
	out   io.Writer
	sound bool
	err   error
}

func (c *printContainer) Transcript() webchat.Transcript { return c }
func (c *printContainer) IsSoundActive() bool            { return c.sound }
func (c *printContainer) PlayMessageReceivedSound()      { c.printf("[sound]\n") }

func (c *printContainer) AddAgentMsg(text, ts string)    { c.printf("agent     %s %s\n", ts, text) }
func (c *printContainer) AddCustomerMsg(text, ts string) { c.printf("customer  %s %s\n", ts, text) }
func (c *printContainer) AddSystemMsg(m webchat.SystemMsg) {
	c.printf("system    %s\n", m.Msg)
}
func (c *printContainer) AddAutomatonMsg(text string) { c.printf("automaton %s\n", text) }
func (c *printContainer) AddQuickReply(w webchat.QuickReplyWidget, text, ts string) {
	c.printf("quickreply %s %s (%d options)\n", ts, text, len(w.Nodes))
}

func (c *printContainer) printf(format string, args ...any) {
	if c.err != nil {
		return
	}
	_, c.err = fmt.Fprintf(c.out, format, args...)
}

type nopSDK struct{}

type nopSubscription struct{}

func (nopSubscription) Unsubscribe() {}

func (nopSDK) Subscribe(webchat.MessageHandler) webchat.Subscription { return nopSubscription{} }
func (nopSDK) SendMessage(context.Context, string) error             { return nil }
