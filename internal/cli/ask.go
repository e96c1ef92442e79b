package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bububa/regulation-agents/components/regulation"
	"github.com/bububa/regulation-agents/schema"
)

// queryFlags are the flags building a query
type queryFlags struct {
	domains []string
	user    string
	session string
	format  string
}

func (f *queryFlags) register(c *cobra.Command) {
	c.Flags().StringSliceVarP(&f.domains, "domain", "d", nil, "explicit domain tags, skips keyword routing (repeatable)")
	c.Flags().StringVar(&f.user, "user", "", "originating user")
	c.Flags().StringVar(&f.session, "session", "", "session key for follow-up questions")
	c.Flags().StringVar(&f.format, "format", "pretty", "Output format: pretty|json")
}

func (f *queryFlags) query(args []string) (*schema.Query, error) {
	domains, err := regulation.ParseDomains(f.domains)
	if err != nil {
		return nil, err
	}
	q := schema.NewQuery(strings.Join(args, " "), domains...)
	q.User = f.user
	q.Session = f.session
	return q, nil
}

func askCmd(opts *options) *cobra.Command {
	flags := new(queryFlags)

	c := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question through the router and the domain agents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			q, err := flags.query(args)
			if err != nil {
				return err
			}
			answer, err := a.orchestrator.Run(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printAnswer(cmd.OutOrStdout(), answer, flags.format)
		},
	}
	flags.register(c)
	return c
}

func routeCmd(opts *options) *cobra.Command {
	flags := new(queryFlags)

	c := &cobra.Command{
		Use:   "route [question]",
		Short: "Show which domain agents would receive a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			q, err := flags.query(args)
			if err != nil {
				return err
			}
			decision, err := a.orchestrator.Route(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printDecision(cmd.OutOrStdout(), decision, flags.format)
		},
	}
	flags.register(c)
	return c
}

func domainsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "List the registered domain agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DOMAIN\tTITLE\tAGENT")
			for _, t := range a.registry.Tools() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Domain(), a.catalog.Title(t.Domain()), t.Agent().Name())
			}
			return tw.Flush()
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDecision(w io.Writer, decision *schema.RoutingDecision, format string) error {
	if format == "json" {
		return printJSON(w, decision)
	}
	fmt.Fprintln(w, decision.String())
	for _, d := range decision.Domains {
		if terms := decision.Matches[d]; len(terms) > 0 {
			fmt.Fprintf(w, "  %s: %s\n", d, strings.Join(terms, ", "))
		}
	}
	return nil
}

func printAnswer(w io.Writer, answer *schema.Answer, format string) error {
	if format == "json" {
		return printJSON(w, answer)
	}
	fmt.Fprintln(w, answer.Content)
	fmt.Fprintln(w)
	if answer.Decision != nil {
		fmt.Fprintf(w, "routing: %s\n", answer.Decision.String())
	}
	var flags []string
	if answer.Verified {
		flags = append(flags, "verified")
	}
	if answer.Partial {
		flags = append(flags, "partial")
	}
	if answer.Cached {
		flags = append(flags, "cached")
	}
	if len(flags) > 0 {
		fmt.Fprintf(w, "status: %s\n", strings.Join(flags, ", "))
	}
	if answer.Usage != nil {
		fmt.Fprintf(w, "tokens: %d\n", answer.Usage.Total())
	}
	return nil
}
