package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bububa/regulation-agents/components"
	"github.com/bububa/regulation-agents/components/regulation"
	"github.com/bububa/regulation-agents/components/systemprompt/cot"
	"github.com/bububa/regulation-agents/schema"
)

// Aggregator merges domain answers into one answer
type Aggregator struct {
	catalog     *regulation.Catalog
	synthesizer *Agent
	logger      *logrus.Entry
}

type AggregatorOption func(*Aggregator)

// WithSynthesizer sets the LLM agent merging several domain answers
func WithSynthesizer(agent *Agent) AggregatorOption {
	return func(a *Aggregator) {
		a.synthesizer = agent
	}
}

func WithAggregatorLogger(logger *logrus.Entry) AggregatorOption {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

func NewAggregator(catalog *regulation.Catalog, opts ...AggregatorOption) *Aggregator {
	if catalog == nil {
		catalog = regulation.DefaultCatalog()
	}
	ret := &Aggregator{catalog: catalog}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.logger == nil {
		ret.logger = logrus.WithField("component", "aggregator")
	}
	return ret
}

// SynthesisPrompt returns the default system prompt of the synthesis agent
func SynthesisPrompt() *cot.Generator {
	return cot.New(
		cot.WithBackground([]string{
			"- You merge answers from several aviation regulatory domain experts into one answer.",
		}),
		cot.WithSteps([]string{
			"- Read every domain answer and group the requirements they state by topic.",
			"- Point out where the domains agree and where their requirements differ.",
		}),
		cot.WithOutputInstructs([]string{
			"- Use only statements present in the domain answers, never add requirements of your own.",
			"- Cite the domain tag in brackets after every statement, for example [EASA].",
			"- Mention domains that were unavailable at the end.",
			"- List the domain tags you cited.",
		}),
	)
}

// Aggregate merges answers, which keep the routing decision order.
// Failing every domain returns schema.ErrAllAgentsFailed.
func (a *Aggregator) Aggregate(ctx context.Context, query *schema.Query, answers []schema.DomainAnswer) (*schema.Answer, error) {
	ret := &schema.Answer{
		QueryID: query.ID,
		Answers: answers,
		Usage:   new(schema.Usage),
	}
	for _, v := range answers {
		ret.Usage.Merge(v.Usage)
	}
	succeeded := ret.Succeeded()
	if len(succeeded) == 0 {
		causes := make([]error, 0, len(answers))
		for _, v := range answers {
			causes = append(causes, fmt.Errorf("%s: %s", v.Domain, v.Error))
		}
		return nil, fmt.Errorf("%w: %w", schema.ErrAllAgentsFailed, errors.Join(causes...))
	}
	ret.Partial = len(succeeded) < len(answers)
	if len(succeeded) == 1 {
		ret.Content = succeeded[0].Content
		ret.Verified = true
		return ret, nil
	}
	if a.synthesizer == nil {
		ret.Content = a.Merge(answers)
		ret.Verified = true
		return ret, nil
	}
	content, usage, err := a.synthesize(ctx, query, answers)
	ret.Usage.Merge(usage)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		a.logger.WithError(err).WithField("query_id", query.ID).Warn("synthesis failed, merging answers")
		ret.Content = a.Merge(answers)
		return ret, nil
	}
	ret.Content = content
	ret.Verified = true
	return ret, nil
}

// Merge renders one markdown section per answered domain and lists failed domains last
func (a *Aggregator) Merge(answers []schema.DomainAnswer) string {
	var (
		sb     = new(strings.Builder)
		failed []schema.DomainAnswer
	)
	for _, v := range answers {
		if v.Failed() {
			failed = append(failed, v)
			continue
		}
		fmt.Fprintf(sb, "## %s\n\n%s\n", a.heading(v.Domain), strings.TrimSpace(v.Content))
		if len(v.Sources) > 0 {
			sb.WriteString("\nSources:\n")
			for _, src := range v.Sources {
				title := src.Title
				if title == "" {
					title = src.URL
				}
				if src.URL != "" && src.URL != title {
					fmt.Fprintf(sb, "- %s (%s)\n", title, src.URL)
				} else {
					fmt.Fprintf(sb, "- %s\n", title)
				}
			}
		}
		sb.WriteString("\n")
	}
	if len(failed) > 0 {
		sb.WriteString("## Unavailable\n\n")
		for _, v := range failed {
			fmt.Fprintf(sb, "- %s: %s\n", a.heading(v.Domain), v.Error)
		}
	}
	return strings.TrimSpace(sb.String())
}

func (a *Aggregator) heading(domain regulation.Domain) string {
	title := a.catalog.Title(domain)
	if title == string(domain) {
		return title
	}
	return fmt.Sprintf("%s (%s)", title, domain)
}

func (a *Aggregator) synthesize(ctx context.Context, query *schema.Query, answers []schema.DomainAnswer) (string, *schema.Usage, error) {
	sb := new(strings.Builder)
	fmt.Fprintf(sb, "Question: %s\n\nDomain answers:\n", query.Text)
	for _, v := range answers {
		sb.WriteString("\n")
		sb.WriteString(v.String())
		sb.WriteString("\n")
	}
	var (
		out     synthesis
		llmResp = new(components.LLMResponse)
	)
	if err := a.synthesizer.RunStructured(ctx, schema.NewString(sb.String()), &out, llmResp); err != nil {
		return "", llmResp.Usage, err
	}
	content := strings.TrimSpace(out.Answer)
	if content == "" {
		return "", llmResp.Usage, schema.ErrEmptyAnswer
	}
	for _, tag := range out.Cited {
		d, err := regulation.ParseDomain(tag)
		if err != nil || !answered(answers, d) {
			return "", llmResp.Usage, fmt.Errorf("synthesis cites %q without a domain answer", tag)
		}
	}
	return content, llmResp.Usage, nil
}

// synthesis is the structured answer of the synthesis agent
type synthesis struct {
	Answer string   `json:"answer" jsonschema:"title=Answer,description=One answer merging the domain answers" validate:"required"`
	Cited  []string `json:"cited" jsonschema:"title=Cited,description=Domain tags cited in the answer" validate:"required,min=1"`
}

func answered(answers []schema.DomainAnswer, domain regulation.Domain) bool {
	for _, v := range answers {
		if v.Domain == domain && !v.Failed() {
			return true
		}
	}
	return false
}
