package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/retrieve"
)

// snippetWidth caps the chunk text printed per search hit.
const snippetWidth = 160

// Run executes the search command.
func (c *SearchCmd) Run(deps *Dependencies) error {
	req := leadscout.SearchRequest{Query: c.Query, TopK: c.Limit, Filters: domainFilter(c.Domain)}
	for _, col := range c.Collection {
		req.Collections = append(req.Collections, leadscout.Collection(strings.ToLower(col)))
	}

	hits, err := deps.Retriever.Search(deps.Ctx, req)
	if err != nil {
		return err
	}
	if c.JSON {
		enc := json.NewEncoder(deps.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}
	if len(hits) == 0 {
		fmt.Fprintln(deps.Stdout, "No results.")
		return nil
	}
	for i, h := range hits {
		fmt.Fprintf(deps.Stdout, "%d. [%s] %s %.3f\n", i+1, h.Collection, location(h.Metadata), h.Score)
		fmt.Fprintf(deps.Stdout, "   %s\n", snippet(h.Text, snippetWidth))
	}
	return nil
}

// Run executes the ask command.
func (c *AskCmd) Run(deps *Dependencies) error {
	ans, err := deps.Retriever.Ask(deps.Ctx, leadscout.AskRequest{
		SearchRequest: leadscout.SearchRequest{Query: c.Question, TopK: c.Limit, Filters: domainFilter(c.Domain)},
	})
	if err != nil {
		return err
	}
	printAnswer(deps.Stdout, ans)
	return nil
}

// Run executes the chat command. Each line read from stdin is one question;
// older turns are folded into a running summary.
func (c *ChatCmd) Run(deps *Dependencies) error {
	mem := retrieve.NewMemory(c.Window)
	scanner := bufio.NewScanner(deps.Stdin)
	fmt.Fprint(deps.Stderr, "> ")
	for scanner.Scan() {
		q := strings.TrimSpace(scanner.Text())
		switch q {
		case "":
			fmt.Fprint(deps.Stderr, "> ")
			continue
		case "exit", "quit":
			return nil
		}

		ans, err := deps.Retriever.Converse(deps.Ctx, mem, leadscout.AskRequest{
			SearchRequest: leadscout.SearchRequest{Query: q, Filters: domainFilter(c.Domain)},
			FollowUps:     true,
		})
		if err != nil {
			if deps.Ctx.Err() != nil {
				return deps.Ctx.Err()
			}
			fmt.Fprintf(deps.Stderr, "error: %s\n", leadscout.ErrorMessage(err))
		} else {
			printAnswer(deps.Stdout, ans)
		}
		fmt.Fprint(deps.Stderr, "> ")
	}
	return scanner.Err()
}

func printAnswer(w io.Writer, ans *leadscout.Answer) {
	fmt.Fprintln(w, ans.Text)
	if len(ans.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, s := range ans.Sources {
			fmt.Fprintf(w, "  [%d] %s %s\n", s.Index, s.Collection, strings.TrimSpace(s.Domain+" "+s.URL))
		}
	}
	if len(ans.FollowUps) > 0 {
		fmt.Fprintln(w, "\nFollow-ups:")
		for _, f := range ans.FollowUps {
			fmt.Fprintf(w, "  - %s\n", f)
		}
	}
}

func domainFilter(domain string) []leadscout.Filter {
	if domain == "" {
		return nil
	}
	return []leadscout.Filter{{Key: leadscout.FilterDomain, Value: domain}}
}

func location(md leadscout.ChunkMetadata) string {
	if md.URL != "" {
		return md.URL
	}
	return md.Domain
}

// snippet flattens whitespace and cuts s to n runes.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
