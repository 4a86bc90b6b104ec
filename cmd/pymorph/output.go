package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oxhq/pymorph/core"
	"github.com/oxhq/pymorph/models"
	"github.com/oxhq/pymorph/refactor"
)

type liner interface{ StartLine() int }

type targetView struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
	Text string `json:"text,omitempty"`
}

type outcomeView struct {
	Results []core.Result `json:"results"`
	Summary string        `json:"summary"`
	Preview *core.Preview `json:"preview,omitempty"`
	Commit  *core.Result  `json:"commit,omitempty"`
}

type changeView struct {
	Path       string   `json:"path"`
	Operations []string `json:"operations"`
	Created    bool     `json:"created"`
	Added      int      `json:"added"`
	Removed    int      `json:"removed"`
}

type historyView struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	Status      string       `json:"status"`
	Immediate   bool         `json:"immediate"`
	Added       int          `json:"added"`
	Removed     int          `json:"removed"`
	CompletedAt string       `json:"completed_at"`
	Changes     []changeView `json:"changes"`
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printTargets(list refactor.TargetList) error {
	views := make([]targetView, 0, list.Len())
	for _, t := range list.All() {
		v := targetView{Kind: string(t.Kind()), Name: t.Name(), Path: a.session.Rel(t.Path())}
		if l, ok := t.(liner); ok {
			v.Line = l.StartLine()
		}
		if t.Kind() == refactor.KindLine {
			v.Text = strings.TrimSpace(t.Content())
		}
		views = append(views, v)
	}

	if a.asJSON {
		return a.printJSON(views)
	}
	for _, v := range views {
		switch {
		case v.Text != "":
			fmt.Fprintf(a.out, "%s:%d: %s\n", v.Path, v.Line, v.Text)
		case v.Line > 0:
			fmt.Fprintf(a.out, "%s\t%s:%d\n", v.Name, v.Path, v.Line)
		default:
			fmt.Fprintf(a.out, "%s\t%s\n", v.Name, v.Path)
		}
	}
	return nil
}

// printOutcome reports a batch and the commit that followed it. commit is
// nil when the batch was rolled back.
func (a *app) printOutcome(batch core.BatchResult, preview core.Preview, commit *core.Result) error {
	showPreview := (a.showDiff || a.session.DryRun()) && len(preview.Paths) > 0

	if a.asJSON {
		v := outcomeView{Results: batch.Results, Summary: batch.Summary(), Commit: commit}
		if showPreview {
			v.Preview = &preview
		}
		return a.printJSON(v)
	}

	for _, r := range batch.Results {
		mark := "✓"
		if !r.OK() {
			mark = "✗"
		}
		fmt.Fprintf(a.out, "%s %s\n", mark, firstLine(r.Message))
	}
	if showPreview {
		fmt.Fprintf(a.out, "\n%s", preview.Text())
	}
	if commit != nil {
		fmt.Fprintln(a.out, firstLine(commit.Message))
	}
	return nil
}

func (a *app) printHistory(rows []models.TransactionRecord) error {
	views := make([]historyView, 0, len(rows))
	for _, row := range rows {
		v := historyView{
			ID:          row.ID,
			Description: row.Description,
			Status:      row.Status,
			Immediate:   row.Immediate,
			Added:       row.Added,
			Removed:     row.Removed,
			CompletedAt: row.CompletedAt.Format("2006-01-02 15:04:05"),
		}
		for _, c := range row.Changes {
			var ops []string
			if len(c.Operations) > 0 {
				if err := json.Unmarshal(c.Operations, &ops); err != nil {
					a.log.Warn("unreadable operations in audit log", "tx", row.ID, "path", c.Path, "error", err)
				}
			}
			v.Changes = append(v.Changes, changeView{
				Path:       c.Path,
				Operations: ops,
				Created:    c.Created,
				Added:      c.Added,
				Removed:    c.Removed,
			})
		}
		views = append(views, v)
	}

	if a.asJSON {
		return a.printJSON(views)
	}
	if len(views) == 0 {
		fmt.Fprintln(a.out, "No recorded changes.")
		return nil
	}
	for _, v := range views {
		fmt.Fprintf(a.out, "%s  %s  %-11s %s  +%d -%d\n", v.CompletedAt, shortID(v.ID), v.Status, v.Description, v.Added, v.Removed)
		for _, c := range v.Changes {
			fmt.Fprintf(a.out, "    %s  %s\n", c.Path, strings.Join(c.Operations, ", "))
		}
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
