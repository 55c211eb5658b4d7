// Package render draws charts of accounts and balances for the terminal.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/tinoosan/books/internal/service/account"
	"github.com/tinoosan/books/internal/service/balance"
	"github.com/tinoosan/books/internal/service/coa"
)

var (
	placeholderStyle = lipgloss.NewStyle().Bold(true)
	codeStyle        = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#808080", Dark: "#808080"})
	negativeStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"})
	hiddenStyle      = lipgloss.NewStyle().Faint(true)
	successStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D787", Dark: "#00D787"})
)

// Options controls tree output.
type Options struct {
	// Precision is the number of decimal places shown.
	Precision  int
	Convention balance.Convention
	// OwnOnly prints each account's own balance instead of its subtree total.
	OwnOnly    bool
	ShowHidden bool
	// Plain disables styling, for pipes and tests.
	Plain bool
}

type line struct {
	label  string
	amount string
	neg    bool
	node   *account.Node
}

// Tree writes the chart rooted at root, one account per line, with balances
// right-aligned in a single column. bals may be nil.
func Tree(w io.Writer, root *account.Node, bals balance.Balances, opts Options) error {
	var lines []line
	collect(root, "", "", bals, opts, &lines)

	labelWidth, amountWidth := 0, 0
	for _, l := range lines {
		labelWidth = max(labelWidth, runewidth.StringWidth(l.label))
		amountWidth = max(amountWidth, runewidth.StringWidth(l.amount))
	}
	for _, l := range lines {
		label := runewidth.FillRight(l.label, labelWidth)
		amount := runewidth.FillLeft(l.amount, amountWidth)
		if !opts.Plain {
			label = styleLabel(label, l.node)
			if l.neg {
				amount = negativeStyle.Render(amount)
			}
		}
		out := label
		if bals != nil {
			out += "  " + amount
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(out, " ")); err != nil {
			return err
		}
	}
	return nil
}

func collect(n *account.Node, prefix, branch string, bals balance.Balances, opts Options, out *[]line) {
	a := n.Account
	l := line{label: prefix + branch + a.Code + " " + a.Name, node: n}
	if bals != nil {
		b := bals[a.ID]
		d := b.Total
		if opts.OwnOnly {
			d = b.Own
		}
		d = balance.Display(a.Kind, d, opts.Convention)
		l.amount = d.Round(opts.Precision).Pad(opts.Precision).String()
		l.neg = d.IsNeg()
	}
	*out = append(*out, l)

	children := make([]*account.Node, 0, len(n.Children))
	for _, c := range n.Children {
		if c.Account.IsHidden && !opts.ShowHidden {
			continue
		}
		children = append(children, c)
	}
	childPrefix := prefix
	switch branch {
	case "├── ":
		childPrefix += "│   "
	case "└── ":
		childPrefix += "    "
	}
	for i, c := range children {
		b := "├── "
		if i == len(children)-1 {
			b = "└── "
		}
		collect(c, childPrefix, b, bals, opts, out)
	}
}

func styleLabel(label string, n *account.Node) string {
	code := n.Account.Code
	i := strings.Index(label, code)
	if i < 0 {
		return label
	}
	head, rest := label[:i], label[i+len(code):]
	style := lipgloss.NewStyle()
	switch {
	case n.Account.IsHidden:
		style = hiddenStyle
	case n.Account.IsPlaceholder:
		style = placeholderStyle
	}
	return head + codeStyle.Render(code) + style.Render(rest)
}

// ImportResult writes a one-line import summary.
func ImportResult(w io.Writer, res coa.Result, plain bool) error {
	msg := fmt.Sprintf("created %d, updated %d, unchanged %d", res.Created, res.Updated, res.Unchanged)
	if res.Skipped > 0 {
		msg += fmt.Sprintf(", skipped %d", res.Skipped)
	}
	if !plain && res.Changed() {
		msg = successStyle.Render(msg)
	}
	_, err := fmt.Fprintln(w, msg)
	return err
}
