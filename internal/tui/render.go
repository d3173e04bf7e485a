package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/jask/tallybook/internal/database/repository"
	"github.com/jask/tallybook/internal/service"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
)

// Renderer formats ledger data as terminal tables.
type Renderer struct {
	CurrencySymbol string
	DateFormat     string
}

func (r Renderer) money(v float64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%s%.2f", sign, r.CurrencySymbol, v)
}

func (r Renderer) date(d time.Time) string {
	layout := r.DateFormat
	if layout == "" {
		layout = repository.DateLayout
	}
	return d.Format(layout)
}

func pct(v float64) string { return fmt.Sprintf("%.1f%%", v) }

// render builds a bordered table; numeric columns are right aligned.
func render(title string, headers []string, numeric map[int]bool, rows [][]string) string {
	if len(rows) == 0 {
		return titleStyle.Render(title) + "\n" + mutedStyle.Render("no rows")
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if numeric[col] {
				return numberStyle
			}
			return cellStyle
		})
	return titleStyle.Render(title) + "\n" + t.String()
}

// Query renders whichever rows res holds.
func (r Renderer) Query(res service.QueryResult) string {
	switch res.Kind {
	case service.ByMonth:
		return r.ByMonth(res.ByMonth)
	case service.ByTag:
		return r.ByTag(res.ByTag)
	default:
		return r.Details(string(res.Kind), res.Details)
	}
}

func (r Renderer) ByMonth(rows []service.ByMonthRow) string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, []string{
			row.Account, r.date(row.Month),
			r.money(row.Credit), r.money(row.Debit), r.money(row.Net), r.money(row.Balance),
			pct(row.CreditPct), pct(row.DebitPct),
			r.money(row.CumulativeCredit), r.money(row.CumulativeDebit),
		})
	}
	return render("By month",
		[]string{"Account", "Month", "Credit", "Debit", "Net", "Balance", "Credit %", "Debit %", "Cum. credit", "Cum. debit"},
		map[int]bool{2: true, 3: true, 4: true, 5: true, 6: true, 7: true, 8: true, 9: true}, out)
}

func (r Renderer) ByTag(rows []service.ByTagRow) string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		tag := row.Tag
		if tag == "" {
			tag = mutedStyle.Render("(untagged)")
		}
		out = append(out, []string{tag, r.money(row.Debit), pct(row.DebitPct), r.money(row.Credit), pct(row.CreditPct)})
	}
	return render("By tag",
		[]string{"Tag", "Debit", "Debit %", "Credit", "Credit %"},
		map[int]bool{1: true, 2: true, 3: true, 4: true}, out)
}

func (r Renderer) Details(title string, rows []service.DetailRow) string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, []string{
			fmt.Sprint(row.ID), r.date(row.Date), row.Account, row.Description, strings.Join(row.Tags, ", "),
			r.money(row.Amount), pct(row.Pct), r.money(row.Cumulative), pct(row.CumulativePct),
		})
	}
	return render(strings.ToUpper(title[:1])+title[1:],
		[]string{"ID", "Date", "Account", "Description", "Tags", "Amount", "%", "Cumulative", "Cum. %"},
		map[int]bool{0: true, 5: true, 6: true, 7: true, 8: true}, out)
}

func (r Renderer) Accounts(accounts []repository.Account) string {
	out := make([][]string, 0, len(accounts))
	for _, a := range accounts {
		alias, selected := "", ""
		if a.Alias != nil {
			alias = *a.Alias
		}
		if a.Selected {
			selected = "*"
		}
		out = append(out, []string{selected, a.Name, alias})
	}
	return render("Accounts", []string{"", "Name", "Alias"}, nil, out)
}

func (r Renderer) Rules(rules []repository.TagRule) string {
	out := make([][]string, 0, len(rules))
	for _, rule := range rules {
		out = append(out, []string{fmt.Sprint(rule.ID), rule.Tag, rule.HumanReadable})
	}
	return render("Tag rules", []string{"ID", "Tag", "Rule"}, map[int]bool{0: true}, out)
}

func (r Renderer) Stats(path string, st service.Stats) string {
	rows := [][]string{
		{"Database", path},
		{"Accounts", fmt.Sprint(st.Accounts)},
		{"Transactions", fmt.Sprint(st.Transactions)},
		{"Tag rules", fmt.Sprint(st.TagRules)},
		{"Tag assignments", fmt.Sprint(st.Assignments)},
		{"Undo steps", fmt.Sprint(st.UndoSteps)},
	}
	return render("Ledger", []string{"", ""}, nil, rows)
}
