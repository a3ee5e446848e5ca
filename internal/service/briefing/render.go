package briefing

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zhouzirui/lifesync/backend/internal/model/finance"
	"github.com/zhouzirui/lifesync/backend/internal/model/note"
	"github.com/zhouzirui/lifesync/backend/internal/model/task"
)

const (
	dateLayout     = "2006-01-02"
	previewLimit   = 150
	truncateMarker = "..."
)

// Budget status labels.
const (
	StatusGood     = "Good"
	StatusWarning  = "Warning"
	StatusCritical = "Critical"
	StatusExceeded = "Exceeded"
)

// BudgetStatus classifies the spend-to-budget ratio.
func BudgetStatus(spent, budget float64) string {
	if budget <= 0 {
		if spent <= 0 {
			return StatusGood
		}
		return StatusExceeded
	}
	ratio := spent / budget
	switch {
	case ratio <= 0.5:
		return StatusGood
	case ratio <= 0.7:
		return StatusWarning
	case ratio <= 0.9:
		return StatusCritical
	default:
		return StatusExceeded
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

func renderTasks(tasks []task.Task, now time.Time) string {
	if len(tasks) == 0 {
		return NoTasks
	}

	var overdue, today, future []task.Task
	for _, t := range tasks {
		if t.Completed {
			continue
		}
		switch {
		case !t.End.IsZero() && t.End.Before(now):
			overdue = append(overdue, t)
		case sameDay(now, t.Start) || (!t.End.IsZero() && sameDay(now, t.End)):
			today = append(today, t)
		default:
			future = append(future, t)
		}
	}

	var b strings.Builder
	b.WriteString("Here are your tasks:\n")

	fmt.Fprintf(&b, "\nOverdue Tasks (%d):\n", len(overdue))
	for _, t := range overdue {
		fmt.Fprintf(&b, "- %s (Due: %s)\n", t.Title, t.End.Format(dateLayout))
	}

	fmt.Fprintf(&b, "\nToday's Tasks (%d):\n", len(today))
	for _, t := range today {
		fmt.Fprintf(&b, "- %s\n", t.Title)
	}

	fmt.Fprintf(&b, "\nFuture Tasks (%d):\n", len(future))
	for _, t := range future {
		if t.Start.IsZero() {
			fmt.Fprintf(&b, "- %s\n", t.Title)
			continue
		}
		fmt.Fprintf(&b, "- %s (Scheduled: %s)\n", t.Title, t.Start.Format(dateLayout))
	}
	return b.String()
}

type categoryTotal struct {
	name     string
	actual   float64
	budgeted float64
}

func renderFinance(f finance.Finance) string {
	if f.Empty() {
		return NoFinance
	}

	var spent, allocated float64
	byCategory := make(map[string]*categoryTotal)
	for _, e := range f.Expenses {
		spent += e.Amount
		allocated += e.Budget

		name := strings.TrimSpace(e.Category)
		if name == "" {
			name = "Other"
		}
		total, ok := byCategory[name]
		if !ok {
			total = &categoryTotal{name: name}
			byCategory[name] = total
		}
		total.actual += e.Amount
		total.budgeted += e.Budget
	}

	categories := make([]*categoryTotal, 0, len(byCategory))
	for _, total := range byCategory {
		categories = append(categories, total)
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].actual != categories[j].actual {
			return categories[i].actual > categories[j].actual
		}
		return categories[i].name < categories[j].name
	})

	var b strings.Builder
	b.WriteString("Here's your financial information:\n\n")
	fmt.Fprintf(&b, "Monthly Income: $%.2f\n", f.Income)
	fmt.Fprintf(&b, "Monthly Budget: $%.2f\n", f.Budget)
	fmt.Fprintf(&b, "Total Expenses: $%.2f\n", spent)
	fmt.Fprintf(&b, "Current Balance: $%.2f\n", f.Income-spent)
	fmt.Fprintf(&b, "Budget Status: %s\n", BudgetStatus(spent, f.Budget))

	b.WriteString("\nBudget Allocation:\n")
	fmt.Fprintf(&b, "- Total Budget Allocated: $%.2f (%s of budget)\n", allocated, percent(allocated, f.Budget))
	fmt.Fprintf(&b, "- Budget Remaining: $%.2f\n", f.Budget-spent)

	b.WriteString("\nExpenses by Category:\n")
	if len(categories) == 0 {
		b.WriteString("- none recorded\n")
	}
	for _, c := range categories {
		fmt.Fprintf(&b, "- %s: $%.2f (%s of income), budgeted $%.2f\n", c.name, c.actual, percent(c.actual, f.Income), c.budgeted)
	}
	return b.String()
}

func percent(part, whole float64) string {
	if whole <= 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", part/whole*100)
}

func renderNotes(notes []note.Note) string {
	if len(notes) == 0 {
		return NoNotes
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your notes (%d most recent):\n", len(notes))
	for _, n := range notes {
		fmt.Fprintf(&b, "- %q (Updated: %s): %s\n", n.Title, n.UpdatedAt.Format(dateLayout), preview(n.Content))
	}
	return b.String()
}

func preview(content string) string {
	flat := strings.ReplaceAll(content, "\r\n", " ")
	flat = strings.ReplaceAll(flat, "\n", " ")
	if utf8.RuneCountInString(flat) <= previewLimit {
		return flat
	}
	return string([]rune(flat)[:previewLimit]) + truncateMarker
}
