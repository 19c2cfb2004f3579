package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/EberSantana/flowedu-sub004/internal/ui/theme"
)

func printHeader(w io.Writer, width int, format string, args ...any) {
	fmt.Fprintln(w, theme.Header.Render(fmt.Sprintf(format, args...)))
	printRule(w, width)
}

func printRule(w io.Writer, width int) {
	fmt.Fprintln(w, theme.Rule.Render(strings.Repeat("─", width)))
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func formatCost(usd float64) string {
	if usd < 0.01 {
		return fmt.Sprintf("$%.4f", usd)
	}
	return fmt.Sprintf("$%.2f", usd)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ID %q", arg)
	}
	return id, nil
}
