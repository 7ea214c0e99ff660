package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// health is the state of one status check.
type health int

const (
	healthNote health = iota
	healthReady
	healthDegraded
	healthDown
)

func (h health) String() string {
	switch h {
	case healthReady:
		return "ready"
	case healthDegraded:
		return "degraded"
	case healthDown:
		return "down"
	default:
		return "-"
	}
}

func (h health) colors() text.Colors {
	switch h {
	case healthReady:
		return text.Colors{text.FgGreen}
	case healthDegraded:
		return text.Colors{text.FgYellow}
	case healthDown:
		return text.Colors{text.FgRed, text.Bold}
	default:
		return text.Colors{text.FgHiBlack}
	}
}

type statusCheck struct {
	Label  string
	Health health
	Detail string
}

// statusSection groups the checks for one subsystem: a library root set,
// the external tools, the catalog, the daemon or the metadata provider.
type statusSection struct {
	Title  string
	Checks []statusCheck
}

func (s *statusSection) add(label string, h health, detail string) {
	s.Checks = append(s.Checks, statusCheck{Label: label, Health: h, Detail: detail})
}

func (s *statusSection) note(label, detail string) {
	s.add(label, healthNote, detail)
}

// worst is the most severe health in the section.
func (s statusSection) worst() health {
	worst := healthNote
	for _, check := range s.Checks {
		if check.Health > worst {
			worst = check.Health
		}
	}
	return worst
}

// renderStatus writes one table per section. The section title carries the
// worst state among its checks.
func renderStatus(out io.Writer, sections []statusSection, colorize bool) {
	for i, section := range sections {
		if i > 0 {
			fmt.Fprintln(out)
		}
		tw := table.NewWriter()
		tw.SetStyle(table.StyleLight)
		tw.Style().Options.SeparateRows = false
		title := section.Title
		if worst := section.worst(); worst != healthNote {
			title += " (" + worst.String() + ")"
		}
		tw.SetTitle(title)
		for _, check := range section.Checks {
			state := check.Health.String()
			if colorize {
				state = check.Health.colors().Sprint(state)
			}
			tw.AppendRow(table.Row{check.Label, state, strings.TrimSpace(check.Detail)})
		}
		fmt.Fprintln(out, tw.Render())
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
