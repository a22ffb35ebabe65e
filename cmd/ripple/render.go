// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianRename/services/rename"
	"github.com/AleutianAI/AleutianRename/services/rename/journal"
	"github.com/AleutianAI/AleutianRename/services/rename/model"
	"github.com/AleutianAI/AleutianRename/services/rename/ripple"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// renderer prints results for humans. Styling is only applied when the
// output is a terminal.
type renderer struct {
	out    io.Writer
	styled bool

	heading lipgloss.Style
	dim     lipgloss.Style
	errorS  lipgloss.Style
	warnS   lipgloss.Style
	okS     lipgloss.Style
	added   lipgloss.Style
	removed lipgloss.Style
}

func newRenderer(out io.Writer) *renderer {
	styled := false
	if f, ok := out.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return newStyledRenderer(out, styled)
}

func newStyledRenderer(out io.Writer, styled bool) *renderer {
	lr := lipgloss.NewRenderer(out)
	return &renderer{
		out:     out,
		styled:  styled,
		heading: lr.NewStyle().Bold(true),
		dim:     lr.NewStyle().Faint(true),
		errorS:  lr.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		warnS:   lr.NewStyle().Foreground(lipgloss.Color("11")),
		okS:     lr.NewStyle().Foreground(lipgloss.Color("10")),
		added:   lr.NewStyle().Foreground(lipgloss.Color("2")),
		removed: lr.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

func (r *renderer) style(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

func (r *renderer) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *renderer) severity(s model.Severity) string {
	label := strings.ToUpper(s.String())
	switch s {
	case model.SeverityError:
		return r.style(r.errorS, label)
	case model.SeverityWarning:
		return r.style(r.warnS, label)
	default:
		return r.style(r.dim, label)
	}
}

func (r *renderer) warnings(ws []model.Warning) {
	for _, w := range ws {
		r.printf("  %s %s: %s\n", r.style(r.warnS, "warning"), w.Code, w.Message)
	}
}

func (r *renderer) ripple(res *ripple.Result) {
	path := "full"
	if res.CheapPath {
		path = "cheap"
	}
	r.printf("%s %s\n", r.style(r.heading, "Ripple set of"), res.Target)
	r.printf("%s\n", r.style(r.dim, fmt.Sprintf("  %d partitions, %d married, %s path", res.Partitions, res.Married, path)))
	covered := make(map[model.MethodID]bool, len(res.Covered))
	for _, m := range res.Covered {
		covered[m] = true
	}
	for _, m := range res.Methods {
		var tags []string
		if m.Binary {
			tags = append(tags, "binary")
		}
		if covered[m] {
			tags = append(tags, "covered")
		}
		line := "  " + m.String()
		if len(tags) > 0 {
			line += " " + r.style(r.dim, "("+strings.Join(tags, ", ")+")")
		}
		r.printf("%s\n", line)
	}
	r.warnings(res.Warnings)
}

func (r *renderer) scope(res *rename.ScopeResult) {
	r.printf("%s %s\n", r.style(r.heading, "Search scope of"), res.Method)
	if len(res.Methods) > 1 {
		r.printf("%s\n", r.style(r.dim, fmt.Sprintf("  covering %d ripple methods", len(res.Methods))))
	}
	projects := make([]string, len(res.Scope.Projects))
	for i, p := range res.Scope.Projects {
		projects[i] = string(p)
	}
	r.printf("  projects: %s\n", strings.Join(projects, ", "))
	for _, c := range res.Scope.Containers {
		r.printf("  %s\n", c)
	}
	r.warnings(res.Scope.Warnings)
}

func (r *renderer) conflicts(report *model.ConflictReport) {
	if report.Empty() {
		r.printf("%s\n", r.style(r.okS, "No conflicts."))
		return
	}
	for _, c := range report.Entries {
		kind := string(c.Kind)
		if c.Fatal {
			kind += ", fatal"
		}
		loc := string(c.Location.Container)
		if loc != "" {
			loc = fmt.Sprintf("%s@%d", loc, c.Location.Offset)
		}
		r.printf("  %s [%s] %s %s\n", r.severity(c.Severity), kind, c.Message, r.style(r.dim, loc))
	}
}

func (r *renderer) plan(p *rename.Plan, preview string) {
	r.printf("%s %s -> %s\n", r.style(r.heading, "Rename"), p.Method, p.NewName)
	if p.ID != "" {
		r.printf("%s\n", r.style(r.dim, "  plan "+p.ID))
	}
	r.printf("  %d methods, %d edits in %d containers\n",
		len(p.Ripple.Methods), len(p.Edits), countContainers(p.Edits))
	r.warnings(p.Warnings)
	r.conflicts(p.Report)
	if p.Blocking() {
		r.printf("%s\n", r.style(r.errorS, "Blocked."))
	}
	if preview != "" {
		r.printf("\n")
		r.diff(preview)
	}
}

func (r *renderer) diff(preview string) {
	for _, line := range strings.SplitAfter(preview, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			r.printf("%s", r.style(r.heading, line))
		case strings.HasPrefix(line, "+"):
			r.printf("%s", r.style(r.added, line))
		case strings.HasPrefix(line, "-"):
			r.printf("%s", r.style(r.removed, line))
		default:
			r.printf("%s", line)
		}
	}
}

func (r *renderer) history(metas []*journal.Metadata) {
	if len(metas) == 0 {
		r.printf("No recorded plans.\n")
		return
	}
	for _, m := range metas {
		status := r.style(r.okS, "clean")
		if m.Blocking {
			status = r.style(r.errorS, "blocked")
		}
		r.printf("%s  %s  %s -> %s  %d edits, %d conflicts  %s\n",
			m.ID,
			time.UnixMilli(m.CreatedAtMilli).Format(time.DateTime),
			m.Method, m.NewName, m.Edits, m.Conflicts, status)
	}
}

func (r *renderer) record(rec *journal.Record) {
	r.printf("%s %s -> %s\n", r.style(r.heading, "Plan "+rec.ID), rec.Method, rec.NewName)
	r.printf("  %d methods, %d edits in %d containers\n", len(rec.Methods), len(rec.Edits), countContainers(rec.Edits))
	for _, m := range rec.Methods {
		r.printf("  %s\n", m)
	}
	r.warnings(rec.Warnings)
	r.conflicts(rec.Report)
}

func countContainers(edits []model.TextEdit) int {
	seen := make(map[model.ContainerID]bool)
	for _, e := range edits {
		seen[e.Container] = true
	}
	return len(seen)
}
