package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func printStartupBanner(cfg appConfig, socketOK bool) {
	fmt.Println(renderStartupBanner(cfg, socketOK))
}

func renderStartupBanner(cfg appConfig, socketOK bool) string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╦  ╦╦╔═╗╦╦
    ╚╗╔╝║║ ╦║║
     ╚╝ ╩╚═╝╩╩═╝`)

	row := func(on bool, label, value string) string {
		mark := dot
		if on {
			mark = check
		}
		return fmt.Sprintf("    %s  %-14s %s", mark, label, value)
	}

	var lines []string
	lines = append(lines, "", logo, "    "+dim.Render("v"+version), "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator, "")

	// Gateway
	lines = append(lines, bold.Render("    Gateway"), "")
	if cfg.APIEnabled {
		lines = append(lines, row(true, "HTTP API", cyan.Render(cfg.APIAddr)))
		lines = append(lines, row(true, "Live Feed", cyan.Render("ws://"+cfg.APIAddr+"/ws")))
	} else {
		lines = append(lines, row(false, "HTTP API", dim.Render("disabled")))
	}
	if socketOK {
		lines = append(lines, row(true, "Unix Socket", cyan.Render(shortenPath(cfg.SocketPath))))
	} else {
		lines = append(lines, row(false, "Unix Socket", dim.Render("unavailable")))
	}
	lines = append(lines, "")

	// Session
	lines = append(lines, bold.Render("    Session"), "")
	lines = append(lines, row(true, "Name", dim.Render(cfg.Session)))
	lines = append(lines, row(true, "Streams", dim.Render(strings.Join(cfg.Streams, ", "))))
	lines = append(lines, row(true, "Mode", dim.Render(cfg.Mode.Title())))
	if cfg.AutoStart {
		lines = append(lines, row(true, "Auto Start", dim.Render("all streams active")))
	} else {
		lines = append(lines, row(false, "Auto Start", dim.Render("streams stopped")))
	}
	lines = append(lines, row(true, "Intervals", dim.Render(fmt.Sprintf("ingest %s, sample %s, streams %s", cfg.IngestInterval, cfg.SampleInterval, cfg.StreamInterval))))
	lines = append(lines, "")

	// Storage
	lines = append(lines, bold.Render("    Storage"), "")
	if cfg.ArchiveEnabled {
		lines = append(lines, row(true, "Archive", dim.Render(shortenPath(cfg.DBPath))))
	} else {
		lines = append(lines, row(false, "Archive", dim.Render("disabled")))
	}
	if cfg.BackupEnabled {
		lines = append(lines, row(true, "Snapshots", dim.Render(shortenPath(cfg.BackupLocalDir))))
	} else {
		lines = append(lines, row(false, "Snapshots", dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, row(true, "Config File", dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, row(false, "Config File", dim.Render("default (no file)")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	return strings.Join(lines, "\n")
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
