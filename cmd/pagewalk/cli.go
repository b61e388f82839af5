package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/pagewalk"
	"github.com/fwojciec/pagewalk/crawl"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx      context.Context
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	Logger   *slog.Logger
	Sessions pagewalk.SessionService
	Engine   *crawl.Engine
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	DB      string `name:"db" env:"PAGEWALK_DB" default:"${db_path}" help:"SQLite database path"`
	Redis   string `env:"PAGEWALK_REDIS_ADDR" help:"Store sessions in Redis at this address instead of SQLite"`
	Verbose bool   `short:"v" help:"Log every navigation step"`

	Run    RunCmd    `cmd:"" help:"Start walking a paginated listing"`
	Resume ResumeCmd `cmd:"" help:"Continue a paused or interrupted session"`
	Show   ShowCmd   `cmd:"" help:"List sessions or show one session"`
	Delete DeleteCmd `cmd:"" help:"Delete a stored session"`
}

// BackendFlags select and tune how pages are loaded.
type BackendFlags struct {
	Backend   string        `enum:"rod,http" default:"rod" help:"Page backend: rod (headless browser) or http (static HTML)"`
	Headful   bool          `help:"Show the browser window"`
	NoStealth bool          `help:"Disable browser fingerprint evasion"`
	Timeout   time.Duration `default:"30s" help:"HTTP request timeout (http backend)"`
	Interval  time.Duration `default:"500ms" help:"Minimum gap between navigations to one site"`
	Out       string        `short:"o" default:"." type:"path" help:"Directory for <session>.jsonl item files"`
}

// RunCmd is the "run" subcommand.
type RunCmd struct {
	URL         string        `arg:"" help:"Listing URL to start from"`
	Method      string        `short:"m" enum:"auto,nextButton,loadMore,infiniteScroll,urlPattern,api" default:"auto" help:"Pagination method"`
	MaxPages    int           `short:"n" default:"100" help:"Maximum number of pages to extract"`
	WaitTimeout time.Duration `default:"10s" help:"Maximum wait for a page to settle"`
	Seed        bool          `help:"Also collect the items of the start page"`

	BackendFlags `embed:""`
}

// ResumeCmd is the "resume" subcommand.
type ResumeCmd struct {
	ID string `arg:"" help:"Session ID"`

	BackendFlags `embed:""`
}

// ShowCmd is the "show" subcommand.
type ShowCmd struct {
	ID string `arg:"" optional:"" help:"Session ID (omit to list all sessions)"`
}

// DeleteCmd is the "delete" subcommand.
type DeleteCmd struct {
	ID    string `arg:"" help:"Session ID"`
	Force bool   `help:"Confirm deletion"`
}
