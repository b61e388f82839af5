package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/pagewalk"
	"github.com/fwojciec/pagewalk/crawl"
	"golang.org/x/sync/errgroup"
)

// Run executes the run command.
func (c *RunCmd) Run(deps *Dependencies) error {
	resp, err := deps.Engine.Start(deps.Ctx, crawl.StartRequest{
		URL:         c.URL,
		Method:      pagewalk.Method(c.Method),
		MaxPages:    c.MaxPages,
		WaitTimeout: c.WaitTimeout,
		ExtractSeed: c.Seed,
	})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", errorText(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Started session %s\n", resp.SessionID)
	return drive(deps, resp.SessionID)
}

// Run executes the resume command.
func (c *ResumeCmd) Run(deps *Dependencies) error {
	resp, err := deps.Engine.Resume(deps.Ctx, c.ID)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", errorText(err))
		return err
	}
	if !resp.Accepted {
		status, err := deps.Engine.Status(deps.Ctx, c.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(deps.Stdout, "Session %s is %s; nothing to resume\n", c.ID, status.State)
		return nil
	}

	fmt.Fprintf(deps.Stdout, "Resumed session %s\n", c.ID)
	return drive(deps, c.ID)
}

// drive waits for session id to finish while forwarding stdin commands and
// turning an interrupt into a stop.
func drive(deps *Dependencies, id string) error {
	done := make(chan struct{})
	var final pagewalk.Status

	g, ctx := errgroup.WithContext(context.WithoutCancel(deps.Ctx))
	g.Go(func() error {
		defer close(done)
		status, err := deps.Engine.Wait(ctx, id)
		final = status
		return err
	})
	g.Go(func() error {
		return control(deps, id, done)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(deps.Stdout, "Session %s %s: %d pages, %d items\n",
		id, strings.ToLower(string(final.State)), final.CurrentPageIndex, final.ItemsCollected)
	if final.State == pagewalk.StateError {
		return fmt.Errorf("session %s failed: %s", id, final.LastError)
	}
	return nil
}

// control handles p/r/s commands until done is closed.
func control(deps *Dependencies, id string, done <-chan struct{}) error {
	lines := readLines(deps.Stdin, done)
	interrupted := deps.Ctx.Done()
	for {
		select {
		case <-done:
			return nil
		case <-interrupted:
			interrupted = nil
			fmt.Fprintln(deps.Stderr, "interrupted, stopping")
			if _, err := deps.Engine.Stop(context.WithoutCancel(deps.Ctx), id); err != nil {
				return err
			}
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if err := command(deps, id, line); err != nil {
				return err
			}
		}
	}
}

func command(deps *Dependencies, id, line string) error {
	ctx := context.WithoutCancel(deps.Ctx)
	var resp crawl.Response
	var err error
	var name string
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return nil
	case "p", "pause":
		name = "pause"
		resp, err = deps.Engine.Pause(ctx, id)
	case "r", "resume":
		name = "resume"
		resp, err = deps.Engine.Resume(ctx, id)
	case "s", "stop":
		name = "stop"
		resp, err = deps.Engine.Stop(ctx, id)
	default:
		fmt.Fprintf(deps.Stderr, "unknown command %q (p = pause, r = resume, s = stop)\n", strings.TrimSpace(line))
		return nil
	}
	if err != nil {
		return err
	}
	if !resp.Accepted {
		fmt.Fprintf(deps.Stderr, "%s ignored\n", name)
	}
	return nil
}

// readLines sends each line of r until EOF or until stop is closed.
func readLines(r io.Reader, stop <-chan struct{}) <-chan string {
	if r == nil {
		return nil
	}
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
	}()
	return lines
}

// errorText returns the message of application errors and the full text of
// anything else.
func errorText(err error) string {
	if pagewalk.ErrorCode(err) == pagewalk.EINTERNAL {
		return err.Error()
	}
	return pagewalk.ErrorMessage(err)
}
