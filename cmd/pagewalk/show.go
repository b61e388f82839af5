package main

import (
	"fmt"
	"time"

	"github.com/fwojciec/pagewalk"
)

// Run executes the show command.
func (c *ShowCmd) Run(deps *Dependencies) error {
	if c.ID == "" {
		return c.list(deps)
	}

	s, err := deps.Sessions.FindSessionByID(deps.Ctx, c.ID)
	if pagewalk.ErrorCode(err) == pagewalk.ENOTFOUND {
		fmt.Fprintf(deps.Stderr, "error: session %q not found. Use 'pagewalk show' to list sessions.\n", c.ID)
		return err
	}
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", errorText(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Session:     %s\n", s.ID)
	fmt.Fprintf(deps.Stdout, "State:       %s\n", s.State)
	fmt.Fprintf(deps.Stdout, "Method:      %s\n", s.Method)
	fmt.Fprintf(deps.Stdout, "Start URL:   %s\n", s.StartURL)
	fmt.Fprintf(deps.Stdout, "Current URL: %s\n", s.CurrentURL)
	fmt.Fprintf(deps.Stdout, "Pages:       %d (%d of %d attempts)\n", s.CurrentPageIndex, s.AttemptCount, s.MaxAttempts)
	fmt.Fprintf(deps.Stdout, "Items:       %d\n", s.ItemsCollected)
	fmt.Fprintf(deps.Stdout, "Visited:     %d URLs\n", len(s.VisitedURLs))
	fmt.Fprintf(deps.Stdout, "Updated:     %s\n", s.UpdatedAt.Local().Format(time.DateTime))
	return nil
}

func (c *ShowCmd) list(deps *Dependencies) error {
	sessions, err := deps.Sessions.FindSessions(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", errorText(err))
		return err
	}

	if len(sessions) == 0 {
		fmt.Fprintln(deps.Stdout, "No sessions found. Use 'pagewalk run' to start one.")
		return nil
	}

	for _, s := range sessions {
		fmt.Fprintf(deps.Stdout, "%s  %-13s  %4d pages  %6d items  %s\n",
			s.ID, s.State, s.CurrentPageIndex, s.ItemsCollected, s.StartURL)
	}
	return nil
}
