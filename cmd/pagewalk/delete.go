package main

import (
	"fmt"

	"github.com/fwojciec/pagewalk"
)

// Run executes the delete command.
func (c *DeleteCmd) Run(deps *Dependencies) error {
	if !c.Force {
		fmt.Fprintf(deps.Stderr, "error: use --force to confirm deletion\n")
		return pagewalk.Errorf(pagewalk.EINVALID, "use --force to confirm deletion")
	}

	err := deps.Sessions.DeleteSession(deps.Ctx, c.ID)
	if pagewalk.ErrorCode(err) == pagewalk.ENOTFOUND {
		fmt.Fprintf(deps.Stderr, "error: session %q not found. Use 'pagewalk show' to list sessions.\n", c.ID)
		return err
	}
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", errorText(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Deleted session %s\n", c.ID)
	return nil
}
