package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/Nao-Mk2/cloudwatch-tail/internal/client"
	"github.com/Nao-Mk2/cloudwatch-tail/internal/prompt"
	"github.com/Nao-Mk2/cloudwatch-tail/internal/tail"
)

var (
	errorPrefix = color.New(color.FgRed, color.Bold)
	hintColor   = color.New(color.FgYellow)
)

// Report prints err for the user and returns the process exit code.
// A nil error or a cancelled prompt exits 0; everything else exits 1.
func Report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, prompt.ErrAborted) {
		fmt.Fprintln(w, "Cancelled.")
		return 0
	}

	errorPrefix.Fprint(w, "Error: ")
	fmt.Fprintln(w, err.Error())

	var launchErr *tail.LaunchError
	var backendErr *client.BackendError
	switch {
	case errors.As(err, &launchErr):
		hintColor.Fprintln(w, "Hint: "+launchErr.Hint())
	case errors.As(err, &backendErr) && backendErr.Code == "ResourceNotFoundException":
		hintColor.Fprintln(w, "Hint: check the log group name, region and profile")
	case errors.Is(err, prompt.ErrNoTerminal):
		hintColor.Fprintln(w, "Hint: pass the arguments on the command line when not running in a terminal")
	}
	return 1
}
