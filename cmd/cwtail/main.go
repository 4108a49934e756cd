package main

import (
	"context"
	"os"

	"github.com/Nao-Mk2/cloudwatch-tail/cmd"
)

func main() {
	app := cmd.NewApp(cmd.DefaultOptions(), os.Stdin, os.Stdout, os.Stderr)
	root := cmd.NewRootCommand(app)
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	err := root.ExecuteContext(context.Background())
	os.Exit(cmd.Report(os.Stderr, err))
}
