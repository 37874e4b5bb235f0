package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/damacus/iron-folders/internal/browser"
	"github.com/damacus/iron-folders/internal/fserrors"
	"github.com/spf13/cobra"
)

const shellHelp = `Commands:
  ls                 list the current folder (or containers)
  cd <folder|..|/p>  enter a folder, go up, or jump to a path
  pwd                print the current path
  mkdir <name>       create a folder here
  put <file>...      upload local files here
  refresh            refetch the current view
  containers         list containers
  use <container>    enter a container
  leave              go back to container selection
  exit               quit
`

func newShellCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Browse interactively",
		Args:  checkArgs(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := state.app
			s := a.session(state.Service())
			if err := s.Start(cmd.Context()); err != nil {
				return err
			}
			return runShell(cmd.Context(), a, s, cmd.InOrStdin())
		},
	}
}

// runShell reads one command per line until EOF or exit. Command errors are
// printed and the loop continues.
func runShell(ctx context.Context, a *app, s *browser.Session, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		a.printf("%s> ", prompt(s))
		if !scanner.Scan() {
			a.printf("\n")
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		name, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)
		if name == "exit" || name == "quit" {
			return nil
		}
		if err := shellCommand(ctx, a, s, name, rest); err != nil {
			a.printf("error: %v\n", err)
		}
	}
}

func prompt(s *browser.Session) string {
	if s.State() != browser.StateBrowsing {
		return s.Service()
	}
	return location(s)
}

func shellCommand(ctx context.Context, a *app, s *browser.Session, name, rest string) error {
	switch name {
	case "help", "?":
		a.printf("%s", shellHelp)
	case "pwd":
		a.printf("/%s\n", s.Path())
	case "ls":
		if s.State() == browser.StateContainerSelection {
			for _, c := range s.Containers() {
				a.printf("  %s\n", c)
			}
			return nil
		}
		printListing(a, s)
	case "cd":
		return changeDir(ctx, s, rest)
	case "mkdir":
		return s.CreateFolder(ctx, rest)
	case "put":
		files, err := a.files.Files(strings.Fields(rest)...)
		if err != nil {
			return err
		}
		report, err := s.UploadFiles(ctx, files)
		printReport(a, files, report)
		return err
	case "refresh":
		return s.Refresh(ctx)
	case "containers":
		names, err := s.ListContainers(ctx)
		if err != nil {
			return err
		}
		for _, c := range names {
			a.printf("  %s\n", c)
		}
	case "use":
		return s.SelectContainer(ctx, rest)
	case "leave":
		return s.LeaveContainer()
	default:
		a.printf("unknown command %q, try help\n", name)
	}
	return nil
}

func changeDir(ctx context.Context, s *browser.Session, target string) error {
	switch {
	case target == "" || target == "/":
		return s.NavigateTo(ctx, "")
	case target == "..":
		return s.NavigateUp(ctx)
	case strings.Contains(target, "/"):
		if strings.HasPrefix(target, "/") {
			return s.NavigateTo(ctx, target)
		}
		return s.NavigateTo(ctx, s.Path()+target)
	}
	entry, ok := s.Listing().Find(target)
	if !ok {
		return fmt.Errorf("cd %q: %w: no such folder", target, fserrors.ErrInvalidSegment)
	}
	return s.NavigateInto(ctx, entry)
}
