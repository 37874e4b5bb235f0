// Command browser walks S3, Wasabi and Azure Blob storage as a folder tree.
package main

import (
	"fmt"
	"os"

	"github.com/damacus/iron-folders/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(nil).Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. A nil app is loaded from the config
// file before any subcommand runs.
func newRootCmd(a *app) *cobra.Command {
	var (
		configPath string
		service    string
	)
	state := &cliState{app: a, service: &service}

	root := &cobra.Command{
		Use:           "browser",
		Short:         "Browse flat object storage as folders",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if state.app != nil {
				if state.app.out == nil {
					state.app.out = cmd.OutOrStdout()
				}
				return nil
			}
			loaded, err := loadApp(configPath, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			state.app = loaded
			state.owned = true
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if state.owned {
				return state.app.Close()
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file")
	flags.StringVarP(&service, "service", "s", "aws", "Service identity: aws, wasabi, azure or minio")

	root.AddCommand(
		newConfigureCmd(state),
		newServicesCmd(state),
		newContainersCmd(state),
		newLsCmd(state),
		newMkdirCmd(state),
		newUploadCmd(state),
		newShellCmd(state),
	)
	return root
}

// cliState is shared by the subcommands; app is filled in by the root's
// pre-run hook.
type cliState struct {
	app     *app
	owned   bool
	service *string
}

func (s *cliState) Service() string {
	return *s.service
}

// checkArgs is a cobra.PositionalArgs that reports ranges like rclone does
func checkArgs(min, max int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < min {
			return fmt.Errorf("command %q needs %d arguments minimum: you provided %d", cmd.Name(), min, len(args))
		}
		if max >= 0 && len(args) > max {
			return fmt.Errorf("command %q needs %d arguments maximum: you provided %d", cmd.Name(), max, len(args))
		}
		return nil
	}
}
