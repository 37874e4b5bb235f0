package main

import (
	"errors"
	"strings"

	"github.com/damacus/iron-folders/internal/browser"
	"github.com/damacus/iron-folders/internal/credentials"
	"github.com/damacus/iron-folders/internal/fserrors"
	"github.com/damacus/iron-folders/internal/models"
	"github.com/damacus/iron-folders/internal/upload"
	"github.com/damacus/iron-folders/internal/utils"
	"github.com/spf13/cobra"
)

func newConfigureCmd(state *cliState) *cobra.Command {
	var (
		keyed  credentials.Keyed
		url    string
		remove bool
	)
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Save or delete the credentials of a service",
		Long: `Save the credentials of the service selected with --service.

aws, wasabi and minio take an access key pair; azure takes a SAS URL.
Credentials are sealed with the key file and stored in the credentials
database.`,
		Args: checkArgs(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, service := state.app, state.Service()
			if remove {
				if err := a.store.DeleteConfig(service); err != nil {
					return err
				}
				a.printf("Removed %s credentials\n", service)
				return nil
			}

			var creds credentials.Credentials = keyed
			if credentials.ExpectsURL(service) {
				creds = credentials.URL{URL: url}
			}
			if err := a.store.SaveConfig(service, creds); err != nil {
				return err
			}
			a.printf("Saved %s credentials\n", service)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&keyed.AccessKey, "access-key", "", "Access key ID")
	flags.StringVar(&keyed.SecretKey, "secret-key", "", "Secret access key")
	flags.StringVar(&keyed.Bucket, "bucket", "", "Bucket the credentials are pinned to")
	flags.StringVar(&keyed.Region, "region", "", "Region, e.g. us-east-1")
	flags.StringVar(&keyed.Endpoint, "endpoint", "", "Endpoint host for S3 compatible services")
	flags.StringVar(&url, "url", "", "SAS URL (azure)")
	flags.BoolVar(&remove, "delete", false, "Delete the stored credentials")
	return cmd
}

func newServicesCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List service identities and whether they are configured",
		Args:  checkArgs(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := state.app
			configured, err := a.store.Services()
			if err != nil {
				return err
			}
			have := make(map[string]bool, len(configured))
			for _, s := range configured {
				have[s] = true
			}
			for _, s := range credentials.KnownServices() {
				status := "not configured"
				if have[s] {
					status = "configured"
				}
				mode := a.cfg.Services[s].Mode
				if mode == "" {
					mode = "direct"
				}
				a.printf("%-8s %-16s %s\n", s, status, mode)
			}
			return nil
		},
	}
}

func newContainersCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "containers",
		Short: "List the buckets or containers the credentials can see",
		Args:  checkArgs(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := state.app
			s := a.session(state.Service())
			if err := s.Start(cmd.Context()); err != nil {
				return err
			}
			if s.ImplicitContainer() {
				a.printf("%s (pinned)\n", s.Container())
				return nil
			}
			for _, name := range s.Containers() {
				a.printf("%s\n", name)
			}
			return nil
		},
	}
}

func newLsCmd(state *cliState) *cobra.Command {
	var container string
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List the folders and files directly under path",
		Args:  checkArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := state.app
			s, err := a.open(cmd.Context(), state.Service(), container)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				if err := s.NavigateTo(cmd.Context(), args[0]); err != nil {
					return err
				}
			}
			printListing(a, s)
			return nil
		},
	}
	cmd.Flags().StringVar(&container, "container", "", "Bucket or container to browse")
	return cmd
}

func newMkdirCmd(state *cliState) *cobra.Command {
	var container, path string
	cmd := &cobra.Command{
		Use:   "mkdir name",
		Short: "Create a folder",
		Args:  checkArgs(1, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := state.app
			s, err := a.open(cmd.Context(), state.Service(), container)
			if err != nil {
				return err
			}
			if err := s.NavigateTo(cmd.Context(), path); err != nil {
				return err
			}
			if err := s.CreateFolder(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.printf("Created %s%s/\n", s.Path(), strings.TrimSpace(args[0]))
			return nil
		},
	}
	cmd.Flags().StringVar(&container, "container", "", "Bucket or container to write to")
	cmd.Flags().StringVar(&path, "path", "", "Parent folder, e.g. docs/")
	return cmd
}

func newUploadCmd(state *cliState) *cobra.Command {
	var container, path string
	cmd := &cobra.Command{
		Use:   "upload file...",
		Short: "Upload local files into a folder",
		Long: `Upload local files into the folder given by --path.

Files whose extension is not allowed are skipped and reported; the others
are uploaded concurrently. Names are sanitized to [A-Za-z0-9._-].`,
		Args: checkArgs(1, -1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := state.app
			files, err := a.files.Files(args...)
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context(), state.Service(), container)
			if err != nil {
				return err
			}
			if err := s.NavigateTo(cmd.Context(), path); err != nil {
				return err
			}
			report, err := s.UploadFiles(cmd.Context(), files)
			printReport(a, files, report)
			return err
		},
	}
	cmd.Flags().StringVar(&container, "container", "", "Bucket or container to write to")
	cmd.Flags().StringVar(&path, "path", "", "Destination folder, e.g. docs/")
	return cmd
}

func printListing(a *app, s *browser.Session) {
	a.printf("%s\n", location(s))
	entries := s.Entries()
	if len(entries) == 0 {
		a.printf("  (empty)\n")
		return
	}
	for _, e := range entries {
		a.printf("  %s\n", utils.FormatEntry(e))
	}
}

func location(s *browser.Session) string {
	return utils.FormatLocation(s.Service(), s.Container(), s.Path())
}

func printReport(a *app, files []models.File, report browser.UploadReport) {
	sizes := make(map[string]int64, len(files))
	for _, f := range files {
		sizes[upload.Sanitize(f.Name)] = f.Size
	}
	for _, key := range report.Accepted {
		name := key[strings.LastIndex(key, "/")+1:]
		a.printf("uploaded %s (%s)\n", key, utils.FormatFileSize(sizes[name]))
	}
	for _, r := range report.Rejected {
		a.printf("skipped  %s: %s\n", r.Name, rejectionText(r))
	}
	a.printf("%s\n", report.Message())
}

func rejectionText(r upload.Rejection) string {
	if errors.Is(r.Err, fserrors.ErrEmptyName) {
		return "file name is required"
	}
	return "File type not allowed: " + upload.Extension(r.Name)
}
