// Package browser implements the browser session: a single-owner state
// machine that walks a flat object store as a folder tree.
//
// A session moves Uninitialized -> AwaitingCredentials -> ContainerSelection
// <-> Browsing. Backends whose credentials pin a container skip
// ContainerSelection. Every network call runs under the session timeout and
// state is only committed after the call succeeds; a failure leaves the
// previous state in place and sets the error overlay.
//
// A Session is not safe for concurrent use.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/damacus/iron-folders/internal/backend"
	"github.com/damacus/iron-folders/internal/credentials"
	"github.com/damacus/iron-folders/internal/fserrors"
	"github.com/damacus/iron-folders/internal/logging"
	"github.com/damacus/iron-folders/internal/metrics"
	"github.com/damacus/iron-folders/internal/models"
	"github.com/damacus/iron-folders/internal/upload"
	"github.com/damacus/iron-folders/internal/vpath"
	"go.uber.org/zap"
)

// DefaultTimeout bounds each backend call
const DefaultTimeout = 30 * time.Second

// ErrInvalidState is returned when an operation is not available in the
// current state, e.g. navigating before a container is selected.
var ErrInvalidState = errors.New("operation not available in current state")

// State of a Session
type State int

const (
	StateUninitialized State = iota
	StateAwaitingCredentials
	StateContainerSelection
	StateBrowsing
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingCredentials:
		return "awaiting-credentials"
	case StateContainerSelection:
		return "container-selection"
	case StateBrowsing:
		return "browsing"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Option configures a Session
type Option func(*Session)

// WithTimeout sets the per-call timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

// WithValidator replaces the default upload validator
func WithValidator(v *upload.Validator) Option {
	return func(s *Session) { s.validator = v }
}

// WithLogger sets the session logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = l }
}

// Session is the browser state for one service identity
type Session struct {
	service   string
	provider  credentials.Provider
	factory   backend.Factory
	validator *upload.Validator
	timeout   time.Duration
	log       *zap.Logger

	state      State
	adapter    backend.Adapter
	implicit   bool
	container  string
	containers []string
	path       string
	listing    models.Listing
	loading    bool
	err        error
}

// New creates an uninitialized session
func New(service string, provider credentials.Provider, factory backend.Factory, opts ...Option) *Session {
	s := &Session{
		service:   service,
		provider:  provider,
		factory:   factory,
		validator: upload.NewValidator(nil),
		timeout:   DefaultTimeout,
		log:       logging.L(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("service", service))
	return s
}

// Accessors

func (s *Session) State() State { return s.state }
func (s *Session) Service() string { return s.service }
func (s *Session) Path() string { return s.path }
func (s *Session) DisplayPath() string { return vpath.DisplayRoot(s.path) }
func (s *Session) Container() string { return s.container }
func (s *Session) Containers() []string { return s.containers }
func (s *Session) Listing() models.Listing { return s.listing }
func (s *Session) Entries() []models.Entry { return s.listing.Entries() }
func (s *Session) Breadcrumbs() []models.Breadcrumb { return vpath.Breadcrumbs(s.path) }
func (s *Session) Loading() bool { return s.loading }
func (s *Session) Err() error { return s.err }

// ImplicitContainer reports whether the credentials pin the container
func (s *Session) ImplicitContainer() bool { return s.implicit }

func (s *Session) transition(to State) {
	if s.state != to {
		s.log.Debug("session transition",
			zap.Stringer("from", s.state),
			zap.Stringer("to", to),
		)
	}
	s.state = to
}

// call runs fn under the session timeout with the loading overlay set
func (s *Session) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	s.loading = true
	err := fn(ctx)
	s.loading = false

	if err != nil {
		if !errors.Is(err, fserrors.ErrTimeout) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%s %s: %w", s.service, op, fserrors.ErrTimeout)
		} else {
			err = fserrors.Classify(s.service, op, err)
		}
	}
	s.err = err
	if err != nil {
		s.log.Warn("backend call failed", zap.String("op", op), zap.Error(err))
	}
	return err
}

// bounded applies the session timeout to ctx
func (s *Session) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// loadCredentials asks the provider for this service's credentials under
// the session timeout
func (s *Session) loadCredentials(ctx context.Context) (credentials.Credentials, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	creds, err := s.provider.GetConfig(ctx, s.service)
	switch {
	case err == nil:
		return creds, nil
	case errors.Is(err, fserrors.ErrMissingCredentials), errors.Is(err, fserrors.ErrTimeout):
		return nil, err
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, fmt.Errorf("%s load credentials: %w", s.service, fserrors.ErrTimeout)
	}
	return nil, fmt.Errorf("%s: load credentials: %w", s.service, err)
}

// Start loads credentials and opens the backend. Missing credentials leave
// the session in AwaitingCredentials; call Start again once they exist.
func (s *Session) Start(ctx context.Context) error {
	if s.state != StateUninitialized && s.state != StateAwaitingCredentials {
		return fmt.Errorf("start: %w", ErrInvalidState)
	}
	s.transition(StateAwaitingCredentials)

	creds, err := s.loadCredentials(ctx)
	if err != nil {
		s.err = err
		return err
	}
	if creds == nil {
		s.err = fmt.Errorf("%s: %w", s.service, fserrors.ErrMissingCredentials)
		return s.err
	}

	adapter, err := s.factory.NewAdapter(s.service, creds)
	if err != nil {
		s.err = err
		return err
	}

	if name, ok := backend.DefaultContainer(adapter); ok {
		var l models.Listing
		err := s.call(ctx, "list", func(ctx context.Context) (err error) {
			l, err = adapter.List(ctx, name, vpath.Root)
			return err
		})
		if err != nil {
			return err
		}
		s.adapter = adapter
		s.implicit = true
		s.container = name
		s.containers = []string{name}
		s.path = vpath.Root
		s.listing = l
		s.transition(StateBrowsing)
		return nil
	}

	var names []string
	err = s.call(ctx, "list containers", func(ctx context.Context) (err error) {
		names, err = adapter.ListContainers(ctx)
		return err
	})
	if err != nil {
		return err
	}
	s.adapter = adapter
	s.implicit = false
	s.containers = names
	s.transition(StateContainerSelection)
	return nil
}

// ListContainers refreshes the container names
func (s *Session) ListContainers(ctx context.Context) ([]string, error) {
	if s.adapter == nil {
		return nil, fmt.Errorf("list containers: %w", ErrInvalidState)
	}
	var names []string
	err := s.call(ctx, "list containers", func(ctx context.Context) (err error) {
		names, err = s.adapter.ListContainers(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.containers = names
	return names, nil
}

// SelectContainer enters a container at its root
func (s *Session) SelectContainer(ctx context.Context, name string) error {
	if s.adapter == nil || s.implicit {
		return fmt.Errorf("select container: %w", ErrInvalidState)
	}
	if name == "" {
		return fmt.Errorf("select container: %w", fserrors.ErrEmptyName)
	}
	l, err := s.list(ctx, name, vpath.Root)
	if err != nil {
		return err
	}
	s.container = name
	s.path = vpath.Root
	s.listing = l
	s.transition(StateBrowsing)
	return nil
}

// LeaveContainer returns to container selection
func (s *Session) LeaveContainer() error {
	if s.state != StateBrowsing || s.implicit {
		return fmt.Errorf("leave container: %w", ErrInvalidState)
	}
	s.container = ""
	s.path = vpath.Root
	s.listing = models.Listing{}
	s.err = nil
	s.transition(StateContainerSelection)
	return nil
}

func (s *Session) list(ctx context.Context, container, path string) (models.Listing, error) {
	var l models.Listing
	err := s.call(ctx, "list", func(ctx context.Context) (err error) {
		l, err = s.adapter.List(ctx, container, path)
		return err
	})
	return l, err
}

// goTo lists path and commits it on success
func (s *Session) goTo(ctx context.Context, path string) error {
	l, err := s.list(ctx, s.container, path)
	if err != nil {
		return err
	}
	s.path = path
	s.listing = l
	return nil
}

func (s *Session) requireBrowsing(op string) error {
	if s.state != StateBrowsing {
		return fmt.Errorf("%s: %w", op, ErrInvalidState)
	}
	return nil
}

// NavigateInto descends into a folder entry of the current listing
func (s *Session) NavigateInto(ctx context.Context, entry models.Entry) error {
	if err := s.requireBrowsing("navigate"); err != nil {
		return err
	}
	if !entry.IsFolder {
		return fmt.Errorf("navigate into %q: %w: not a folder", entry.Name, fserrors.ErrInvalidSegment)
	}
	next, err := vpath.Descend(s.path, entry.Name)
	if err != nil {
		return err
	}
	return s.goTo(ctx, next)
}

// NavigateUp moves to the parent path
func (s *Session) NavigateUp(ctx context.Context) error {
	if err := s.requireBrowsing("navigate up"); err != nil {
		return err
	}
	parent, err := vpath.Ascend(s.path)
	if err != nil {
		return err
	}
	return s.goTo(ctx, parent)
}

// NavigateTo jumps to an arbitrary path, e.g. a breadcrumb
func (s *Session) NavigateTo(ctx context.Context, path string) error {
	if err := s.requireBrowsing("navigate"); err != nil {
		return err
	}
	return s.goTo(ctx, vpath.Normalize(path))
}

// Refresh refetches whatever the current state shows
func (s *Session) Refresh(ctx context.Context) error {
	switch s.state {
	case StateUninitialized, StateAwaitingCredentials:
		return s.Start(ctx)
	case StateContainerSelection:
		_, err := s.ListContainers(ctx)
		return err
	}
	return s.goTo(ctx, s.path)
}

// CreateFolder writes a folder marker in the current path and refetches
func (s *Session) CreateFolder(ctx context.Context, name string) error {
	if err := s.requireBrowsing("create folder"); err != nil {
		return err
	}
	trimmed, err := backend.FolderName(name)
	if err != nil {
		return err
	}
	err = s.call(ctx, "create folder", func(ctx context.Context) error {
		return s.adapter.CreateFolder(ctx, s.container, s.path, trimmed)
	})
	if err != nil {
		return err
	}
	s.log.Info("folder created", zap.String("container", s.container), zap.String("path", s.path), zap.String("name", trimmed))
	return s.goTo(ctx, s.path)
}

// UploadReport describes the outcome of UploadFiles
type UploadReport struct {
	// Accepted holds the destination keys handed to the backend
	Accepted []string
	Rejected []upload.Rejection
}

// Message summarizes the report for display
func (r UploadReport) Message() string {
	return upload.SuccessMessage(len(r.Accepted))
}

// UploadFiles validates files, uploads the accepted ones to the current
// path and refetches. Rejected files never stop their siblings. When
// nothing is accepted no backend call is made and the joined rejections
// are returned.
func (s *Session) UploadFiles(ctx context.Context, files []models.File) (UploadReport, error) {
	var report UploadReport
	if err := s.requireBrowsing("upload"); err != nil {
		return report, err
	}

	accepted, rejected := s.validator.Filter(files)
	report.Rejected = rejected
	for _, r := range rejected {
		reason := "extension"
		if errors.Is(r.Err, fserrors.ErrEmptyName) {
			reason = "empty_name"
		}
		metrics.RecordRejectedUpload(reason)
		s.log.Info("upload rejected", zap.String("file", r.Name), zap.Error(r.Err))
	}

	if len(accepted) == 0 {
		if len(rejected) == 0 {
			return report, nil
		}
		errs := make([]error, 0, len(rejected))
		for _, r := range rejected {
			errs = append(errs, r)
		}
		return report, errors.Join(errs...)
	}

	err := s.call(ctx, "upload", func(ctx context.Context) error {
		return s.adapter.Upload(ctx, s.container, s.path, accepted)
	})
	if err != nil {
		return report, err
	}
	for _, f := range accepted {
		report.Accepted = append(report.Accepted, backend.ObjectKey(s.path, f.Name))
	}
	s.log.Info("files uploaded", zap.String("container", s.container), zap.Int("count", len(accepted)))
	return report, s.goTo(ctx, s.path)
}
