package update

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/codelanx/plugintemplate/internal/artifact"
	"github.com/codelanx/plugintemplate/internal/logging"
	"github.com/codelanx/plugintemplate/pkg/api"
)

// DebugStackLevel is the debug level from which error details are logged.
const DebugStackLevel = 3

// Release is the latest published release as seen by a run.
type Release struct {
	Name        string
	FileName    string
	DownloadURL string
	Version     string
	MD5         string
}

// Notifier is told about an available update that was not downloaded.
type Notifier interface {
	UpdateAvailable(r Release)
}

type NotifierFunc func(r Release)

func (f NotifierFunc) UpdateAvailable(r Release) { f(r) }

type Options struct {
	Choice         Choice
	CurrentVersion string
	ProjectID      int
	// FileName is the plugin's own file name; the artifact is staged under it.
	FileName   string
	StagingDir string

	Client        *api.Client
	Source        artifact.Source
	VersionSource VersionSource
	Notifier      Notifier
	DebugLevel    int
	Logger        *slog.Logger
}

type Checker struct {
	opts Options
	log  *slog.Logger

	once   sync.Once
	done   chan struct{}
	result atomic.Int32
	latest atomic.Pointer[Release]
}

// New fills unset collaborators with defaults: the public endpoint, an
// http-only artifact source and FromName.
func New(opts Options) *Checker {
	if opts.Client == nil {
		opts.Client = api.NewClient("")
	}
	if opts.Source == nil {
		mux := artifact.NewMux()
		web := artifact.NewHTTPHandler(nil)
		mux.Handle("http", web)
		mux.Handle("https", web)
		opts.Source = mux
	}
	if opts.VersionSource == nil {
		opts.VersionSource = FromName
	}
	l := opts.Logger
	if l == nil {
		l = logging.L("update")
	}
	return &Checker{
		opts: opts,
		log:  l.With(logging.KeyProjectID, opts.ProjectID, "choice", opts.Choice.String()),
		done: make(chan struct{}),
	}
}

// Run performs the check and optional download once and returns the result.
// Later calls, including concurrent ones, return the same result without
// network activity.
func (c *Checker) Run(ctx context.Context) Result {
	c.once.Do(func() {
		defer close(c.done)
		res, rel := c.run(ctx)
		if rel != nil {
			c.latest.Store(rel)
		}
		c.result.Store(int32(res))

		attrs := []any{logging.KeyResult, res.String()}
		if rel != nil {
			attrs = append(attrs, "latest", rel.Name, logging.KeyVersion, rel.Version)
		}
		c.log.Log(ctx, res.Level(), res.Message(), attrs...)

		if res == UpdateAvailable && rel != nil && c.opts.Notifier != nil {
			c.opts.Notifier.UpdateAvailable(*rel)
		}
	})
	return c.Status()
}

// Status is the published result, or Incomplete while Run has not finished.
func (c *Checker) Status() Result {
	return Result(c.result.Load())
}

// Done is closed once a result has been published.
func (c *Checker) Done() <-chan struct{} {
	return c.done
}

// Latest is the release the finished run looked at, if any.
func (c *Checker) Latest() (Release, bool) {
	if r := c.latest.Load(); r != nil {
		return *r, true
	}
	return Release{}, false
}

func (c *Checker) Choice() Choice { return c.opts.Choice }

func (c *Checker) run(ctx context.Context) (Result, *Release) {
	if c.opts.Choice == ChoiceNoUpdate {
		return NoUpdate, nil
	}

	if _, err := c.opts.Client.ProjectURL(c.opts.ProjectID); err != nil {
		c.logFailure("Error checking for an update", err)
		return ErrorBadID, nil
	}

	files, err := c.opts.Client.ProjectFiles(ctx, c.opts.ProjectID)
	if err != nil {
		c.logFailure("Error checking for an update", err)
		return ErrorNotFound, nil
	}
	latest, ok := api.Latest(files)
	if !ok {
		return NoUpdate, nil
	}
	if latest.Name == "" && latest.DownloadURL == "" {
		c.logFailure("Error checking for an update", errors.New("latest release has no name or download url"))
		return ErrorNotFound, nil
	}

	rel := &Release{
		Name:        latest.Name,
		FileName:    latest.FileName,
		DownloadURL: latest.DownloadURL,
		Version:     c.opts.VersionSource.Version(latest),
		MD5:         latest.MD5,
	}

	res := NoUpdate
	if c.opts.Choice.Check() && Newer(c.opts.CurrentVersion, rel.Version) {
		res = UpdateAvailable
	}
	c.log.Debug("release compared", logging.KeyVersion, c.opts.CurrentVersion, "remote", rel.Version, logging.KeyResult, res.String())

	if c.opts.Choice.Download() && (res == UpdateAvailable || c.opts.Choice == ChoiceDownloadOnly) {
		res = c.download(ctx, rel)
	}
	return res, rel
}

func (c *Checker) download(ctx context.Context, rel *Release) Result {
	r, err := c.opts.Source.Open(ctx, rel.DownloadURL)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) ||
			errors.Is(err, artifact.ErrInvalidURL) ||
			errors.Is(err, artifact.ErrUnsupportedScheme) {
			c.logFailure("Error finding plugin update to download", err)
			return ErrorNotFound
		}
		c.logFailure("Error transferring plugin data", err)
		return ErrorDownloadFailed
	}
	defer r.Close()

	n, err := stage(c.opts.StagingDir, c.opts.FileName, r, rel.MD5)
	if err != nil {
		c.logFailure("Error transferring plugin data", err)
		return ErrorDownloadFailed
	}
	c.log.Debug("artifact staged", logging.KeyPath, c.opts.StagingDir, "bytes", n)
	return Updated
}

// logFailure includes the error only at DebugStackLevel and above.
func (c *Checker) logFailure(msg string, err error) {
	if c.opts.DebugLevel >= DebugStackLevel {
		c.log.Error(msg, logging.KeyError, err)
		return
	}
	c.log.Error(msg)
}
