// Package gateway exposes the service clients over HTTP. FireEye tokens live
// in the caller's cookie session, so every browser session logs in on its own.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/samvad-hq/tinyclients/internal/app"
	"github.com/samvad-hq/tinyclients/internal/logger"
	"github.com/samvad-hq/tinyclients/pkg/fireeye"
	"github.com/samvad-hq/tinyclients/pkg/rest"
	"github.com/samvad-hq/tinyclients/pkg/session"
	"github.com/samvad-hq/tinyclients/pkg/vxstream"
)

const maxUploadBytes = 64 << 20

// Server serves the gateway routes.
type Server struct {
	app         *app.App
	sessions    sessions.Store
	sessionName string
	log         logger.Logger
}

// NewServer builds a gateway around a, keeping tokens in store under sessionName.
func NewServer(a *app.App, store sessions.Store, sessionName string) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("app must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("session store must not be nil")
	}
	if sessionName == "" {
		sessionName = "tinyclients"
	}
	return &Server{app: a, sessions: store, sessionName: sessionName, log: a.Logger()}, nil
}

// NewCookieStore builds the cookie-backed gorilla store used in production.
func NewCookieStore(secret string) (*sessions.CookieStore, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("%w: session secret must be at least 32 bytes", rest.ErrMissingConfig)
	}
	store := sessions.NewCookieStore([]byte(secret))
	store.Options.HttpOnly = true
	store.Options.SameSite = http.SameSiteLaxMode
	return store, nil
}

// RegisterHandlers mounts every route on e.
func (s *Server) RegisterHandlers(e *echo.Echo) {
	e.GET("/healthz", s.HandleHealth)

	e.GET("/fireeye/config", s.HandleFireEyeConfig)
	e.POST("/fireeye/submissions", s.HandleFireEyeSubmit)
	e.POST("/fireeye/submissions/url", s.HandleFireEyeSubmitURL)
	e.GET("/fireeye/submissions/:id/status", s.HandleFireEyeStatus)
	e.GET("/fireeye/submissions/:id/results", s.HandleFireEyeResults)
	e.POST("/fireeye/logout", s.HandleFireEyeLogout)

	e.POST("/nessus/scans", s.HandleNessusSubmit)
	e.GET("/nessus/scans/:id", s.HandleNessusStatus)

	e.GET("/vxstream/state", s.HandleVxState)
	e.GET("/vxstream/stats", s.HandleVxStats)
	e.POST("/vxstream/submit", s.HandleVxSubmit)
	e.POST("/vxstream/submiturl", s.HandleVxSubmitURL)
	e.GET("/vxstream/samples/:sha256/status", s.HandleVxStatus)
	e.GET("/vxstream/samples/:sha256/results", s.HandleVxResults)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	s.RegisterHandlers(e)

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoObj("gateway listening", "gateway", map[string]any{"addr": addr})
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.InfoObj("gateway shutting down", "reason", ctx.Err())
	return e.Shutdown(shutdownCtx)
}

func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// withFireEye loads the caller's session, runs fn with it and persists any
// token change before the response is written.
func (s *Server) withFireEye(c echo.Context, fn func(ctx context.Context, fe *fireeye.Client, store session.Store) (*rest.Result, error)) error {
	fe, err := s.app.FireEye()
	if err != nil {
		return s.fail(err)
	}
	cs, err := session.LoadCookieSession(s.sessions, c.Request(), s.sessionName)
	if err != nil {
		return s.fail(err)
	}
	res, callErr := fn(c.Request().Context(), fe, cs)
	if err := cs.Save(c.Request(), c.Response()); err != nil {
		s.log.ErrorObj("session save failed", "error", err.Error())
	}
	if callErr != nil {
		return s.fail(callErr)
	}
	return writeResult(c, res)
}

func (s *Server) HandleFireEyeConfig(c echo.Context) error {
	return s.withFireEye(c, func(ctx context.Context, fe *fireeye.Client, store session.Store) (*rest.Result, error) {
		return fe.Config(ctx, store)
	})
}

func (s *Server) HandleFireEyeSubmit(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "expected multipart form with sample files")
	}
	var options any = map[string]any{}
	if raw := c.FormValue("options"); raw != "" {
		if !json.Valid([]byte(raw)) {
			return echo.NewHTTPError(http.StatusBadRequest, "options must be a JSON document")
		}
		options = json.RawMessage(raw)
	}

	var files []fireeye.File
	for _, hdr := range form.File["file"] {
		if hdr.Size > maxUploadBytes {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "sample too large")
		}
		f, err := hdr.Open()
		if err != nil {
			return s.fail(err)
		}
		defer f.Close()
		files = append(files, fireeye.File{Name: hdr.Filename, Reader: f})
	}
	if len(files) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no file parts")
	}

	return s.withFireEye(c, func(ctx context.Context, fe *fireeye.Client, store session.Store) (*rest.Result, error) {
		return fe.Submit(ctx, store, options, files)
	})
}

func (s *Server) HandleFireEyeSubmitURL(c echo.Context) error {
	var options map[string]any
	if err := c.Bind(&options); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	return s.withFireEye(c, func(ctx context.Context, fe *fireeye.Client, store session.Store) (*rest.Result, error) {
		return fe.SubmitURL(ctx, store, options)
	})
}

func (s *Server) HandleFireEyeStatus(c echo.Context) error {
	id := c.Param("id")
	return s.withFireEye(c, func(ctx context.Context, fe *fireeye.Client, store session.Store) (*rest.Result, error) {
		return fe.Status(ctx, store, id)
	})
}

func (s *Server) HandleFireEyeResults(c echo.Context) error {
	id := c.Param("id")
	return s.withFireEye(c, func(ctx context.Context, fe *fireeye.Client, store session.Store) (*rest.Result, error) {
		return fe.Results(ctx, store, id)
	})
}

func (s *Server) HandleFireEyeLogout(c echo.Context) error {
	return s.withFireEye(c, func(ctx context.Context, fe *fireeye.Client, store session.Store) (*rest.Result, error) {
		if err := fe.Logout(ctx, store); err != nil {
			return nil, err
		}
		return &rest.Result{Value: map[string]any{"logged_out": true}}, nil
	})
}

func (s *Server) HandleNessusSubmit(c echo.Context) error {
	ns, err := s.app.Nessus()
	if err != nil {
		return s.fail(err)
	}
	var data map[string]any
	if err := c.Bind(&data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	res, err := ns.Submit(c.Request().Context(), data)
	if err != nil {
		return s.fail(err)
	}
	return writeResult(c, res)
}

func (s *Server) HandleNessusStatus(c echo.Context) error {
	ns, err := s.app.Nessus()
	if err != nil {
		return s.fail(err)
	}
	res, err := ns.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(err)
	}
	return writeResult(c, res)
}

func (s *Server) vx(c echo.Context, fn func(ctx context.Context, vx *vxstream.Client) (*rest.Result, error)) error {
	vx, err := s.app.VxStream()
	if err != nil {
		return s.fail(err)
	}
	res, err := fn(c.Request().Context(), vx)
	if err != nil {
		return s.fail(err)
	}
	return writeResult(c, res)
}

func (s *Server) HandleVxState(c echo.Context) error {
	return s.vx(c, func(ctx context.Context, vx *vxstream.Client) (*rest.Result, error) {
		return vx.State(ctx)
	})
}

func (s *Server) HandleVxStats(c echo.Context) error {
	return s.vx(c, func(ctx context.Context, vx *vxstream.Client) (*rest.Result, error) {
		return vx.Stats(ctx)
	})
}

func (s *Server) HandleVxSubmit(c echo.Context) error {
	hdr, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file part")
	}
	if hdr.Size > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "sample too large")
	}
	f, err := hdr.Open()
	if err != nil {
		return s.fail(err)
	}
	defer f.Close()

	data := url.Values{}
	if form, err := c.MultipartForm(); err == nil {
		for k, vs := range form.Value {
			data[k] = vs
		}
	}
	return s.vx(c, func(ctx context.Context, vx *vxstream.Client) (*rest.Result, error) {
		return vx.Submit(ctx, vxstream.File{Name: hdr.Filename, Reader: f}, data)
	})
}

func (s *Server) HandleVxSubmitURL(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form body")
	}
	return s.vx(c, func(ctx context.Context, vx *vxstream.Client) (*rest.Result, error) {
		return vx.SubmitURL(ctx, form)
	})
}

func (s *Server) HandleVxStatus(c echo.Context) error {
	sha := c.Param("sha256")
	return s.vx(c, func(ctx context.Context, vx *vxstream.Client) (*rest.Result, error) {
		return vx.Status(ctx, sha)
	})
}

func (s *Server) HandleVxResults(c echo.Context) error {
	sha := c.Param("sha256")
	return s.vx(c, func(ctx context.Context, vx *vxstream.Client) (*rest.Result, error) {
		return vx.Results(ctx, sha)
	})
}

// fail maps client errors onto gateway responses.
func (s *Server) fail(err error) error {
	var httpErr *rest.HTTPError
	switch {
	case errors.Is(err, app.ErrNotConfigured):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, rest.ErrUnauthorized):
		s.log.WarnObj("upstream authentication failed", "error", err.Error())
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.As(err, &httpErr):
		return echo.NewHTTPError(http.StatusBadGateway, map[string]any{
			"message":         "upstream request failed",
			"upstream_status": httpErr.StatusCode,
		})
	default:
		s.log.ErrorObj("upstream call failed", "error", err.Error())
		return echo.NewHTTPError(http.StatusBadGateway, "upstream unavailable")
	}
}

func writeResult(c echo.Context, res *rest.Result) error {
	if res == nil {
		return c.NoContent(http.StatusNoContent)
	}
	if !res.IsJSON() {
		return c.Blob(http.StatusOK, echo.MIMEOctetStream, res.Raw)
	}
	return c.JSON(http.StatusOK, res.Value)
}
