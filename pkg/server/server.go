// Package server exposes open CDF and CEL files over a small read-only
// HTTP API. Clients open a file by path or s3:// URI, receive a handle id,
// and query probe sets or cells through it.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/eunmann/affxfusion/pkg/cdf"
	"github.com/eunmann/affxfusion/pkg/cel"
	"github.com/eunmann/affxfusion/pkg/fetch"
	"github.com/eunmann/affxfusion/pkg/format"
	"github.com/eunmann/affxfusion/pkg/logging"
)

// Config configures a Server.
type Config struct {
	// Address is the listen address for Start. Default: 127.0.0.1:8080.
	Address string
	// MaxOpenFiles bounds the number of live handles. 0 means unlimited.
	MaxOpenFiles int
	// Logic is the default complementary logic for CDF files.
	Logic cdf.Logic
	// Mode is the default access mode.
	Mode format.Mode
	// ReadHeaderTimeout applies to the underlying http.Server.
	ReadHeaderTimeout time.Duration
}

// Server owns the open file handles.
type Server struct {
	cfg      Config
	resolver *fetch.Resolver
	files    *store
}

// New returns a server resolving locations with resolver.
func New(cfg Config, resolver *fetch.Resolver) *Server {
	if cfg.Address == "" {
		cfg.Address = "127.0.0.1:8080"
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	return &Server{cfg: cfg, resolver: resolver, files: newStore(cfg.MaxOpenFiles)}
}

// Register mounts the API routes on e.
func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/files", s.handleOpen)
	e.GET("/v1/files", s.handleList)
	e.GET("/v1/files/:id", s.handleGet)
	e.DELETE("/v1/files/:id", s.handleClose)
	e.GET("/v1/files/:id/probesets/:index", s.handleProbeSet)
	e.GET("/v1/files/:id/lookup", s.handleLookup)
	e.GET("/v1/files/:id/cells/:index", s.handleCell)
}

// Handler returns an echo instance with every route and the standard
// middleware installed.
func (s *Server) Handler() *echo.Echo {
	e := echo.New()
	e.Use(middleware.Recover())
	s.Register(e)
	return e
}

// Start serves until ctx is canceled, then closes every open handle.
func (s *Server) Start(ctx context.Context) error {
	e := s.Handler()
	e.Use(middleware.RequestLogger())
	defer s.files.closeAll()

	log := logging.WithPhase("serve")
	log.Info().Str("address", s.cfg.Address).Msg("starting server")

	sc := echo.StartConfig{
		Address: s.cfg.Address,
		BeforeServeFunc: func(srv *http.Server) error {
			srv.ReadHeaderTimeout = s.cfg.ReadHeaderTimeout
			return nil
		},
	}
	return sc.Start(ctx, e)
}

// Close releases every open handle.
func (s *Server) Close() { s.files.closeAll() }

func decodeJSON[T any](r io.Reader) (T, error) {
	var v T
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("decode request: %w", err)
	}
	return v, nil
}

func writeError(c *echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// writeReadError maps reader errors onto status codes.
func writeReadError(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, format.ErrNotFound):
		return writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, format.ErrOutOfRange):
		return writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, format.ErrFormatMismatch),
		errors.Is(err, format.ErrTruncated),
		errors.Is(err, format.ErrMalformed):
		return writeError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, format.ErrClosed):
		return writeError(c, http.StatusGone, err.Error())
	default:
		return writeError(c, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) lookup(c *echo.Context) (*handle, bool) {
	h, ok := s.files.get(c.Param("id"))
	return h, ok
}

func indexParam(c *echo.Context) (int, error) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", c.Param("index"))
	}
	return i, nil
}

func (s *Server) handleOpen(c *echo.Context) error {
	req, err := decodeJSON[openRequest](c.Request().Body)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Path) == "" {
		return writeError(c, http.StatusBadRequest, "path is required")
	}

	mode := s.cfg.Mode
	if req.Mode != "" {
		if mode, err = format.ParseMode(req.Mode); err != nil {
			return writeError(c, http.StatusBadRequest, err.Error())
		}
	}
	logic := s.cfg.Logic
	if req.Logic != "" {
		var ok bool
		if logic, ok = cdf.ParseLogic(req.Logic); !ok {
			return writeError(c, http.StatusBadRequest, fmt.Sprintf("unknown logic %q", req.Logic))
		}
	}

	res, err := s.resolver.Resolve(c.Request().Context(), req.Path)
	if err != nil {
		return writeReadError(c, err)
	}

	h := &handle{source: req.Path, opened: time.Now(), resolved: res}
	h.kind, _ = format.Sniff(res.Path)
	switch h.kind {
	case format.KindCDF:
		f := cdf.New(cdf.Options{Logic: logic, Mode: mode})
		f.SetFileName(res.Path)
		if !f.Read() {
			res.Close()
			return writeReadError(c, f.Err())
		}
		h.layout = f
	case format.KindCEL:
		f := cel.New(cel.Options{Mode: mode, IncludeMaskAndOutliers: !req.SkipMaskAndOutliers})
		f.SetFileName(res.Path)
		if !f.Read() {
			res.Close()
			return writeReadError(c, f.Err())
		}
		h.scan = f
	default:
		res.Close()
		return writeError(c, http.StatusUnprocessableEntity, fmt.Sprintf("%s is not a CDF or CEL file", req.Path))
	}

	if !s.files.add(h) {
		h.close()
		return writeError(c, http.StatusTooManyRequests, "too many open files")
	}

	log := logging.WithPhase("serve")
	log.Debug().Str("id", h.id).Str("source", h.source).Str("kind", h.kind.String()).Msg("opened")
	return c.JSON(http.StatusCreated, describe(h))
}

func describe(h *handle) fileResponse {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := fileResponse{ID: h.id, Source: h.source, Kind: h.kind.String()}
	if h.layout != nil {
		out.Encoding = h.layout.Encoding().String()
		out.Mapped = h.layout.IsMapped()
		out.CDF = describeCDF(h.layout)
	}
	if h.scan != nil {
		out.Encoding = h.scan.Encoding().String()
		out.Mapped = h.scan.IsMapped()
		out.CEL = describeCEL(h.scan)
	}
	return out
}

func (s *Server) handleList(c *echo.Context) error {
	handles := s.files.list()
	out := make([]fileResponse, len(handles))
	for i, h := range handles {
		out[i] = describe(h)
	}
	return c.JSON(http.StatusOK, map[string]any{"files": out})
}

func (s *Server) handleGet(c *echo.Context) error {
	h, ok := s.lookup(c)
	if !ok {
		return writeError(c, http.StatusNotFound, "file not found")
	}
	return c.JSON(http.StatusOK, describe(h))
}

func (s *Server) handleClose(c *echo.Context) error {
	h, ok := s.files.remove(c.Param("id"))
	if !ok {
		return writeError(c, http.StatusNotFound, "file not found")
	}
	if err := h.close(); err != nil {
		return writeError(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"id": h.id, "closed": true})
}

func (s *Server) handleProbeSet(c *echo.Context) error {
	h, ok := s.lookup(c)
	if !ok {
		return writeError(c, http.StatusNotFound, "file not found")
	}
	if h.layout == nil {
		return writeError(c, http.StatusBadRequest, "probe sets are only available on CDF files")
	}
	i, err := indexParam(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err.Error())
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	out, err := probeSetView(h.layout, i)
	if err != nil {
		return writeReadError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleLookup(c *echo.Context) error {
	h, ok := s.lookup(c)
	if !ok {
		return writeError(c, http.StatusNotFound, "file not found")
	}
	if h.layout == nil {
		return writeError(c, http.StatusBadRequest, "lookup is only available on CDF files")
	}
	name := c.QueryParam("name")
	if name == "" {
		return writeError(c, http.StatusBadRequest, "name is required")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	i, found, err := h.layout.LookupProbeSet(name)
	if err != nil {
		return writeReadError(c, err)
	}
	if !found {
		return writeError(c, http.StatusNotFound, fmt.Sprintf("probe set %q not found", name))
	}
	return c.JSON(http.StatusOK, map[string]any{"name": name, "index": i})
}

func (s *Server) handleCell(c *echo.Context) error {
	h, ok := s.lookup(c)
	if !ok {
		return writeError(c, http.StatusNotFound, "file not found")
	}
	if h.scan == nil {
		return writeError(c, http.StatusBadRequest, "cells are only available on CEL files")
	}
	i, err := indexParam(c)
	if err != nil {
		return writeError(c, http.StatusBadRequest, err.Error())
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	out, err := cellView(h.scan, i)
	if err != nil {
		return writeReadError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
