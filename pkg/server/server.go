package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bastiangx/menuserve/internal/logger"
	"github.com/bastiangx/menuserve/internal/utils"
	"github.com/bastiangx/menuserve/pkg/dispatch"
	"github.com/bastiangx/menuserve/pkg/engine"
	"github.com/bastiangx/menuserve/pkg/metrics"
	"github.com/bastiangx/menuserve/pkg/recommend"
	"github.com/bastiangx/menuserve/pkg/search"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

// Server handles the IPC for one engine.
type Server struct {
	engine  *engine.Engine
	decoder *msgpack.Decoder
	encoder *msgpack.Encoder
	writeMu sync.Mutex
	logger  *log.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithIO replaces stdin and stdout.
func WithIO(r io.Reader, w io.Writer) Option {
	return func(s *Server) {
		s.decoder = msgpack.NewDecoder(r)
		s.encoder = msgpack.NewEncoder(w)
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a server using stdin/stdout for IPC.
func NewServer(e *engine.Engine, opts ...Option) *Server {
	s := &Server{
		engine:  e,
		decoder: msgpack.NewDecoder(os.Stdin),
		encoder: msgpack.NewEncoder(os.Stdout),
		logger:  logger.New("server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start sends a ready message, then answers requests until the input ends
// or ctx is done. A malformed message ends the loop since the stream cannot
// be resynchronised.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Debug("Starting server.")
	if err := s.send(Response{Status: "ready", State: s.engine.Search.State().String()}); err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		var req Request
		if err := s.decoder.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Debug("Input closed, stopping server.")
				return nil
			}
			s.logger.Errorf("Decoding request: %v", err)
			_ = s.send(errorResponse("", 400, "invalid msgpack request"))
			return fmt.Errorf("decode request: %w", err)
		}
		if err := s.send(s.Handle(ctx, req)); err != nil {
			return err
		}
	}
}

func (s *Server) send(resp Response) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.encoder.Encode(&resp); err != nil {
		s.logger.Errorf("Encoding response: %v", err)
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}

// Handle answers one request. It never fails; errors are reported in the
// response.
func (s *Server) Handle(ctx context.Context, req Request) Response {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	start := time.Now()

	var resp Response
	switch req.Op {
	case OpSearchRestaurants, OpSearchMenuItems, OpSuggest:
		resp = s.handleSearch(req)
	case OpRecommend:
		resp = s.handleRecommend(req)
	case OpRate:
		resp = s.handleRate(req)
	case OpPush:
		resp = s.handlePush(req)
	case OpPop:
		resp = s.handlePop()
	case OpRemove:
		resp = s.handleRemove(req)
	case OpReindex:
		resp = s.handleReindex(ctx)
	case OpStats:
		resp = s.handleStats()
	case OpHealth:
		resp = s.indexStatus()
	case "":
		resp = errorResponse(req.ID, 400, "missing 'op'")
	default:
		resp = errorResponse(req.ID, 400, fmt.Sprintf("unknown op: %s", req.Op))
	}

	resp.ID = req.ID
	resp.TimeTaken = time.Since(start).Microseconds()
	if resp.Status == statusError {
		s.logger.Debug("Request failed", "id", req.ID, "op", req.Op, "err", resp.Error)
	}
	return resp
}

func (s *Server) handleSearch(req Request) Response {
	cfg := s.engine.Config.Server
	query := utils.Normalize(req.Query)

	if query == "" {
		return Response{Status: statusOK}
	}
	if n := utf8.RuneCountInString(query); n < cfg.MinPrefix {
		return errorResponse(req.ID, 400, fmt.Sprintf("query must be at least %d characters", cfg.MinPrefix))
	} else if cfg.MaxPrefix > 0 && n > cfg.MaxPrefix {
		return errorResponse(req.ID, 400, fmt.Sprintf("query exceeds maximum length of %d characters", cfg.MaxPrefix))
	}
	if cfg.EnableFilter && !utils.IsValidInput(query) {
		return Response{Status: statusOK}
	}

	limit := s.clampLimit(req.Limit, s.engine.Config.Search.DefaultLimit)
	switch req.Op {
	case OpSearchRestaurants:
		var filters search.Filters
		if req.Filters != nil {
			filters = *req.Filters
		}
		results := toResults(s.engine.Search.SearchRestaurants(query, filters, limit))
		return Response{Status: statusOK, Results: results, Count: len(results)}
	case OpSearchMenuItems:
		results := toResults(s.engine.Search.SearchMenuItems(query, req.RestaurantID, limit))
		return Response{Status: statusOK, Results: results, Count: len(results)}
	default:
		suggestions := s.engine.Search.GetSuggestions(query, limit)
		return Response{Status: statusOK, Suggestions: suggestions, Count: len(suggestions)}
	}
}

func (s *Server) handleRecommend(req Request) Response {
	if req.User == "" {
		return errorResponse(req.ID, 400, "missing 'u' parameter")
	}
	items := s.engine.Recommender.GetRecommendations(req.User, s.clampLimit(req.Limit, s.engine.Config.Recommend.DefaultLimit))
	return Response{Status: statusOK, Items: items, Count: len(items)}
}

func (s *Server) handleRate(req Request) Response {
	if err := s.engine.Recommender.UpdatePreference(req.User, req.Item, req.Value); err != nil {
		return errorResponse(req.ID, codeFor(err), err.Error())
	}
	return Response{Status: statusOK}
}

func (s *Server) handlePush(req Request) Response {
	var priority float64
	switch {
	case req.Priority != nil:
		priority = *req.Priority
		if err := s.engine.Queue.Push(req.Item, priority); err != nil {
			return errorResponse(req.ID, codeFor(err), err.Error())
		}
	case req.Order != nil:
		p, err := s.engine.PushOrder(req.Item, dispatch.Order{
			Tier:   dispatch.Tier(req.Order.Tier),
			Items:  req.Order.Items,
			Urgent: req.Order.Urgent,
		})
		if err != nil {
			return errorResponse(req.ID, codeFor(err), err.Error())
		}
		priority = p
	default:
		return errorResponse(req.ID, 400, "missing 'p' or 'o' parameter")
	}
	return Response{
		Status: statusOK,
		Entry:  &QueueEntry{ID: req.Item, Priority: priority},
		Count:  s.engine.Queue.Len(),
	}
}

func (s *Server) handlePop() Response {
	e, ok := s.engine.Queue.PopMin()
	if !ok {
		return Response{Status: statusOK}
	}
	return Response{Status: statusOK, Entry: &QueueEntry{ID: e.ID, Priority: e.Priority}, Count: s.engine.Queue.Len()}
}

func (s *Server) handleRemove(req Request) Response {
	if req.Item == "" {
		return errorResponse(req.ID, 400, "missing 'i' parameter")
	}
	removed := s.engine.Queue.Remove(req.Item)
	return Response{Status: statusOK, Removed: removed, Count: s.engine.Queue.Len()}
}

func (s *Server) handleReindex(ctx context.Context) Response {
	if err := s.engine.Search.Rebuild(ctx); err != nil {
		return errorResponse("", codeFor(err), err.Error())
	}
	s.logger.Info("Reindexed", "generation", s.engine.Search.Generation())
	return s.indexStatus()
}

func (s *Server) indexStatus() Response {
	resp := Response{Status: statusOK, State: s.engine.Search.State().String()}
	if builtAt := s.engine.Search.BuiltAt(); !builtAt.IsZero() {
		resp.BuiltAt = builtAt.UnixMilli()
	}
	return resp
}

func (s *Server) handleStats() Response {
	stats, err := metrics.Snapshot(s.engine.Registry())
	if err != nil {
		return errorResponse("", 500, err.Error())
	}
	for k, v := range s.engine.Search.Stats() {
		stats["search."+k] = float64(v)
	}
	for k, v := range s.engine.Queue.Stats() {
		stats["queue."+k] = float64(v)
	}
	for k, v := range s.engine.Recommender.Stats() {
		stats["recommend."+k] = float64(v)
	}
	return Response{Status: statusOK, Stats: stats, Count: len(stats), State: s.engine.Search.State().String()}
}

// clampLimit applies the default for unset limits and caps at max_limit.
func (s *Server) clampLimit(limit, def int) int {
	if limit < 1 {
		limit = def
	}
	if maxLimit := s.engine.Config.Server.MaxLimit; maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

func codeFor(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrQueueFull):
		return 503
	case errors.Is(err, search.ErrNoSource):
		return 501
	case errors.Is(err, search.ErrInvalidCatalog):
		return 422
	case errors.Is(err, dispatch.ErrEmptyID), errors.Is(err, dispatch.ErrInvalidPriority),
		errors.Is(err, recommend.ErrEmptyID), errors.Is(err, recommend.ErrInvalidRating):
		return 400
	default:
		return 500
	}
}

func errorResponse(id string, code int, message string) Response {
	return Response{ID: id, Status: statusError, Error: message, Code: code}
}
