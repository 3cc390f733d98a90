package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"quickcal/internal/auth"
	"quickcal/internal/models"
)

const maxMessageSize = 1 << 20

// Server is the coordinator. It runs token and event operations on behalf of
// clients and relays the result or the error message back.
type Server struct {
	logger *slog.Logger
	tokens auth.TokenSource
	events EventCreator
	router *mux.Router
}

// NewServer creates a coordinator backed by the direct token manager and submitter.
func NewServer(logger *slog.Logger, tokens auth.TokenSource, events EventCreator) *Server {
	s := &Server{
		logger: logger,
		tokens: tokens,
		events: events,
		router: mux.NewRouter(),
	}
	s.router.HandleFunc("/messages", s.handleMessage).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return s
}

// Handler returns the HTTP handler serving the message channel.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down coordinator")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("Coordinator listening", "addr", l.Addr().String())
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("coordinator failed: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, l)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageSize)).Decode(&msg); err != nil {
		writeResponse(w, http.StatusBadRequest, Response{Error: fmt.Sprintf("malformed message: %v", err)})
		return
	}

	logger := s.logger.With("id", msg.ID, "type", msg.Type)
	logger.Debug("Handling message")

	resp, status := s.dispatch(r.Context(), msg)
	resp.ID = msg.ID
	if resp.Error != "" {
		logger.Warn("Message failed", "error", resp.Error)
	}
	writeResponse(w, status, resp)
}

func (s *Server) dispatch(ctx context.Context, msg Message) (Response, int) {
	switch msg.Type {
	case TypeGetAuthToken:
		var req TokenRequest
		if err := decodePayload(msg.Payload, &req); err != nil {
			return Response{Error: err.Error()}, http.StatusBadRequest
		}
		token, err := s.tokens.GetToken(ctx, req.Interactive)
		if err != nil {
			return Response{Error: err.Error()}, http.StatusOK
		}
		return Response{Token: token}, http.StatusOK

	case TypeCreateEvent:
		var event models.CalendarEvent
		if err := decodePayload(msg.Payload, &event); err != nil {
			return Response{Error: err.Error()}, http.StatusBadRequest
		}
		created, err := s.events.CreateEvent(ctx, event)
		if err != nil {
			return Response{Error: err.Error()}, http.StatusOK
		}
		data, err := json.Marshal(created)
		if err != nil {
			return Response{Error: fmt.Sprintf("failed to encode created event: %v", err)}, http.StatusOK
		}
		return Response{Data: data}, http.StatusOK

	case TypeInvalidateToken:
		if err := s.tokens.Invalidate(ctx); err != nil {
			return Response{Error: err.Error()}, http.StatusOK
		}
		return Response{}, http.StatusOK

	default:
		return Response{Error: fmt.Sprintf("unknown message type %q", msg.Type)}, http.StatusBadRequest
	}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	return nil
}

func writeResponse(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
