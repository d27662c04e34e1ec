package main

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gchat/internal/protocol"
	"gchat/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open a conversation behind a local web UI",
	RunE:  runServe,
}

var flagPort int

func init() {
	serveCmd.Flags().IntVar(&flagPort, "port", 8787, "local HTTP port")
	serveCmd.Flags().Int64Var(&flagGroupID, "group", 0, "group id to join")
	serveCmd.Flags().StringVar(&flagTempKey, "temp", "", "temporary group chat key")
	serveCmd.Flags().StringVar(&flagTempPass, "password", "", "temporary group password, when it has one")
	rootCmd.AddCommand(serveCmd)
}

//go:embed webui.html
var uiFS embed.FS

// chatBackend is the slice of the session the web handler needs.
type chatBackend interface {
	Messages() []protocol.Message
	Status() session.Status
	Send(text string) error
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type webMessage struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Content  string `json:"content"`
	TS       string `json:"ts"`
}

// newWebHandler serves the single-page UI plus a small polling API:
// clients pass the message count they already hold and receive only the
// tail appended since.
func newWebHandler(b chatBackend, title string) http.Handler {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		body, err := uiFS.ReadFile("webui.html")
		if err != nil {
			http.Error(w, "ui missing", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(body)
	})

	r.Get("/api/state", func(w http.ResponseWriter, req *http.Request) {
		since := 0
		if v := req.URL.Query().Get("since"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				since = n
			}
		}
		msgs := b.Messages()
		if since > len(msgs) {
			since = 0
		}
		tail := make([]webMessage, 0, len(msgs)-since)
		for _, m := range msgs[since:] {
			tail = append(tail, webMessage{
				ID:       m.ID,
				Username: m.Username,
				Content:  m.Content,
				TS:       m.Timestamp.Local().Format("15:04:05"),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"title":    title,
			"status":   b.Status().String(),
			"count":    len(msgs),
			"messages": tail,
		})
	})

	r.Post("/api/send", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		defer req.Body.Close()
		if err := json.NewDecoder(io.LimitReader(req.Body, 1<<20)).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		if err := b.Send(body.Text); err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	return r
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := apiClient()
	conv, err := resolveConversation(ctx, client)
	if err != nil {
		return err
	}

	cache := openCache()
	if cache != nil {
		defer cache.Close()
	}

	s := session.New(session.Config{
		WSBase:  flagWSBase,
		Backoff: session.DefaultBackoff(),
		Cache:   cache,
	}, conv, tokenStore(), client)
	s.OnHistory(func(snapshot []protocol.Message, err error) {
		if err != nil {
			log.Warn().Err(err).Msg("history unavailable")
			return
		}
		log.Info().Int("messages", len(snapshot)).Msg("history loaded")
	})
	s.OnStatus(func(st session.Status) {
		log.Info().Str("status", st.String()).Msg("transport")
	})
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", flagPort),
		Handler:           newWebHandler(s, conv.Key()),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("http shutdown")
		}
	}()

	log.Info().Msgf("serving at http://%s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
