package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/richa-2701/leadpilot/internal/dispatch"
	"github.com/richa-2701/leadpilot/internal/extract"
	"github.com/richa-2701/leadpilot/internal/flow"
	"github.com/richa-2701/leadpilot/internal/messaging"
	"github.com/richa-2701/leadpilot/internal/models"
	"github.com/richa-2701/leadpilot/internal/report"
	"github.com/richa-2701/leadpilot/internal/scheduler"
	"github.com/richa-2701/leadpilot/internal/store"
	"github.com/richa-2701/leadpilot/internal/twiliowhatsapp"
	"github.com/richa-2701/leadpilot/internal/whatsapp"
)

// DefaultAddr is the default listen address.
const DefaultAddr = ":8080"

// Channel names selectable via configuration.
const (
	ChannelWhatsmeow = "whatsmeow"
	ChannelTwilio    = "twilio"
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr        string
	DSN         string
	Channel     string
	OpenAIKey   string
	QRPath      string
	NumericCode bool
	VerifyToken string
}

// Option configures server options.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithChannel selects the outbound messaging channel.
func WithChannel(channel string) Option {
	return func(o *Opts) { o.Channel = channel }
}

// WithOpenAIKey sets the extractor API key.
func WithOpenAIKey(key string) Option {
	return func(o *Opts) { o.OpenAIKey = key }
}

// WithQRCodeOutput writes the WhatsApp login QR code to a file.
func WithQRCodeOutput(path string) Option {
	return func(o *Opts) { o.QRPath = path }
}

// WithNumericCode uses numeric pairing instead of a QR code.
func WithNumericCode() Option {
	return func(o *Opts) { o.NumericCode = true }
}

// WithVerifyToken sets the token echoed by GET /webhook verification.
func WithVerifyToken(token string) Option {
	return func(o *Opts) { o.VerifyToken = token }
}

// Server holds the wired dependencies behind the HTTP handlers.
type Server struct {
	st          store.Store
	msgService  messaging.Service
	router      *flow.Router
	verifyToken string
}

// NewServer creates a Server over already-constructed dependencies. Run
// builds these from options; tests inject fakes directly.
func NewServer(st store.Store, msgService messaging.Service, router *flow.Router, verifyToken string) *Server {
	return &Server{
		st:          st,
		msgService:  msgService,
		router:      router,
		verifyToken: verifyToken,
	}
}

// Run wires every module together and serves HTTP until SIGINT/SIGTERM.
func Run(opts ...Option) error {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Channel == "" {
		cfg.Channel = ChannelWhatsmeow
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := newStore(cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	msgService, err := newMessagingService(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging service: %w", err)
	}
	if err := msgService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	defer msgService.Stop()

	// Every outbound send goes through the bounded retry policy; the raw
	// service is kept on the server for channel-specific webhook dispatch.
	sender := messaging.NewRetryingService(msgService, messaging.RetryPolicy{})

	router := flow.NewRouter(st, sender, newExtractor(cfg.OpenAIKey))
	server := NewServer(st, msgService, router, cfg.VerifyToken)

	dispatch.NewReminderDispatcher(st, sender).Start(ctx)
	dispatch.NewDripDispatcher(st, sender).Start(ctx)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	digestOpts := []report.DigestOption{}
	if mailer, err := report.NewSMTPMailer(); err == nil {
		digestOpts = append(digestOpts, report.WithMailer(mailer))
	} else {
		slog.Info("Run: SMTP not configured, weekly digest goes out over WhatsApp only", "reason", err)
	}
	digest := report.NewDigest(st, sender, digestOpts...)
	if err := sched.AddJob(report.WeeklyCronExpr, digest.Job(ctx)); err != nil {
		return fmt.Errorf("failed to schedule weekly digest: %w", err)
	}

	go server.consumeResponses(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", server.webhookHandler)
	mux.HandleFunc("/webhook/twilio", server.twilioWebhookHandler)
	mux.HandleFunc("/app", server.appHandler)
	mux.HandleFunc("/health", server.healthHandler)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: withRequestID(mux),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Run: LeadPilot API listening", "addr", cfg.Addr, "channel", cfg.Channel)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Run: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown failed: %w", err)
	}
	return nil
}

func newStore(dsn string) (store.Store, error) {
	if store.DetectDSNType(dsn) == store.DSNTypePostgres {
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// newExtractor prefers the OpenAI extractor and falls back to the static
// comma-order parser when no key is available.
func newExtractor(apiKey string) extract.Extractor {
	client, err := extract.NewClient(extract.WithAPIKey(apiKey))
	if err != nil {
		slog.Warn("Run: OpenAI extractor unavailable, using static extraction", "reason", err)
		return extract.NewStatic()
	}
	return client
}

func newMessagingService(cfg Opts) (messaging.Service, error) {
	switch cfg.Channel {
	case ChannelTwilio:
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, err
		}
		return messaging.NewTwilioService(client), nil
	case ChannelWhatsmeow:
		var waOpts []whatsapp.Option
		if cfg.QRPath != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(cfg.QRPath))
		}
		if cfg.NumericCode {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, err
		}
		return messaging.NewWhatsAppService(client), nil
	default:
		return nil, fmt.Errorf("unknown messaging channel %q", cfg.Channel)
	}
}

// consumeResponses routes messages arriving over the messaging transport.
// Replies go back over the same transport through the router.
func (s *Server) consumeResponses(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case resp, ok := <-s.msgService.Responses():
			if !ok {
				return
			}
			result := s.router.Route(ctx, models.InboundMessage{
				Sender:      resp.From,
				Text:        resp.Body,
				ReplyTarget: resp.From,
				Source:      models.SourceWhatsApp,
				ReceivedAt:  time.Unix(resp.Time, 0),
			})
			slog.Debug("Server.consumeResponses: routed transport message",
				"from", resp.From, "status", result.Status, "sent", result.Sent)
		}
	}
}

// withRequestID tags every request with a correlation ID for the logs.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)
		slog.Debug("Server: request received", "request_id", requestID, "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
