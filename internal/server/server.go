package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mdwarren/curlshop/internal/config"
	"github.com/mdwarren/curlshop/internal/email"
	"github.com/mdwarren/curlshop/internal/handler"
	"github.com/mdwarren/curlshop/internal/middleware"
	"github.com/mdwarren/curlshop/internal/payment"
	"github.com/mdwarren/curlshop/internal/portal"
	"github.com/mdwarren/curlshop/internal/reconcile"
	"github.com/mdwarren/curlshop/internal/store"
)

type Server struct {
	db          *sql.DB
	cfg         *config.Config
	logger      *slog.Logger
	outbox      *store.EmailQueueStore
	reconciler  *reconcile.Reconciler
	rateLimiter *middleware.RateLimiter

	checkoutH  *handler.CheckoutHandler
	orderH     *handler.OrderHandler
	downloadH  *handler.DownloadHandler
	webhookH   *handler.WebhookHandler
	subscribeH *handler.SubscribeHandler
	productH   *handler.ProductHandler
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	customers := store.NewCustomerStore(db)
	orders := store.NewOrderStore(db)
	tokens := store.NewTokenStore(db)
	events := store.NewEventStore(db)
	subscribers := store.NewSubscriberStore(db)
	outbox := store.NewEmailQueueStore(db)

	payments := payment.NewClient(payment.Config{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		SuccessURL:    cfg.BaseURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     cfg.BaseURL + "/cancel",
	}, logger.With("component", "stripe"))

	reconciler := reconcile.New(orders, customers, tokens, events, outbox, payments, reconcile.Policy{
		TokenTTL:     cfg.Tokens.TTL,
		MaxDownloads: cfg.Tokens.MaxDownloads,
		ReleaseDate:  cfg.ReleaseDate,
		BaseURL:      cfg.BaseURL,
	}, logger.With("component", "reconcile"))

	portalSvc := portal.New(orders, tokens, cfg.Tokens.TTL, cfg.Tokens.MaxDownloads, cfg.ReleaseDate)

	mailchimp := email.NewMailchimpClient(cfg.Mailchimp.APIKey, cfg.Mailchimp.ListID, cfg.Mailchimp.Server)

	return &Server{
		db:          db,
		cfg:         cfg,
		logger:      logger,
		outbox:      outbox,
		reconciler:  reconciler,
		rateLimiter: middleware.NewRateLimiter(),
		checkoutH:   handler.NewCheckoutHandler(payments, customers, orders, logger.With("component", "checkout")),
		orderH:      handler.NewOrderHandler(reconciler, portalSvc, logger.With("component", "order")),
		downloadH:   handler.NewDownloadHandler(tokens, orders, cfg.FilesDir, cfg.Tokens.TTL, cfg.Tokens.MaxExtensions, logger.With("component", "download")),
		webhookH:    handler.NewWebhookHandler(payments, reconciler, logger.With("component", "webhook")),
		subscribeH:  handler.NewSubscribeHandler(subscribers, mailchimp, logger.With("component", "subscribe")),
		productH:    handler.NewProductHandler(),
	}, nil
}

// Reconciler exposes the reconciler for the launch job.
func (s *Server) Reconciler() *reconcile.Reconciler {
	return s.reconciler
}

// Outbox exposes the email queue for the dispatcher.
func (s *Server) Outbox() *store.EmailQueueStore {
	return s.outbox
}

// RateLimiter exposes the limiter for periodic cleanup.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	rateLimited := middleware.RateLimit(s.rateLimiter, 10, time.Minute)

	mux.HandleFunc("GET /health", s.healthCheck)
	mux.HandleFunc("GET /api/health", s.healthCheck)
	mux.HandleFunc("GET /api/products", s.productH.List)
	mux.Handle("POST /api/checkout", rateLimited(http.HandlerFunc(s.checkoutH.Create)))
	mux.HandleFunc("GET /api/order", s.orderH.Confirm)
	mux.Handle("POST /api/orders", rateLimited(http.HandlerFunc(s.orderH.Lookup)))
	mux.HandleFunc("GET /api/download", s.downloadH.Serve)
	mux.Handle("POST /api/download/extend", rateLimited(http.HandlerFunc(s.downloadH.Extend)))
	mux.HandleFunc("POST /api/webhook", s.webhookH.Handle)
	mux.Handle("POST /api/subscribe", rateLimited(http.HandlerFunc(s.subscribeH.Subscribe)))

	mux.HandleFunc("GET /robots.txt", s.robots)
	mux.HandleFunc("GET /sitemap.xml", s.sitemap)
	mux.HandleFunc("GET /", s.spa)

	return middleware.RequestLogger(s.logger)(mux)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}

func (s *Server) robots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("User-agent: *\nAllow: /\nDisallow: /api/\n\nSitemap: " + s.cfg.BaseURL + "/sitemap.xml\n"))
}

func (s *Server) sitemap(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/xml")
	w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>` + s.cfg.BaseURL + `/</loc></url>
  <url><loc>` + s.cfg.BaseURL + `/portal</loc></url>
</urlset>
`))
}

// spa serves the built frontend, falling back to index.html for client
// side routes.
func (s *Server) spa(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		http.NotFound(w, r)
		return
	}
	path := filepath.Join(s.cfg.WebDir, filepath.Clean("/"+r.URL.Path))
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		http.ServeFile(w, r, path)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.cfg.WebDir, "index.html"))
}
