package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/KAsare1/Lexconsult-server/cmd/config"
	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"github.com/KAsare1/Lexconsult-server/service/admin"
	"github.com/KAsare1/Lexconsult-server/service/application"
	"github.com/KAsare1/Lexconsult-server/service/appointment"
	"github.com/KAsare1/Lexconsult-server/service/forum"
	"github.com/KAsare1/Lexconsult-server/service/mail"
	"github.com/KAsare1/Lexconsult-server/service/notifications"
	"github.com/KAsare1/Lexconsult-server/service/payment"
	"github.com/KAsare1/Lexconsult-server/service/review"
	"github.com/KAsare1/Lexconsult-server/service/user"
	"github.com/KAsare1/Lexconsult-server/service/video"
	"github.com/KAsare1/Lexconsult-server/service/ws"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

type APIServer struct {
	cfg *config.Config
	db  *gorm.DB
}

func NewApiServer(cfg *config.Config, db *gorm.DB) *APIServer {
	return &APIServer{
		cfg: cfg,
		db:  db,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests and
// pending notifications.
func (s *APIServer) Run(ctx context.Context) error {
	responder := utils.Responder{Verbose: !s.cfg.IsProduction()}
	auth := utils.NewAuthenticator(utils.NewTokenIssuer(s.cfg.SecretKey, s.cfg.SessionTokenTTL), s.db, responder)
	uploader := utils.NewUploader(s.cfg.UploadDir)
	mailer := mail.New(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPass)

	stop := make(chan struct{})
	defer close(stop)
	limiter := utils.NewRateLimiter(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst, responder)
	if err := limiter.TrustProxies(s.cfg.TrustedProxies); err != nil {
		return err
	}
	limiter.StartCleanup(stop)

	hub := ws.NewHub()
	go hub.Run()
	defer hub.Stop()

	dispatcher := notifications.NewDispatcher(s.db, hub, nil, mailer)
	defer dispatcher.Wait()

	var signer video.Signer
	if streamSigner, err := video.NewStreamSigner(s.cfg.StreamAPIKey, s.cfg.StreamAPISecret); err != nil {
		log.Printf("Warning: video tokens disabled: %v", err)
	} else {
		signer = streamSigner
	}

	router := mux.NewRouter()
	subrouter := router.PathPrefix("/api/v1").Subrouter()

	user.NewHandler(s.db, auth, limiter, mailer, uploader).RegisterRoutes(subrouter)
	application.NewHandler(s.db, auth, uploader).RegisterRoutes(subrouter)
	appointment.NewAppointmentHandler(s.db, auth, dispatcher).RegisterRoutes(subrouter)
	payment.NewPaymentHandler(s.db, auth, dispatcher).RegisterRoutes(subrouter)
	video.NewHandler(s.db, auth, video.NewIssuer(signer, s.cfg.StreamAPIKey, s.cfg.VideoTokenTTL)).RegisterRoutes(subrouter)
	review.NewReviewHandler(s.db, auth).RegisterRoutes(subrouter)
	forum.NewBlogHandler(s.db, auth, uploader).RegisterRoutes(subrouter)
	admin.NewAdminHandler(s.db, auth, uploader).RegisterRoutes(subrouter)
	notifications.NewNotificationHandler(s.db, auth).RegisterRoutes(subrouter)
	ws.NewHandler(hub, auth, s.cfg.AllowedOrigins).RegisterRoutes(subrouter)

	router.PathPrefix("/uploads/").Handler(uploader.Handler()).Methods("GET")

	var handler http.Handler = router
	handler = handlers.CORS(
		handlers.AllowedOrigins(s.cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		handlers.AllowCredentials(),
	)(handler)
	handler = handlers.CombinedLoggingHandler(os.Stdout, handler)
	handler = handlers.RecoveryHandler(handlers.PrintRecoveryStack(!s.cfg.IsProduction()))(handler)

	server := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Println("Server running at", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
