package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/yeremiapane/restaurant-pos/config"
	"github.com/yeremiapane/restaurant-pos/database"
	"github.com/yeremiapane/restaurant-pos/gateway"
	"github.com/yeremiapane/restaurant-pos/kds"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/notifications"
	"github.com/yeremiapane/restaurant-pos/realtime"
	"github.com/yeremiapane/restaurant-pos/router"
	"github.com/yeremiapane/restaurant-pos/services"
	"github.com/yeremiapane/restaurant-pos/session"
	"github.com/yeremiapane/restaurant-pos/storage"
	"github.com/yeremiapane/restaurant-pos/store"
	"github.com/yeremiapane/restaurant-pos/utils"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Run the HTTP and websocket service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDB()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, db)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, db *gorm.DB) error {
	log := utils.InfoLogger
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := database.Migrate(db, log); err != nil {
		return err
	}

	gw := gateway.New(db, log)

	reg := realtime.NewRegistry(log)
	reg.Start()
	defer reg.Stop()

	monitor := services.NewChangeMonitor(db, reg, cfg.ChangePollInterval, log)
	monitor.Start()
	defer monitor.Stop()

	var (
		bc       notifications.Broadcaster = notifications.NewLocalBroadcaster()
		sessions session.Store             = session.NewMemoryStore()
	)
	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		bc = notifications.NewRedisBroadcaster(client, log)
		sessions = session.NewRedisStore(client)
		log.WithField("addr", cfg.RedisAddr).Info("using redis for notifications and sessions")
	}
	defer bc.Close()

	notes := notifications.NewService(gw, bc, log)
	if err := notes.Start(); err != nil {
		return err
	}
	defer notes.Stop()

	stores := store.NewManager(gw, reg, log, cfg.DefaultRestaurant)
	defer stores.Close()

	hub := kds.NewHub(reg, notes, orderScope(gw), log)
	defer hub.Close()

	r := router.SetupRouter(router.Deps{
		Gateway:       gw,
		Stores:        stores,
		Notifications: notes,
		Sessions:      sessions,
		Uploader:      storage.NewUploader(cfg.UploadDir, cfg.PublicBaseURL),
		Hub:           hub,
		Tokens:        utils.NewTokenManager(cfg.JWTSecret),
		Log:           log,
		CORSOrigin:    cfg.CORSOrigin,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	hub.Close()
	return srv.Shutdown(shutdownCtx)
}

// orderScope checks item events against the order's restaurant.
func orderScope(gw *gateway.Gateway) kds.OrderScope {
	return func(restaurantID, orderID uint) bool {
		o, err := gateway.First[models.Order](context.Background(), gw, orderID)
		return err == nil && o.RestaurantID == restaurantID
	}
}
