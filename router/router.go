package router

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-pos/controllers"
	"github.com/yeremiapane/restaurant-pos/gateway"
	"github.com/yeremiapane/restaurant-pos/kds"
	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/notifications"
	"github.com/yeremiapane/restaurant-pos/session"
	"github.com/yeremiapane/restaurant-pos/storage"
	"github.com/yeremiapane/restaurant-pos/store"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// Deps is everything the HTTP layer is wired to.
type Deps struct {
	Gateway       *gateway.Gateway
	Stores        *store.Manager
	Notifications *notifications.Service
	Sessions      session.Store
	Uploader      *storage.Uploader
	Hub           *kds.Hub
	Tokens        *utils.TokenManager
	Log           *logrus.Logger
	CORSOrigin    string
}

var imageExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(d.CORSOrigin))
	r.Use(middlewares.LoggerMiddleware(d.Log))

	// only images are served from the upload dir
	r.Use(func(c *gin.Context) {
		if p := c.Request.URL.Path; strings.HasPrefix(p, "/uploads/") && !imageExt[strings.ToLower(filepath.Ext(p))] {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	})
	if d.Uploader != nil {
		r.Static("/uploads", d.Uploader.Dir)
	}

	base := controllers.NewBase(d.Gateway, d.Stores, d.Log)
	var notifier controllers.Notifier
	if d.Notifications != nil {
		notifier = d.Notifications
	}
	userCtrl := controllers.NewUserController(d.Gateway, d.Tokens, d.Log)
	tableCtrl := controllers.NewTableController(base)
	orderCtrl := controllers.NewOrderController(base)
	paymentCtrl := controllers.NewPaymentController(base, notifier, d.Hub)
	menuCtrl := controllers.NewMenuController(base, d.Uploader)
	companyCtrl := controllers.NewCompanyController(base)
	notificationCtrl := controllers.NewNotificationController(base, d.Notifications)
	adminCtrl := controllers.NewAdminController(base)
	sessionCtrl := controllers.NewSessionController(d.Sessions)
	kdsCtrl := controllers.NewKDSController(base, d.Hub, d.CORSOrigin)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	// digital menu
	r.GET("/menu/:slug", menuCtrl.PublicMenu)

	// websocket; browsers pass the token as ?token=
	r.GET("/ws", middlewares.AuthMiddleware(d.Tokens), kdsCtrl.KDSHandler)

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/api")
	auth.Use(middlewares.AuthMiddleware(d.Tokens))

	auth.GET("/profile", userCtrl.GetProfile)
	auth.POST("/logout", userCtrl.Logout)

	auth.GET("/snapshot", adminCtrl.GetSnapshot)
	auth.POST("/refresh", adminCtrl.Refresh)

	// TABLES
	auth.GET("/tables", tableCtrl.GetAllTables)
	auth.POST("/tables", tableCtrl.CreateTable)
	auth.POST("/tables/:table_id/occupy", tableCtrl.OccupyTable)
	auth.POST("/tables/:table_id/request-payment", tableCtrl.RequestPayment)
	auth.POST("/tables/:table_id/release", tableCtrl.ReleaseTable)
	auth.DELETE("/tables/:table_id", tableCtrl.DeleteTable)
	auth.GET("/tables/:table_id/bill", tableCtrl.GetBill)
	auth.POST("/tables/:table_id/finalize", paymentCtrl.FinalizePayment)

	// ORDERS
	auth.GET("/orders", orderCtrl.GetOrders)
	auth.POST("/orders", orderCtrl.CreateOrder)
	auth.POST("/orders/:order_id/items", orderCtrl.AddItem)
	auth.PATCH("/order-items/:item_id", orderCtrl.UpdateItemStatus)
	auth.DELETE("/order-items/:item_id", orderCtrl.RemoveItem)
	auth.GET("/kitchen/items", orderCtrl.KitchenItems)

	// MENU
	auth.GET("/products", menuCtrl.GetAllProducts)
	auth.POST("/products", menuCtrl.CreateProduct)
	auth.PUT("/products/:product_id", menuCtrl.UpdateProduct)
	auth.DELETE("/products/:product_id", menuCtrl.DeleteProduct)
	auth.POST("/products/:product_id/image", menuCtrl.UploadImage)
	auth.GET("/categories", menuCtrl.GetAllCategories)
	auth.POST("/categories", menuCtrl.CreateCategory)

	// NOTIFICATIONS
	auth.GET("/notifications", notificationCtrl.GetNotifications)
	auth.GET("/notifications/unread-count", notificationCtrl.UnreadCount)
	auth.POST("/notifications", notificationCtrl.CreateNotification)
	auth.PATCH("/notifications/:notification_id/read", notificationCtrl.MarkAsRead)

	// SESSION
	auth.GET("/session", sessionCtrl.GetPrefs)
	auth.PUT("/session", sessionCtrl.SavePrefs)

	// DASHBOARD & REPORTS
	auth.GET("/dashboard", adminCtrl.GetDashboardStats)
	auth.GET("/reports/sales-by-day", adminCtrl.GetSalesByDay)
	auth.GET("/reports/sales", adminCtrl.GetSalesReport)
	auth.GET("/reports/cmv", adminCtrl.GetCMV)
	auth.GET("/stock-alerts", adminCtrl.GetStockAlerts)

	// Owner only
	owner := auth.Group("/")
	owner.Use(middlewares.RequireRole(models.RoleOwner, models.RoleAdmin))
	{
		owner.PUT("/restaurant", adminCtrl.UpdateRestaurant)
		owner.PUT("/menu-publication", menuCtrl.PublishMenu)

		owner.GET("/company", companyCtrl.GetCompany)
		owner.PUT("/company", companyCtrl.SaveCompany)
		owner.GET("/employees", companyCtrl.GetEmployees)
		owner.POST("/employees", companyCtrl.CreateEmployee)
		owner.PUT("/employees/:employee_id", companyCtrl.UpdateEmployee)
		owner.DELETE("/employees/:employee_id", companyCtrl.DeleteEmployee)

		owner.GET("/debug/actor", adminCtrl.DebugActor)
		owner.GET("/debug/restaurants/:restaurant_id/access", adminCtrl.DebugRestaurantAccess)
		owner.GET("/debug/changes", adminCtrl.DebugChangeBacklog)
	}

	return r
}
