package main

import (
	"context"
	"errors"
	"time"

	"vienna-backend/internal/audit"
	"vienna-backend/internal/auth"
	"vienna-backend/internal/cache"
	"vienna-backend/internal/cart"
	"vienna-backend/internal/config"
	"vienna-backend/internal/customers"
	"vienna-backend/internal/dashboard"
	"vienna-backend/internal/database"
	"vienna-backend/internal/delivery"
	"vienna-backend/internal/events"
	"vienna-backend/internal/inventory"
	"vienna-backend/internal/items"
	"vienna-backend/internal/logging"
	"vienna-backend/internal/media"
	"vienna-backend/internal/models"
	"vienna-backend/internal/orders"
	"vienna-backend/internal/peoplecounter"
	"vienna-backend/internal/procurement"
	"vienna-backend/internal/reports"
	"vienna-backend/internal/rpc"
	"vienna-backend/internal/sales"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/shopspring/decimal"
)

func main() {
	log := logging.GetLogger()

	cfg, warnings, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if err := logging.SetLevel(cfg.LogLevel); err != nil {
		log.WithError(err).Warn("unknown LOG_LEVEL, keeping info")
	}
	for _, w := range warnings {
		log.Warn(w)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := database.Init(cfg); err != nil {
		log.WithError(err).Fatal("init database")
	}
	redisCache, err := cache.Connect(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("connect redis")
	}
	defer redisCache.Close()

	publisher, closePublisher, err := events.NewPublisher(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("init event publisher")
	}
	defer closePublisher()

	images, err := media.NewStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("init image store")
	}

	caller := rpc.NewCaller(database.DB, cfg.RPCTimeout)

	billSvc := procurement.NewService(caller, procurement.GormBills{}, publisher)
	saleSvc := sales.NewService(caller, publisher)
	orderSvc := orders.NewService(caller, orders.GormOrders{}, redisCache, publisher)
	customerSvc := customers.NewService(customers.GormStore{}, cfg.PhoneRegion)
	dashSvc := dashboard.NewService(dashboard.GormSource{}, redisCache, cfg.DashboardCacheTTL)
	cartSvc := cart.NewService(
		cart.NewStore(redisCache, cfg.CartTTL),
		func(ctx context.Context, itemID string) (string, decimal.NullDecimal, error) {
			return inventory.SellPrice(ctx, database.DB, itemID)
		},
		saleSvc,
		orderSvc,
		redisCache,
	)
	counter := peoplecounter.Counter{
		Detector:     peoplecounter.HTTPDetector{URL: cfg.DetectorURL, Timeout: cfg.DetectorTimeout},
		MaxWidth:     cfg.FrameMaxWidth,
		IoUThreshold: cfg.NMSIoUThreshold,
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var e *fiber.Error
			if errors.As(err, &e) {
				return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
			}
			logging.LogError("main", "ErrorHandler", c.Method()+" "+c.Path(), nil, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "unexpected server error"})
		},
	})

	app.Use(logging.RequestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins(),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))
	if cfg.GCSBucket == "" {
		app.Static(cfg.ImageBaseURL, cfg.ImageDir)
	}

	api := app.Group("/api")

	// Public
	api.Post("/auth/register-admin", auth.RegisterAdminHandler())
	api.Post("/auth/login", auth.LoginHandler(cfg))
	api.Post("/people-counter/count", counter.Handler())

	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))
	adminOnly := auth.RequireRole(models.RoleAdmin)

	protected.Get("/auth/me", auth.MeHandler())
	protected.Post("/auth/users", adminOnly, auth.CreateUserHandler())

	// Items
	protected.Get("/items", items.ListItemsHandler())
	protected.Get("/items/recent", items.RecentItemsHandler(caller))
	protected.Get("/items/:id", items.GetItemHandler())
	protected.Post("/items", items.CreateItemHandler(images))
	protected.Put("/items/:id", items.UpdateItemHandler(images))
	protected.Delete("/items/:id", adminOnly, items.DeleteItemHandler())

	// Inventory
	protected.Get("/inventory", inventory.ListInventoryHandler())
	protected.Get("/inventory/top", inventory.TopInventoryHandler())
	protected.Put("/inventory/:item_id", inventory.SetQuantityHandler())

	// Procurement bills
	protected.Get("/bills", procurement.ListBillsHandler(billSvc))
	protected.Post("/bills/preview", procurement.PreviewBillHandler())
	protected.Get("/bills/:id", procurement.GetBillHandler(billSvc))
	protected.Post("/bills", procurement.CreateBillHandler(billSvc))
	protected.Put("/bills/:id", procurement.UpdateBillHandler(billSvc))
	protected.Delete("/bills/:id", adminOnly, procurement.DeleteBillHandler(billSvc))

	// Sales
	protected.Get("/sales/recent", sales.RecentSalesHandler(saleSvc))
	protected.Post("/sales", sales.CreateSaleHandler(saleSvc))
	protected.Put("/sales/:id", sales.UpdateSaleHandler(saleSvc))
	protected.Delete("/sales/:id", adminOnly, sales.DeleteSaleHandler(saleSvc))

	// Cart
	protected.Get("/cart", cart.GetCartHandler(cartSvc))
	protected.Post("/cart/items", cart.AddItemHandler(cartSvc))
	protected.Put("/cart/items/:item_id", cart.SetQtyHandler(cartSvc))
	protected.Delete("/cart/items/:item_id", cart.RemoveItemHandler(cartSvc))
	protected.Delete("/cart", cart.ClearCartHandler(cartSvc))
	protected.Post("/cart/checkout/sale", cart.CheckoutSaleHandler(cartSvc))
	protected.Post("/cart/checkout/order", cart.CheckoutOrderHandler(cartSvc))

	// Customers
	protected.Get("/customers", customers.ListCustomersHandler(customerSvc))
	protected.Get("/customers/by-phone", customers.CustomerByPhoneHandler(customerSvc))
	protected.Post("/customers", customers.UpsertCustomerHandler(customerSvc))
	protected.Delete("/customers/:id", adminOnly, customers.DeleteCustomerHandler(customerSvc))

	// Orders
	protected.Get("/orders", orders.ListOrdersHandler(orderSvc))
	protected.Get("/orders/recent", orders.RecentOrdersHandler(orderSvc))
	protected.Post("/orders", orders.CreateOrderHandler(orderSvc))
	protected.Put("/orders/:id/status", orders.UpdateStatusHandler(orderSvc))
	protected.Put("/orders/:id/driver", orders.UpdateDriverHandler(orderSvc))
	protected.Post("/orders/:id/fulfill", orders.FulfillOrderHandler(orderSvc))

	// Delivery accounts
	protected.Get("/delivery/accounts", delivery.AccountsHandler(orderSvc))
	protected.Post("/delivery/orders/:id/complete", delivery.CompleteHandler(orderSvc))
	protected.Post("/delivery/orders/:id/settle", delivery.SettleHandler(orderSvc))
	protected.Post("/delivery/orders/:id/cancel", delivery.CancelHandler(orderSvc))

	// Dashboard and reports
	protected.Get("/dashboard/summary", dashboard.SummaryHandler(dashSvc))
	protected.Get("/reports/bills.xlsx", adminOnly, reports.BillsReportHandler(billSvc))
	protected.Get("/reports/sales.xlsx", adminOnly, reports.SalesReportHandler(saleSvc))

	// Audit logs
	protected.Get("/audit-logs", audit.ListAuditLogsHandler())
	protected.Post("/audit-logs/:id/undo", adminOnly, audit.UndoAuditLogHandler())

	log.Infof("server listening on port %s", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.WithError(err).Fatal("listen")
	}
}
