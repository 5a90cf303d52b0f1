package server

import (
	"context"
	"net/http"
	"strconv"

	"AeroSentry/internal/conf"
	"AeroSentry/internal/server/middleware"
	"AeroSentry/internal/service"
	pkglog "AeroSentry/pkg/log"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// csvImportMaxBytes bounds the accepted CSV upload size.
const csvImportMaxBytes = 10 << 20

// NewHTTPServer new an HTTP server.
func NewHTTPServer(
	c *conf.Bootstrap,
	flights *service.FlightService,
	compensation *service.CompensationService,
	bookings *service.BookingService,
	wallets *service.WalletService,
	monitor *service.MonitorService,
	logger log.Logger,
) *khttp.Server {
	logHelper := pkglog.NewLogHelper(logger)

	var apiKey string
	if c.Auth != nil {
		apiKey = c.Auth.ApiKey
	}

	var opts = []khttp.ServerOption{
		khttp.Middleware(
			recovery.Recovery(),
			middleware.Auth(apiKey, logHelper),
			middleware.Logging(logHelper),
		),
	}
	if c.Server.Http.Network != "" {
		opts = append(opts, khttp.Network(c.Server.Http.Network))
	}
	if c.Server.Http.Addr != "" {
		opts = append(opts, khttp.Address(c.Server.Http.Addr))
	}
	if c.Server.Http.Timeout != nil {
		opts = append(opts, khttp.Timeout(c.Server.Http.Timeout.AsDuration()))
	}
	srv := khttp.NewServer(opts...)

	srv.Handle("/metrics", promhttp.Handler())
	registerRoutes(srv, flights, compensation, bookings, wallets, monitor)

	return srv
}

// registerRoutes wires the JSON API onto the server router.
func registerRoutes(
	srv *khttp.Server,
	flights *service.FlightService,
	compensation *service.CompensationService,
	bookings *service.BookingService,
	wallets *service.WalletService,
	monitor *service.MonitorService,
) {
	root := srv.Route("/")

	root.GET("/healthz", func(ctx khttp.Context) error {
		return ctx.Result(http.StatusOK, map[string]string{"status": "ok"})
	})

	v1 := srv.Route("/v1")

	v1.GET("/flights/{flight_number}/status", func(ctx khttp.Context) error {
		flightNumber := ctx.Vars().Get("flight_number")
		date := ctx.Query().Get("date")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return flights.GetFlightStatus(c, flightNumber, date)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	v1.POST("/flights/status:batch", func(ctx khttp.Context) error {
		var req service.BatchStatusRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return flights.GetBatchStatus(c, &req)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	v1.GET("/providers", func(ctx khttp.Context) error {
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return flights.ListProviders(c)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	v1.POST("/providers/health-check", func(ctx khttp.Context) error {
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return flights.RunHealthCheck(c)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	v1.POST("/providers/{name}/reset", func(ctx khttp.Context) error {
		name := ctx.Vars().Get("name")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return flights.ResetProvider(c, name)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	v1.POST("/compensation/calculate", func(ctx khttp.Context) error {
		var req service.CalculateRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return compensation.Calculate(c, &req)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	v1.POST("/compensation/process", func(ctx khttp.Context) error {
		var req service.ProcessRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return compensation.Process(c, &req)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	v1.POST("/bookings/import/csv", func(ctx khttp.Context) error {
		userID, err := strconv.ParseInt(ctx.Query().Get("user_id"), 10, 64)
		if err != nil {
			return errors.BadRequest("INVALID_USER_ID", "user_id query parameter is required")
		}
		body := http.MaxBytesReader(ctx.Response(), ctx.Request().Body, csvImportMaxBytes)
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return bookings.ImportCSV(c, userID, body)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	v1.POST("/bookings/import/email", func(ctx khttp.Context) error {
		var req service.ImportEmailRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return bookings.ImportEmail(c, &req)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	v1.POST("/bookings/email-accounts", func(ctx khttp.Context) error {
		var req service.LinkEmailRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return bookings.LinkEmail(c, &req)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	v1.GET("/bookings/upcoming", func(ctx khttp.Context) error {
		hours := ctx.Query().Get("hours")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return bookings.ListUpcoming(c, hours)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	v1.GET("/users/{user_id}/bookings", func(ctx khttp.Context) error {
		userID, err := strconv.ParseInt(ctx.Vars().Get("user_id"), 10, 64)
		if err != nil {
			return errors.BadRequest("INVALID_USER_ID", "user_id must be an integer")
		}
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return bookings.ListByUser(c, userID)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	v1.GET("/wallet/{user_id}", func(ctx khttp.Context) error {
		userID, err := strconv.ParseInt(ctx.Vars().Get("user_id"), 10, 64)
		if err != nil {
			return errors.BadRequest("INVALID_USER_ID", "user_id must be an integer")
		}
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return wallets.GetBalance(c, userID)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	v1.GET("/wallet/{user_id}/transactions", func(ctx khttp.Context) error {
		userID, err := strconv.ParseInt(ctx.Vars().Get("user_id"), 10, 64)
		if err != nil {
			return errors.BadRequest("INVALID_USER_ID", "user_id must be an integer")
		}
		page := parseInt32(ctx.Query().Get("page"))
		pageSize := parseInt32(ctx.Query().Get("page_size"))
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return wallets.ListTransactions(c, userID, page, pageSize)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	v1.GET("/monitor/stats", func(ctx khttp.Context) error {
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return monitor.Stats(c)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	v1.POST("/monitor/sweep", func(ctx khttp.Context) error {
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			if err := monitor.Sweep(c); err != nil {
				return nil, err
			}
			return monitor.Stats(c)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	v1.GET("/monitor/events", func(ctx khttp.Context) error {
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return monitor.OpenEvents(c)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})
}

// parseInt32 converts a query parameter, tolerating empty or malformed
// values as zero so downstream defaults apply.
func parseInt32(s string) int32 {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0
	}
	return int32(n)
}
