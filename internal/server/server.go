package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/voyara/voyara/internal/audit"
	auditdomain "github.com/voyara/voyara/internal/audit/domain"
	"github.com/voyara/voyara/internal/commission"
	commissiondomain "github.com/voyara/voyara/internal/commission/domain"
	"github.com/voyara/voyara/internal/config"
	"github.com/voyara/voyara/internal/invoice"
	invoicedomain "github.com/voyara/voyara/internal/invoice/domain"
	"github.com/voyara/voyara/internal/notification"
	obsmiddleware "github.com/voyara/voyara/internal/observability"
	"github.com/voyara/voyara/internal/partner"
	partnerdomain "github.com/voyara/voyara/internal/partner/domain"
	"github.com/voyara/voyara/internal/payout"
	payoutdomain "github.com/voyara/voyara/internal/payout/domain"
	"github.com/voyara/voyara/internal/report"
	reportdomain "github.com/voyara/voyara/internal/report/domain"
	"github.com/voyara/voyara/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	telemetry.Module,
	notification.Module,
	audit.Module,
	partner.Module,
	commission.Module,
	payout.Module,
	invoice.Module,
	report.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(metrics *telemetry.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware())
	r.Use(MetricsMiddleware(metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(metrics *telemetry.Metrics) *gin.Engine {
	return NewEngine(metrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node

	partnerSvc    partnerdomain.Service
	commissionSvc commissiondomain.Service
	payoutSvc     payoutdomain.Service
	invoiceSvc    invoicedomain.Service
	reportSvc     reportdomain.Service
	auditSvc      auditdomain.Service
}

type ServerParams struct {
	fx.In

	Gin   *gin.Engine
	Cfg   config.Config
	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node

	PartnerSvc    partnerdomain.Service
	CommissionSvc commissiondomain.Service
	PayoutSvc     payoutdomain.Service
	InvoiceSvc    invoicedomain.Service
	ReportSvc     reportdomain.Service
	AuditSvc      auditdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine: p.Gin,
		cfg:    p.Cfg,
		db:     p.DB,
		log:    p.Log.Named("http.server"),
		genID:  p.GenID,

		partnerSvc:    p.PartnerSvc,
		commissionSvc: p.CommissionSvc,
		payoutSvc:     p.PayoutSvc,
		invoiceSvc:    p.InvoiceSvc,
		reportSvc:     p.ReportSvc,
		auditSvc:      p.AuditSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Partners --------
	api.POST("/partners", s.CreatePartner)
	api.GET("/partners", s.ListPartners)
	api.GET("/partners/:id", s.GetPartner)
	api.PUT("/partners/:id/status", s.SetPartnerStatus)

	// -------- Commission structures --------
	api.POST("/partners/:id/commission_structures", s.CreateCommissionStructure)
	api.GET("/partners/:id/commission_structures/active", s.ResolveCommissionStructure)

	// -------- Commission calculations --------
	api.POST("/commissions/calculate", s.CalculateCommission)
	api.POST("/commissions/:id/approve", s.ApproveCommission)
	api.POST("/commissions/:id/dispute", s.DisputeCommission)
	api.POST("/commissions/:id/cancel", s.CancelCommission)
	api.GET("/partners/:id/commissions/summary", s.SummarizeCommissions)

	// -------- Payouts --------
	api.POST("/payouts/batches", s.ProcessPayoutBatch)
	api.GET("/payouts/batches/:id/payments", s.ListBatchPayments)

	// -------- Invoices --------
	api.POST("/invoices", s.CreateInvoice)
	api.GET("/invoices/:number", s.GetInvoice)
	api.POST("/invoices/:number/payments", s.AddInvoicePayment)
	api.POST("/invoices/:number/cancel", s.CancelInvoice)
	api.POST("/invoices/:number/credit_notes", s.CreateCreditNote)

	// -------- Reports --------
	api.GET("/reports/aging", s.AgingReport)
	api.GET("/reports/revenue", s.RevenueReport)

	// -------- Audit --------
	api.GET("/audit_logs", s.ListAuditLogs)
}
