package migration

import (
	auditdomain "github.com/voyara/voyara/internal/audit/domain"
	commissiondomain "github.com/voyara/voyara/internal/commission/domain"
	"github.com/voyara/voyara/internal/config"
	invoicedomain "github.com/voyara/voyara/internal/invoice/domain"
	partnerdomain "github.com/voyara/voyara/internal/partner/domain"
	payoutdomain "github.com/voyara/voyara/internal/payout/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// sqlite runs embedded and local; the versioned SQL targets postgres.
		if cfg.DBType == "sqlite" {
			return conn.AutoMigrate(
				&partnerdomain.Partner{},
				&commissiondomain.CommissionStructure{},
				&commissiondomain.CommissionCalculation{},
				&payoutdomain.CommissionPayment{},
				&invoicedomain.Invoice{},
				&invoicedomain.InvoiceLineItem{},
				&invoicedomain.InvoicePayment{},
				&auditdomain.AuditLog{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
