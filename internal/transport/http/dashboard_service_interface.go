package http

import (
	"context"
	"io"

	"registrydash/internal/dashboard"
	"registrydash/internal/services"
	"registrydash/pkg/contracts/domain"
	"registrydash/pkg/contracts/events"
)

// DashboardServiceInterface defines the interface for the dashboard service
type DashboardServiceInterface interface {
	View(ctx context.Context, view domain.ViewName, sel dashboard.Selection) (domain.ViewResult, error)
	Views() []services.ViewInfo
	Chart(ctx context.Context, view domain.ViewName, chartID string, sel dashboard.Selection) (domain.ChartConfig, error)
	RenderChart(ctx context.Context, view domain.ViewName, chartID string, sel dashboard.Selection, w io.Writer) error
	Operations(ctx context.Context, scope string, sel dashboard.Selection) (services.OperationsResult, error)
	Labels(ctx context.Context) ([]domain.LabelInfo, error)
	Summary(ctx context.Context) (services.Summary, error)
	Reload(ctx context.Context) (events.DataReloaded, error)
	Export(ctx context.Context, format, scope string, sel dashboard.Selection, w io.Writer) error
	DefaultSelection() dashboard.Selection
	ResolveSelection(labels []string, explicit bool) dashboard.Selection
}

// Ensure DashboardService implements the interface
var _ DashboardServiceInterface = (*services.DashboardService)(nil)
