package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	syncPasses          metric.Int64Counter
	orgActivations      metric.Int64Counter
	invitationsCreated  metric.Int64Counter
	invitationsAccepted metric.Int64Counter
	rateLimitDenied     metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "workdesk"
	}
	meter := provider.Meter(name)

	syncPasses, err := meter.Int64Counter("workdesk_sync_passes_total")
	if err != nil {
		return nil, err
	}
	orgActivations, err := meter.Int64Counter("workdesk_org_activations_total")
	if err != nil {
		return nil, err
	}
	invitationsCreated, err := meter.Int64Counter("workdesk_invitations_created_total")
	if err != nil {
		return nil, err
	}
	invitationsAccepted, err := meter.Int64Counter("workdesk_invitations_accepted_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("workdesk_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		syncPasses:          syncPasses,
		orgActivations:      orgActivations,
		invitationsCreated:  invitationsCreated,
		invitationsAccepted: invitationsAccepted,
		rateLimitDenied:     rateLimitDenied,
	}, nil
}

// RecordSyncPass counts one reconciliation pass with its outcome
// (noop, activated, failed).
func (m *Metrics) RecordSyncPass(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.syncPasses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
	))
}

// RecordActivation counts active-organization switches.
func (m *Metrics) RecordActivation(ctx context.Context, cleared bool) {
	if m == nil {
		return
	}
	m.orgActivations.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("cleared", cleared),
	))
}

// RecordInvitationCreated counts issued invitations by role.
func (m *Metrics) RecordInvitationCreated(ctx context.Context, role string) {
	if m == nil {
		return
	}
	m.invitationsCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("role", strings.TrimSpace(role)),
	))
}

// RecordInvitationAccepted counts accepted invitations.
func (m *Metrics) RecordInvitationAccepted(ctx context.Context) {
	if m == nil {
		return
	}
	m.invitationsAccepted.Add(ctx, 1)
}

// RecordRateLimitDenied counts denied invite attempts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, scope string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", strings.TrimSpace(scope)),
	))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	endpoint = strings.TrimSpace(endpoint)
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http", "http/protobuf":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", protocol)
	}
}
