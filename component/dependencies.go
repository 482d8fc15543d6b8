package component

import (
	"log/slog"

	"github.com/c360/rtkit/metric"
	"github.com/c360/rtkit/port"
)

// Dependencies provides the runtime services a component factory may use.
// Every field may be nil.
type Dependencies struct {
	Network         *port.Network           // Port directory the component's ports are registered in
	MetricsRegistry *metric.MetricsRegistry // Metrics registry for Prometheus
	Logger          *slog.Logger            // Structured logger, defaults to slog.Default()
	LogPublisher    LogPublisher            // Remote log sink, usually the NATS client
	LogSubject      string                  // Subject prefix for remote log entries
}

// GetLogger returns the configured logger or a default logger if none is provided
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithComponent returns a logger configured with component context
func (d *Dependencies) GetLoggerWithComponent(componentName string) *slog.Logger {
	return d.GetLogger().With("component", componentName)
}

// options converts the dependencies into RTObject options.
func (d *Dependencies) options() []Option {
	opts := []Option{WithLogger(d.GetLogger())}
	if d.Network != nil {
		opts = append(opts, WithNetwork(d.Network))
	}
	if d.LogPublisher != nil {
		opts = append(opts, WithLogPublisher(d.LogPublisher, d.LogSubject))
	}
	return opts
}
