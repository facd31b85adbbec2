// ABOUTME: Prometheus collector for engine decisions, fee settlement, and mint activity
// ABOUTME: Nil-safe recording methods so wiring metrics stays optional in tests

package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics exposed by the decision engine
// and the minter. All recording methods are safe on a nil receiver.
type Collector struct {
	gatherer prometheus.Gatherer

	ColorChanges  prometheus.Counter
	Rejections    *prometheus.CounterVec
	FeesCollected prometheus.Counter
	Mints         prometheus.Counter
	TilesClaimed  prometheus.Gauge
}

// NewCollector registers the engine metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	changes, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mosaic_changes_total",
		Help: "Total number of committed color changes.",
	}), "mosaic_changes_total")
	if err != nil {
		return nil, err
	}

	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mosaic_rejections_total",
		Help: "Total number of rejected change requests, labeled by reason.",
	}, []string{"reason"})
	rejections, err = registerCounterVec(reg, rejections, "mosaic_rejections_total")
	if err != nil {
		return nil, err
	}

	fees, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mosaic_fees_collected_total",
		Help: "Total platform fees collected, in base units.",
	}), "mosaic_fees_collected_total")
	if err != nil {
		return nil, err
	}

	mints, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mosaic_mints_total",
		Help: "Total number of minted positions.",
	}), "mosaic_mints_total")
	if err != nil {
		return nil, err
	}

	claimed, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mosaic_tiles_claimed",
		Help: "Current number of claimed positions on the canvas.",
	}), "mosaic_tiles_claimed")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:      gatherer,
		ColorChanges:  changes,
		Rejections:    rejections,
		FeesCollected: fees,
		Mints:         mints,
		TilesClaimed:  claimed,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ChangeCommitted records a committed color change and the platform share
// of its fee.
func (c *Collector) ChangeCommitted(platformFee uint64) {
	if c == nil {
		return
	}
	if c.ColorChanges != nil {
		c.ColorChanges.Inc()
	}
	if c.FeesCollected != nil && platformFee > 0 {
		c.FeesCollected.Add(float64(platformFee))
	}
}

// ChangeRejected records a rejected change request by reason.
func (c *Collector) ChangeRejected(reason string) {
	if c == nil || c.Rejections == nil {
		return
	}
	c.Rejections.WithLabelValues(reason).Inc()
}

// MintCommitted records a successful mint.
func (c *Collector) MintCommitted() {
	if c == nil {
		return
	}
	if c.Mints != nil {
		c.Mints.Inc()
	}
	if c.TilesClaimed != nil {
		c.TilesClaimed.Inc()
	}
}

// SetTilesClaimed sets the claimed-tile gauge, used when the count is
// reloaded from the store at startup.
func (c *Collector) SetTilesClaimed(count uint64) {
	if c == nil || c.TilesClaimed == nil {
		return
	}
	c.TilesClaimed.Set(float64(count))
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
