package metrics

import "github.com/prometheus/client_golang/prometheus"

// Cart counts cart mutations and the collaborator failures the cart absorbs.
type Cart struct {
	mutations      *prometheus.CounterVec
	storageFailure *prometheus.CounterVec
	notifyFailure  prometheus.Counter
}

// NewCart registers the cart metrics on reg. A nil registerer yields a
// no-op recorder.
func NewCart(reg prometheus.Registerer) *Cart {
	if reg == nil {
		return &Cart{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations that changed the item list.",
	}, []string{"op"})
	storageFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_storage_failures_total",
		Help: "Durable slot reads/writes that failed and were ignored.",
	}, []string{"op"})
	notifyFailure := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_notify_failures_total",
		Help: "Removal notifications that could not be delivered.",
	})
	reg.MustRegister(mutations, storageFailure, notifyFailure)
	return &Cart{
		mutations:      mutations,
		storageFailure: storageFailure,
		notifyFailure:  notifyFailure,
	}
}

func (c *Cart) Mutation(op string) {
	if c == nil || c.mutations == nil {
		return
	}
	c.mutations.WithLabelValues(op).Inc()
}

func (c *Cart) StorageFailure(op string) {
	if c == nil || c.storageFailure == nil {
		return
	}
	c.storageFailure.WithLabelValues(op).Inc()
}

func (c *Cart) NotifyFailure() {
	if c == nil || c.notifyFailure == nil {
		return
	}
	c.notifyFailure.Inc()
}
