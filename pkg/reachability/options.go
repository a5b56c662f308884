package reachability

import (
	log "github.com/sirupsen/logrus"

	"github.com/dmdmdm-nz/reachd/pkg/notify"
	"github.com/dmdmdm-nz/reachd/pkg/runloop"
)

// Option configures a Monitor at construction.
type Option func(*options)

type options struct {
	factory      SourceFactory
	center       *notify.Center
	loop         *runloop.Loop
	invokeOnMain bool
	logger       *log.Entry
}

func defaultOptions() options {
	return options{
		factory: NewNetSource,
		center:  notify.Default(),
	}
}

// WithSourceFactory replaces the platform source, mainly for tests.
func WithSourceFactory(f SourceFactory) Option {
	return func(o *options) {
		if f != nil {
			o.factory = f
		}
	}
}

// WithCenter posts ChangedNotification to c instead of notify.Default().
func WithCenter(c *notify.Center) Option {
	return func(o *options) {
		if c != nil {
			o.center = c
		}
	}
}

// WithLoop sets the loop StartNotifier delivers on. Without it, each start
// creates a private loop that is closed again by StopNotifier.
func WithLoop(l *runloop.Loop) Option {
	return func(o *options) {
		o.loop = l
	}
}

// WithInvokeOnMain sets the initial value of SetInvokeOnMain.
func WithInvokeOnMain(v bool) Option {
	return func(o *options) {
		o.invokeOnMain = v
	}
}

// WithLogger sets the base log entry; the monitor adds its own fields.
func WithLogger(e *log.Entry) Option {
	return func(o *options) {
		o.logger = e
	}
}
