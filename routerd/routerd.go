// Package routerd wires the routing library into a daemon: it tails the
// MySQL binlog and hands every row change to the configured actions.
package routerd

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Shopify/ghostrouter"
	"github.com/go-mysql-org/go-mysql/mysql"
	siddontanglog "github.com/siddontang/go-log/log"
	"github.com/sirupsen/logrus"
)

type Router struct {
	*Config

	// Rules are re-read from this file on reload. Without it reloads
	// recompile the rules loaded at startup.
	ConfigPath string

	ErrorHandler  ghostrouter.ErrorHandler
	Routes        *ghostrouter.RouteTable
	Dispatcher    *ghostrouter.Dispatcher
	Streamer      *ghostrouter.BinlogStreamer
	ControlServer *ghostrouter.ControlServer
	Throttler     ghostrouter.Throttler

	actions map[string]Action
	logger  *logrus.Entry
	stopped ghostrouter.AtomicBoolean
}

func (r *Router) ensureLogger() {
	if r.logger == nil {
		r.logger = logrus.WithField("tag", "routerd")
	}
}

func (r *Router) Initialize() (err error) {
	r.ensureLogger()
	r.logger.Infof("hello world from %s", ghostrouter.VersionString)

	if err = r.Config.ValidateConfig(); err != nil {
		return err
	}

	panicHandler := &ghostrouter.PanicErrorHandler{}
	if r.ErrorHandler == nil {
		r.ErrorHandler = &CallbackErrorHandler{
			ErrorHandler:  panicHandler,
			ErrorCallback: r.Config.ErrorCallback,
			Logger:        r.logger,
		}
	}

	// go-mysql logs to stdout by default, which is reserved for state dumps.
	siddontanglog.SetDefaultLogger(siddontanglog.NewDefault(&siddontanglog.NullHandler{}))

	_, err = ghostrouter.InitializeMetrics("ghostrouter", r.Config.Statsd.Address, r.Config.Statsd.QueueSize, r.Config.MetricTags())
	if err != nil {
		r.logger.WithError(err).Error("failed to initialize metrics")
		return err
	}

	r.actions, err = BuildActions(r.Config.Actions)
	if err != nil {
		return err
	}

	r.Routes = &ghostrouter.RouteTable{Loader: r.loadRoutes}
	if _, err = r.Routes.Index(); err != nil {
		r.logger.WithError(err).Error("failed to compile routes")
		return err
	}
	r.Dispatcher = ghostrouter.NewDispatcher(r.Routes)

	decompressor, err := ghostrouter.NewColumnDecompressor(r.Config.CompressedColumns)
	if err != nil {
		return err
	}

	db, err := r.Config.Source.SqlDB(r.logger.WithField("dbname", "source"))
	if err != nil {
		r.logger.WithError(err).Error("failed to connect to source database")
		return err
	}
	if err = db.Ping(); err != nil {
		r.logger.WithError(err).Error("source connection checking failed")
		return err
	}

	r.Streamer = &ghostrouter.BinlogStreamer{
		DB:           db,
		DBConfig:     &r.Config.Source,
		MyServerId:   r.Config.MyServerId,
		ErrorHandler: r.ErrorHandler,
		Filter:       r.Dispatcher,
		Columns:      ghostrouter.NewColumnCache(db),
		Decompressor: decompressor,
	}
	if r.Throttler == nil {
		r.Throttler = &ghostrouter.PauserThrottler{}
	}
	r.Streamer.AddEventListener(NewListener(r.Dispatcher, r.Throttler, r.Config.MaxActionRetries, r.Config.ActionRetrySleep))

	panicHandler.Streamer = r.Streamer
	panicHandler.Dispatcher = r.Dispatcher
	panicHandler.Routes = r.Routes

	if r.Config.ServerBindAddr != "" {
		r.ControlServer = &ghostrouter.ControlServer{
			Routes:     r.Routes,
			Dispatcher: r.Dispatcher,
			Streamer:   r.Streamer,
			Throttler:  r.Throttler,
			Addr:       r.Config.ServerBindAddr,
		}
		if err = r.ControlServer.Initialize(); err != nil {
			return err
		}
	}

	r.logger.Info("router initialized")
	return nil
}

func (r *Router) loadRoutes() (ghostrouter.Index, error) {
	schemas := r.Config.Schemas
	if r.ConfigPath != "" {
		var err error
		schemas, err = LoadSchemas(r.ConfigPath)
		if err != nil {
			return nil, err
		}
	}
	return CompileRules(schemas, r.actions)
}

// Run streams until Stop is called or a signal is received.
func (r *Router) Run() error {
	r.ensureLogger()

	var pos mysql.Position
	var err error
	if start := r.Config.StartFromBinlogPosition; start != nil {
		pos, err = r.Streamer.ConnectBinlogStreamerToMysqlFrom(mysql.Position{Name: start.File, Pos: start.Pos})
	} else {
		pos, err = r.Streamer.ConnectBinlogStreamerToMysql()
	}
	if err != nil {
		return err
	}
	r.logger.WithField("position", pos).Info("connected to binlog")

	servicesWg := &sync.WaitGroup{}
	if r.ControlServer != nil {
		servicesWg.Add(1)
		go r.ControlServer.Run(servicesWg)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	done := make(chan struct{})
	defer close(done)

	go stopOnSignal(signals, done, func(sig os.Signal) {
		r.logger.Warnf("received signal %s, stopping", sig)
		r.Stop()
	})

	streamerWg := &sync.WaitGroup{}
	streamerWg.Add(1)
	go func() {
		defer streamerWg.Done()
		r.Streamer.Run()
	}()
	streamerWg.Wait()

	if r.ControlServer != nil {
		if err := r.ControlServer.Shutdown(); err != nil {
			r.logger.WithError(err).Warn("failed to shut down control server")
		}
	}
	servicesWg.Wait()

	CloseActions(r.actions)
	ghostrouter.GlobalMetrics().StopAndFlush()

	r.logger.WithField("stats", fmt.Sprintf("%+v", r.Dispatcher.Stats())).Info("router stopped")
	return nil
}

// stopOnSignal calls stop with the first signal received. It returns after
// that, or as soon as done is closed.
func stopOnSignal(signals <-chan os.Signal, done <-chan struct{}, stop func(os.Signal)) {
	select {
	case sig := <-signals:
		stop(sig)
	case <-done:
	}
}

// Stop drains the binlog up to the current master position and makes Run
// return.
func (r *Router) Stop() {
	if r.stopped.Get() {
		return
	}
	r.stopped.Set(true)
	r.Throttler.SetPaused(false)
	r.Streamer.FlushAndStop()
}

// NewListener returns a binlog event listener that dispatches each change,
// retrying failed actions. Dispatching waits while throttler is throttled. An error is returned once retries are exhausted,
// which the streamer treats as fatal.
func NewListener(dispatcher *ghostrouter.Dispatcher, throttler ghostrouter.Throttler, maxRetries int, sleep time.Duration) func([]*ghostrouter.RowChange) error {
	logger := logrus.WithField("tag", "listener")

	return func(changes []*ghostrouter.RowChange) error {
		ghostrouter.WaitForThrottle(throttler)

		for _, change := range changes {
			var err error
			ghostrouter.GlobalMetrics().Measure("Dispatch", []ghostrouter.MetricTag{{Name: "table", Value: change.Table}}, 1.0, func() {
				err = ghostrouter.WithRetries(maxRetries, sleep, logger, "dispatch row change", func() error {
					_, err := dispatcher.Dispatch(change)
					return err
				})
			})
			if err != nil {
				return err
			}
		}
		return nil
	}
}
