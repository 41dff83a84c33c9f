package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/bluenviron/gocamstream"
	"github.com/bluenviron/gocamstream/internal/conf"
	"github.com/bluenviron/gocamstream/pkg/command"
	"github.com/bluenviron/gocamstream/pkg/imagestream"
	"github.com/bluenviron/gocamstream/pkg/metrics"
	"github.com/bluenviron/gocamstream/pkg/snapshot"
	"github.com/bluenviron/gocamstream/pkg/viewer"
)

func runReceiver(c *cli.Context) error {
	cnf, l, err := getConfig(c)
	if err != nil {
		return err
	}
	defer l.Sync() //nolint:errcheck

	gapPolicy, _ := imagestream.ParseGapPolicy(cnf.GapPolicy)

	r := &gocamstream.Receiver{
		Address:            cnf.ListenAddress,
		MulticastInterface: cnf.MulticastInterface,
		MaxDatagramSize:    cnf.MaxDatagramSize,
		UDPReadBufferSize:  cnf.UDPReadBufferSize,
		DispatchQueueSize:  cnf.DispatchQueueSize,
		GapPolicy:          gapPolicy,
		BandwidthWindow:    cnf.Bandwidth.Window,
		BandwidthSamples:   cnf.Bandwidth.Samples,
		FrameRateWindow:    cnf.FrameRate.Window,
		FrameRateSamples:   cnf.FrameRate.Samples,
		MaxImageSize:       cnf.MaxImageSize,
		Logger:             l.Named("receiver"),
	}
	err = r.Start()
	if err != nil {
		return err
	}
	defer r.Stop()

	saver := &snapshot.Saver{
		Dir:    cnf.SnapshotDir,
		Logger: l.Named("snapshot"),
	}
	err = saver.Initialize()
	if err != nil {
		return err
	}
	defer saver.Close()

	ctrl := &controller{
		receiver: r,
		saver:    saver,
		cmd:      cnf.Command(),
		logger:   l,
	}

	if cnf.Host != "" {
		ctrl.sender = &command.Sender{
			Address: cnf.CommandAddress(),
		}
		err = ctrl.sender.Initialize()
		if err != nil {
			return err
		}
	}

	if cnf.ViewerAddress != "" {
		v := &viewer.Server{
			Address:    cnf.ViewerAddress,
			Source:     r,
			Camera:     cnf.Camera,
			Controller: ctrl,
			Saver:      saver,
			Logger:     l.Named("viewer"),
		}
		err = v.Initialize()
		if err != nil {
			return err
		}
		defer v.Close()
	}

	if cnf.MetricsAddress != "" {
		var closeMetrics func()
		closeMetrics, err = startMetrics(cnf, r, l)
		if err != nil {
			return err
		}
		defer closeMetrics()
	}

	if cnf.StartOnLaunch {
		err = ctrl.Reset(c.Context)
		if err != nil {
			l.Warn("unable to start the stream", zap.Error(err))
		}
	}

	st := &statusLogger{
		receiver: r,
		camera:   cnf.Camera,
		period:   cnf.StatusPeriod,
		logger:   l.Named("status"),
	}
	st.start()
	defer st.stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	receiverErr := make(chan error, 1)
	go func() {
		receiverErr <- r.Wait()
	}()

	select {
	case sig := <-sigChan:
		l.Info("exit requested, shutting down", zap.Stringer("signal", sig))
		return nil

	case err = <-receiverErr:
		return err
	}
}

func startMetrics(cnf *conf.Conf, r *gocamstream.Receiver, l *zap.Logger) (func(), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	err := metrics.Register(reg, r, prometheus.Labels{"camera": cnf.Camera.String()})
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", cnf.MetricsAddress)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err2 := s.Serve(ln)
		if err2 != nil && !errors.Is(err2, http.ErrServerClosed) {
			l.Error("metrics server terminated", zap.Error(err2))
		}
	}()

	l.Info("metrics listening", zap.Stringer("address", ln.Addr()))

	return func() {
		ctx, ctxCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer ctxCancel()
		s.Shutdown(ctx) //nolint:errcheck
	}, nil
}
