// Command rapidrpcd runs the RPC server: it loads a TOML config, starts
// one Main Reactor plus N Worker Reactors, registers the sample order
// service, and serves Prometheus metrics alongside it.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/urfave/cli/v2"

	"github.com/qx-io/rapidrpc"
	"github.com/qx-io/rapidrpc/config"
	"github.com/qx-io/rapidrpc/metrics"
	"github.com/qx-io/rapidrpc/rlog"
	"github.com/qx-io/rapidrpc/rpcpb"
)

func main() {
	app := &cli.App{
		Name:  "rapidrpcd",
		Usage: "run the rapidrpc server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "rapidrpc.toml", Usage: "path to config file"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("rapidrpcd: %w", err)
	}

	logger := rlog.New(rlog.Options{
		Level:        cfg.Log.Level,
		FileName:     cfg.Log.FileName,
		FilePath:     cfg.Log.FilePath,
		SyncInterval: time.Duration(cfg.Log.SyncInterval) * time.Millisecond,
		MaxFileSize:  cfg.Log.MaxFileSize,
	})
	defer logger.Sync()

	mainLoop, err := rapidrpc.NewEventLoop()
	if err != nil {
		return fmt.Errorf("rapidrpcd: main reactor: %w", err)
	}

	workers := make([]*rapidrpc.EventLoop, cfg.Server.IOThreads)
	for i := range workers {
		w, err := rapidrpc.NewEventLoop()
		if err != nil {
			return fmt.Errorf("rapidrpcd: worker reactor %d: %w", i, err)
		}
		workers[i] = w
		go w.Loop()
	}

	dispatcher := rapidrpc.NewDispatcher()
	registerOrderService(dispatcher, logger)

	addr := rapidrpc.ParseIPNetAddr(fmt.Sprintf("%s:%d", cfg.Server.IP, cfg.Server.Port))
	if !addr.Valid() {
		return fmt.Errorf("rapidrpcd: invalid listen address %s:%d", cfg.Server.IP, cfg.Server.Port)
	}

	srv := rapidrpc.NewServer(addr, mainLoop, workers, dispatcher)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("rapidrpcd: listen: %w", err)
	}

	go func() {
		http.Handle("/metrics", metrics.Handler())
		logger.Sugar().Infow("metrics endpoint listening", "addr", ":9100")
		_ = http.ListenAndServe(":9100", nil)
	}()

	logger.Sugar().Infow("rapidrpcd listening", "addr", addr.String(), "workers", cfg.Server.IOThreads)
	mainLoop.Loop()
	return nil
}

func registerOrderService(d *rapidrpc.Dispatcher, logger *zap.Logger) {
	svc := rapidrpc.NewService("OrderService")
	svc.RegisterMethod("PlaceOrder", func(ctx context.Context, payload []byte) ([]byte, error) {
		req := &rpcpb.OrderRequest{}
		if err := req.Unmarshal(payload); err != nil {
			return nil, rapidrpc.NewError(rapidrpc.FailedDeserialize, err.Error())
		}
		callLog := rlog.WithCall(logger, ctx, rapidrpc.CallContextFrom)
		callLog.Info("placing order",
			zap.String("order_id", req.OrderID),
			zap.Int32("quantity", req.Quantity))
		resp := &rpcpb.OrderResponse{OrderID: req.OrderID, Accepted: req.Quantity > 0}
		return resp.Marshal()
	})
	d.Register(svc)
}
