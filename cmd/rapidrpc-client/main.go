// Command rapidrpc-client dials a rapidrpcd server and issues a single
// PlaceOrder call, printing the result.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/qx-io/rapidrpc"
	"github.com/qx-io/rapidrpc/rpcpb"
)

func main() {
	app := &cli.App{
		Name:  "rapidrpc-client",
		Usage: "call OrderService.PlaceOrder on a rapidrpc server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "127.0.0.1:39999", Usage: "server address"},
			&cli.StringFlag{Name: "order-id", Value: "order-1", Usage: "order id to place"},
			&cli.IntFlag{Name: "quantity", Value: 1, Usage: "quantity to order"},
			&cli.IntFlag{Name: "timeout-ms", Value: 1000, Usage: "call deadline in ms"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	loop, err := rapidrpc.NewEventLoop()
	if err != nil {
		return fmt.Errorf("rapidrpc-client: %w", err)
	}
	go loop.Loop()
	defer loop.Stop()

	addr := rapidrpc.ParseIPNetAddr(c.String("addr"))
	if !addr.Valid() {
		return fmt.Errorf("rapidrpc-client: invalid address %s", c.String("addr"))
	}

	channel := rapidrpc.NewRPCChannel(addr, loop)
	defer channel.Close()

	ctrl := rapidrpc.NewController()
	ctrl.SetTimeout(c.Int("timeout-ms"))

	req := &rpcpb.OrderRequest{OrderID: c.String("order-id"), Quantity: int32(c.Int("quantity"))}
	resp := &rpcpb.OrderResponse{}

	done := make(chan struct{})
	onDone := func(error) { close(done) }
	loop.AddTask(func() {
		channel.Init(ctrl, req, resp, onDone)
		channel.CallMethod(ctrl, "OrderService.PlaceOrder", req, resp, onDone)
	}, true)

	select {
	case <-done:
	case <-time.After(time.Duration(c.Int("timeout-ms")+500) * time.Millisecond):
		return fmt.Errorf("rapidrpc-client: call did not complete")
	}

	if ctrl.Failed() {
		return fmt.Errorf("rapidrpc-client: call failed: %s (%s)", ctrl.ErrorText(), ctrl.ErrorCode())
	}
	fmt.Printf("order %s accepted=%v\n", resp.OrderID, resp.Accepted)
	return nil
}
