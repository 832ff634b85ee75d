// Command reflexfsd is the server executable: it registers every procedure
// serverfs exposes against a single persist directory and serves them until
// interrupted, grounded on the original's server_main.cc startup sequence
// (parse persist directory, rpcServerInit, register, rpcExecute) but using
// cobra for argument parsing and an errgroup to tie the accept loop to
// signal handling, the teacher's idiomatic replacement for a flat blocking
// call plus ad hoc process exit.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/reflexfs/reflexfs/arbitrator"
	"github.com/reflexfs/reflexfs/internal/rlog"
	"github.com/reflexfs/reflexfs/rpcproto"
	"github.com/reflexfs/reflexfs/serverfs"
)

var listenAddr string

func main() {
	root := &cobra.Command{
		Use:   "reflexfsd persist-directory",
		Short: "Serve a persist directory over reflexfs's RPC protocol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0])
		},
	}
	root.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:10861", "address to listen on")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(persistDir string) error {
	info, err := os.Stat(persistDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("reflexfsd: %q is not a directory", persistDir)
	}

	owners := arbitrator.NewWriteOwners()
	locks := arbitrator.NewTable()
	ops := serverfs.NewOps(serverfs.Root(persistDir), owners)

	registry := rpcproto.NewRegistry()
	if err := serverfs.Register(registry, ops, locks); err != nil {
		return err
	}

	server, err := rpcproto.NewServer(registry)
	if err != nil {
		return err
	}
	if err := server.Init(listenAddr); err != nil {
		return err
	}
	rlog.Infof(persistDir, "reflexfsd listening on %s", server.Addr())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Execute()
	})
	g.Go(func() error {
		<-ctx.Done()
		rlog.Infof(persistDir, "reflexfsd shutting down")
		return server.Destroy()
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
