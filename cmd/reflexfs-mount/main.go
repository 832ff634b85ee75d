// Command reflexfs-mount is the client executable: it mounts a reflexfs
// server's persist directory onto a local mountpoint through bazil.org/fuse,
// backed by a cache directory and a freshness interval -- the Go shape of
// the original client's path_to_cache/cache_interval init-time arguments
// (spec.md §6), parsed here with cobra/pflag instead of raw argv indexing.
package main

import (
	"fmt"
	"os"
	"time"

	"bazil.org/fuse"
	bazilfs "bazil.org/fuse/fs"
	"github.com/spf13/cobra"

	"github.com/reflexfs/reflexfs/client/fusefs"
	"github.com/reflexfs/reflexfs/internal/rlog"
	"github.com/reflexfs/reflexfs/rpcproto"
	"github.com/reflexfs/reflexfs/vfscache"
)

var (
	serverAddr    string
	cacheDir      string
	cacheInterval time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "reflexfs-mount mountpoint",
		Short: "Mount a reflexfs server's persist directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0])
		},
	}
	flags := root.Flags()
	flags.StringVar(&serverAddr, "server", "127.0.0.1:10861", "reflexfsd address to connect to")
	flags.StringVar(&cacheDir, "cache-dir", "", "local directory to cache files in")
	flags.DurationVar(&cacheInterval, "cache-interval", 5*time.Second, "freshness window before a cache entry is revalidated")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(mountpoint string) error {
	if cacheDir == "" {
		return fmt.Errorf("reflexfs-mount: --cache-dir is required")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return err
	}

	rpcClient, err := rpcproto.DialClient(serverAddr)
	if err != nil {
		return err
	}
	defer rpcClient.Destroy()

	manager := vfscache.NewManager(cacheDir, cacheInterval, rpcClient)

	conn, err := fuse.Mount(mountpoint, fuse.FSName("reflexfs"), fuse.Subtype("reflexfs"))
	if err != nil {
		return err
	}
	defer conn.Close()

	rlog.Infof(mountpoint, "reflexfs-mount: mounted, connected to %s", serverAddr)

	if err := bazilfs.Serve(conn, fusefs.New(manager)); err != nil {
		return err
	}

	<-conn.Ready
	return conn.MountError
}
