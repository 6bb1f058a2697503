package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/cuemby/warden/internal/wardenerr"
	"github.com/cuemby/warden/pkg/config"
	"github.com/cuemby/warden/pkg/log"
	"github.com/cuemby/warden/pkg/procedure"
	"github.com/cuemby/warden/pkg/router"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/vault"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

var (
	cfgPath   string
	snapKeyHx string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "wardenctl",
	Short:   "wardenctl - demonstration CLI for the warden secrets-custody engine",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("wardenctl version %s\nCommit: %s\n", Version, Commit))
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "warden.yaml", "Path to warden.yaml")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(gcCmd)
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.AddCommand(snapshotWriteCmd)
	snapshotCmd.AddCommand(snapshotReadCmd)
	snapshotWriteCmd.Flags().StringVar(&snapKeyHx, "key", "", "32-byte snapshot key, hex-encoded (required)")
	snapshotWriteCmd.MarkFlagRequired("key")
	snapshotReadCmd.Flags().StringVar(&snapKeyHx, "key", "", "32-byte snapshot key, hex-encoded (required)")
	snapshotReadCmd.MarkFlagRequired("key")
}

func initLogging() {
	opts, err := config.Load(cfgPath)
	if err != nil {
		log.Init(log.Config{Level: log.InfoLevel})
		return
	}
	log.Init(log.Config{Level: log.Level(opts.Logging.Level), JSON: opts.Logging.JSON})
}

func loadOptions() (*config.Options, error) {
	return config.Load(cfgPath)
}

// backendFor builds a vault.MemoryBackend from an on-disk config's
// backend choice.
func backendFor(opts *config.Options, dataDir string) vault.MemoryBackend {
	switch opts.Backend {
	case "file":
		return vault.FileBackend{Dir: dataDir}
	case "noncontiguous":
		return vault.NonContiguousBackend{}
	default:
		return vault.BufferBackend{}
	}
}

func newRouter() (*router.Router, error) {
	opts, err := loadOptions()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = "./warden-data"
	}
	registry := procedure.NewRegistry()
	if opts.ProcedureEnabled("copy_record") {
		if err := registry.Register(procedure.CopyRecord{}); err != nil {
			return nil, err
		}
	}
	if opts.ProcedureEnabled("get_public_key_stub") {
		if err := registry.Register(procedure.GetPublicKeyStub{}); err != nil {
			return nil, err
		}
	}
	return router.New(router.Options{
		DataDir: dataDir,
		Backend: func(client types.ClientId) vault.MemoryBackend {
			return backendFor(opts, dataDir)
		},
		Registry: registry,
	}), nil
}

// spawnOrReuse spawns clientID's actor, tolerating the case where
// wardenctl is invoked twice against the same in-memory process (it
// never is, in practice, since each invocation is a fresh process;
// this keeps the command idempotent if that changes).
func spawnOrReuse(r *router.Router, clientPath []byte) (types.ClientId, error) {
	clientID, err := r.SpawnActor(clientPath, []byte("wardenctl-salt"))
	if err != nil && !errors.Is(err, wardenerr.ErrClientAlreadyExists) {
		return types.ClientId{}, err
	}
	return clientID, nil
}

var writeCmd = &cobra.Command{
	Use:   "write CLIENT VAULT RECORD VALUE",
	Short: "Spawn a client actor and write a secret to it",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRouter()
		if err != nil {
			return err
		}
		client, vaultName, recordName, value := args[0], args[1], args[2], args[3]

		clientID, err := spawnOrReuse(r, []byte(client))
		if err != nil {
			return fmt.Errorf("spawn actor: %w", err)
		}
		if err := r.SwitchActorTarget(clientID); err != nil {
			return fmt.Errorf("switch target: %w", err)
		}

		loc := types.Generic(vaultName, recordName)
		if err := r.WriteToVault(loc, []byte(value), types.NewRecordHint(recordName)); err != nil {
			return fmt.Errorf("write to vault: %w", err)
		}

		fmt.Printf("✓ wrote record %q to vault %q for client %s\n", recordName, vaultName, clientID)
		return nil
	},
}

var readCmd = &cobra.Command{
	Use:   "read CLIENT VAULT RECORD",
	Short: "Read a secret back out of an already-spawned client's vault",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRouter()
		if err != nil {
			return err
		}
		client, vaultName, recordName := args[0], args[1], args[2]
		clientID := types.DeriveClientId([]byte(client), []byte("wardenctl-salt"))

		if err := r.SwitchActorTarget(clientID); err != nil {
			return fmt.Errorf("switch target: %w", err)
		}

		value, err := r.ReadSecret(clientID, types.Generic(vaultName, recordName))
		if err != nil {
			return fmt.Errorf("read secret: %w", err)
		}
		fmt.Println(string(value))
		return nil
	},
}

var gcCmd = &cobra.Command{
	Use:   "gc CLIENT VAULT",
	Short: "Garbage collect revoked records in a vault",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRouter()
		if err != nil {
			return err
		}
		client, vaultName := args[0], args[1]
		clientID := types.DeriveClientId([]byte(client), []byte("wardenctl-salt"))

		if err := r.SwitchActorTarget(clientID); err != nil {
			return fmt.Errorf("switch target: %w", err)
		}
		n, err := r.GarbageCollect([]byte(vaultName))
		if err != nil {
			return fmt.Errorf("garbage collect: %w", err)
		}
		fmt.Printf("✓ collected %d revoked record(s)\n", n)
		return nil
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Write or load an encrypted multi-client snapshot",
}

var snapshotWriteCmd = &cobra.Command{
	Use:   "write PATH",
	Short: "Encrypt and write the current process's state (demonstration only: always empty)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := hex.DecodeString(snapKeyHx)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("--key must be 32 bytes, hex-encoded")
		}
		r, err := newRouter()
		if err != nil {
			return err
		}
		if err := r.WriteAllToSnapshot(args[0], key); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		fmt.Printf("✓ wrote snapshot to %s\n", args[0])
		return nil
	},
}

var snapshotReadCmd = &cobra.Command{
	Use:   "read PATH TARGET_CLIENT",
	Short: "Load a client's state out of a snapshot file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := hex.DecodeString(snapKeyHx)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("--key must be 32 bytes, hex-encoded")
		}
		r, err := newRouter()
		if err != nil {
			return err
		}
		target := types.DeriveClientId([]byte(args[1]), []byte("wardenctl-salt"))
		if err := r.ReadSnapshot(args[0], key, target, nil); err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}
		fmt.Printf("✓ loaded client %s from %s\n", target, args[0])
		return nil
	},
}
