package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/ace/pkg/api"
	"github.com/cuemby/ace/pkg/autorepair"
	"github.com/cuemby/ace/pkg/clusterdesc"
	"github.com/cuemby/ace/pkg/config"
	"github.com/cuemby/ace/pkg/dbpool"
	"github.com/cuemby/ace/pkg/diff"
	"github.com/cuemby/ace/pkg/leader"
	"github.com/cuemby/ace/pkg/log"
	"github.com/cuemby/ace/pkg/scheduler"
	"github.com/cuemby/ace/pkg/taskstore"
	"github.com/cuemby/ace/pkg/types"
	"github.com/cuemby/ace/pkg/worker"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "aced",
	Short:   "ACE — the Anti-Chaos Engine control-plane daemon",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("aced version %s (%s)\n", Version, Commit))
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)
	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load configuration and run the API Gateway, Periodic Scheduler, and Auto-Repair Loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		return serve(configPath)
	},
}

func init() {
	serveCmd.Flags().String("config", "/etc/ace/config.yaml", "Path to the ACE configuration file")
}

func serve(configPath string) error {
	logger := log.WithComponent("aced")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	descriptor, err := clusterdesc.Open(cfg.DescriptorCachePath, []byte(cfg.DescriptorEncryptionKey))
	if err != nil {
		return fmt.Errorf("open cluster descriptor: %w", err)
	}
	defer descriptor.Close()

	ctx := context.Background()
	store, err := taskstore.New(ctx, cfg.ControlPlaneDSN)
	if err != nil {
		return fmt.Errorf("open task store: %w", err)
	}
	defer store.Close()

	leaderGate, err := leader.New(leader.Config{
		NodeID:    cfg.Raft.NodeID,
		BindAddr:  cfg.Raft.BindAddr,
		DataDir:   cfg.Raft.DataDir,
		Bootstrap: cfg.Raft.Bootstrap,
	})
	if err != nil {
		return fmt.Errorf("start control-plane leadership: %w", err)
	}
	defer leaderGate.Shutdown()

	w := worker.New(worker.Config{
		Concurrency:      cfg.WorkerPoolSize,
		StatementTimeout: cfg.StatementTimeout,
		DiffConfig: diff.Config{
			DefaultBlockRows:   cfg.DefaultBlockRows,
			DefaultMaxCPURatio: cfg.DefaultMaxCPURatio,
			DefaultBatchSize:   cfg.DefaultBatchSize,
			OutputDir:          cfg.DiffOutputDir,
		},
		Store:    store,
		Resolver: descriptor,
	})
	w.Start()
	defer w.Stop()

	sched := scheduler.New(scheduler.Config{
		Submitter: w,
		Store:     store,
		Leader:    leaderGate,
	})
	if err := registerScheduledJobs(sched, cfg.Schedule); err != nil {
		return fmt.Errorf("register scheduled jobs: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	var repairLoop *autorepair.Loop
	if cfg.AutoRepair.Enabled {
		repairLoop, err = newAutoRepairLoop(ctx, cfg, descriptor, leaderGate)
		if err != nil {
			return fmt.Errorf("start auto-repair loop: %w", err)
		}
		repairLoop.Start()
		defer repairLoop.Stop()
		logger.Info().Str("cluster_name", cfg.AutoRepair.ClusterName).Msg("auto-repair loop started")
	}

	apiServer, err := api.NewServer(api.Config{
		ListenAddr:       cfg.ListenAddr,
		CertFile:         cfg.TLS.CertFile,
		KeyFile:          cfg.TLS.KeyFile,
		CAFile:           cfg.TLS.CAFile,
		StatementTimeout: cfg.StatementTimeout,
		Scheduler:        sched,
		Store:            store,
		Resolver:         descriptor,
	})
	if err != nil {
		return fmt.Errorf("build API Gateway: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil {
			errCh <- err
		}
	}()

	logger.Info().Str("addr", cfg.ListenAddr).Msg("aced is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("API Gateway stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("API Gateway shutdown error")
	}

	logger.Info().Msg("shutdown complete")
	return nil
}

// registerScheduledJobs converts each configured JobDefinition/
// ScheduleEntry pair into a scheduler.Job backed by TableDiffParams:
// the schedule section names a cluster, table, and a bag of diff
// arguments, the same shape a table-diff admission takes.
func registerScheduledJobs(sched *scheduler.Scheduler, cfg config.ScheduleConfig) error {
	byName := make(map[string]config.JobDefinition, len(cfg.Jobs))
	for _, jd := range cfg.Jobs {
		byName[jd.Name] = jd
	}

	for _, entry := range cfg.Entries {
		jd, ok := byName[entry.JobName]
		if !ok {
			return fmt.Errorf("schedule entry references unknown job %q", entry.JobName)
		}

		params, err := tableDiffParamsFromJob(jd)
		if err != nil {
			return fmt.Errorf("job %q: %w", jd.Name, err)
		}

		if err := sched.AddJob(scheduler.Job{
			Name:            jd.Name,
			TaskType:        types.TaskTypeTableDiff,
			TaskContext:     params,
			Enabled:         entry.Enabled,
			CrontabSchedule: entry.CrontabSchedule,
			RunFrequency:    entry.RunFrequency,
		}); err != nil {
			return err
		}
	}
	return nil
}

func tableDiffParamsFromJob(jd config.JobDefinition) (types.TableDiffParams, error) {
	params := types.TableDiffParams{ClusterName: jd.ClusterName, TableName: jd.TableName}
	if len(jd.Args) == 0 {
		return params, nil
	}
	raw, err := json.Marshal(jd.Args)
	if err != nil {
		return params, fmt.Errorf("marshal job args: %w", err)
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return params, fmt.Errorf("decode job args: %w", err)
	}
	params.ClusterName = jd.ClusterName
	params.TableName = jd.TableName
	return params, nil
}

// newAutoRepairLoop resolves the configured cluster and discovers the
// primary key of every table named in its Spock exception log, the
// bookkeeping autorepair.Driver needs to synthesise a single-row
// DiffFile for each PENDING exception it remediates.
func newAutoRepairLoop(ctx context.Context, cfg *config.Config, descriptor *clusterdesc.Descriptor, leaderGate *leader.Gate) (*autorepair.Loop, error) {
	cluster, err := descriptor.Resolve(cfg.AutoRepair.ClusterName)
	if err != nil {
		return nil, err
	}

	pool := dbpool.New(cluster, cfg.StatementTimeout)
	primaryKey, err := discoverPrimaryKeys(ctx, pool, cluster)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return autorepair.NewLoop(autorepair.Config{
		Pool:                 pool,
		Cluster:              cluster,
		PrimaryKey:           primaryKey,
		TmpDir:               cfg.DiffOutputDir,
		PollInterval:         cfg.AutoRepair.PollInterval,
		StatusUpdateInterval: cfg.AutoRepair.StatusUpdateInterval,
		Leader:               leaderGate,
	}), nil
}

const exceptionLogTablesQuery = `SELECT DISTINCT table_schema, table_name FROM spock.exception_log`

func discoverPrimaryKeys(ctx context.Context, pool *dbpool.Pool, cluster *types.Cluster) (map[string][]string, error) {
	conn, err := pool.Acquire(ctx, cluster.NodeNames()[0])
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, exceptionLogTablesQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables [][2]string
	for rows.Next() {
		var schema, table string
		if err := rows.Scan(&schema, &table); err != nil {
			return nil, err
		}
		tables = append(tables, [2]string{schema, table})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	primaryKey := make(map[string][]string, len(tables))
	for _, st := range tables {
		meta, err := diff.LoadTableMeta(ctx, conn, st[0], st[1])
		if err != nil {
			return nil, fmt.Errorf("load table metadata for %s.%s: %w", st[0], st[1], err)
		}
		primaryKey[st[0]+"."+st[1]] = meta.PrimaryKey
	}
	return primaryKey, nil
}
