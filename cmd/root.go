package cmd

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hirochachacha/go-smb2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"docextract/pkg/config"
	"docextract/pkg/matcher"
	"docextract/pkg/smbclient"
	"docextract/pkg/spider"
	"docextract/pkg/state"
	"docextract/pkg/utils"
)

var (
	// Authentication
	username string
	password string
	domain   string
	hash     string
	noPass   bool

	// Filters
	filenames  []string
	extensions []string
	content    []string
	sharenames []string
	dirnames   []string
	excludes   []string
	noExclude  bool

	// Batch
	threads         int
	concurrentHosts int
	maxDepth        int
	maxSizeMB       int
	outputFile      string
	outputDir       string
	structured      bool
	keepEmpty       bool
	resumeFile      string
	connectTimeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "docextract [targets]",
	Short: "docextract: extract plain text from office documents, PDFs and text files",
	Long: `docextract walks local directories and SMB shares and turns every
supported document into plain text. Each format is tried with a cascade
of extractors, from the richest partitioner down to raw decoding, so a
missing external tool or a damaged file degrades the result instead of
failing the batch.

Targets can be:
- Local directory or file
- Single IP or Hostname (e.g. 192.168.1.1)
- CIDR Range (e.g. 192.168.1.0/24)
- File containing targets (one per line)`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		utils.CloseLogger()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		utils.PrintBanner()
		utils.LogInfo("docextract starting...")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		return runBatch(ctx, cfg, args)
	},
}

func runBatch(ctx context.Context, cfg *config.Config, args []string) error {
	if noPass {
		utils.LogDebug("Using --no-pass, ignoring any provided password")
		password = ""
	}

	eng := buildEngine(cfg)

	// Global Deduplicator
	dedup := utils.NewDeduplicator()

	reporters := spider.MultiReporter{&spider.ConsoleReporter{}}
	if outputFile != "" {
		jr, err := spider.NewJSONReporter(outputFile)
		if err != nil {
			return fmt.Errorf("create reporter: %w", err)
		}
		reporters = append(reporters, jr)
	}
	defer reporters.Close()

	matchEngine, err := matcher.NewMatcher(matcher.MatchConfig{
		Filenames:  filenames,
		Extensions: cfg.Batch.Extensions,
		Content:    content,
		Dirnames:   dirnames,
		Excludes:   cfg.Batch.Excludes,
		NoDefaults: noExclude,
	})
	if err != nil {
		return fmt.Errorf("create matcher: %w", err)
	}
	if noExclude {
		utils.LogWarning("Disabling default exclusions")
	}

	sConfig := spider.Config{
		MaxDepth:    cfg.Batch.MaxDepth,
		Threads:     cfg.Batch.Threads,
		MaxFileSize: cfg.MaxFileBytes(),
		OutputDir:   cfg.Batch.OutputDir,
		Structured:  structured,
		KeepEmpty:   keepEmpty,
	}

	// Resume State
	var stateMgr *state.Manager
	if resumeFile != "" {
		stateMgr, err = state.NewManager(resumeFile)
		if err != nil {
			return fmt.Errorf("init state manager: %w", err)
		}
		utils.LogInfo("Resume mode enabled. Loaded state from %s", resumeFile)
	}

	finalTargets := expandTargets(args, stateMgr)
	if stateMgr != nil {
		utils.LogInfo("Targets after resume filter: %d", len(finalTargets))
	} else {
		utils.LogInfo("Total targets processed: %d", len(finalTargets))
	}

	creds := smbclient.Credentials{User: username, Password: password, Domain: domain, Hash: hash}
	stats := &spider.Stats{}

	var completedTargets int32
	totalTargets := len(finalTargets)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrentHosts, 1))
	for _, target := range finalTargets {
		tgt := target
		g.Go(func() error {
			defer func() {
				curr := atomic.AddInt32(&completedTargets, 1)
				utils.LogInfo("Progress: Targets [%d/%d] - Finished %s", curr, totalTargets, tgt)
				if stateMgr != nil && gctx.Err() == nil {
					if err := stateMgr.MarkCompleted(tgt); err != nil {
						utils.LogWarning("Failed to save resume state: %v", err)
					}
				}
			}()

			if _, err := os.Stat(tgt); err == nil {
				utils.LogInfo("Scanning local path: %s", tgt)
				s := spider.NewSpider(sConfig, matchEngine, &spider.LocalFS{}, eng, dedup, reporters)
				s.Stats = stats
				s.Walk(gctx, tgt)
				return gctx.Err()
			}
			scanHost(gctx, tgt, creds, sConfig, func(shareCfg spider.Config, mount *smb2.Share, sem chan struct{}) {
				s := spider.NewSpider(shareCfg, matchEngine, &spider.SMBFS{Share: mount}, eng, dedup, reporters)
				s.Stats = stats
				s.Semaphore = sem // Inject shared semaphore
				s.Walk(gctx, ".")
			})
			return gctx.Err()
		})
	}
	err = g.Wait()

	utils.LogSuccess("Done: %s", stats)
	if err != nil {
		return err
	}
	return ctx.Err()
}

// scanHost mounts every share of an SMB host and walks them with one
// semaphore bounding extraction for the whole host.
func scanHost(ctx context.Context, tgt string, creds smbclient.Credentials, sConfig spider.Config, walk func(spider.Config, *smb2.Share, chan struct{})) {
	utils.LogInfo("Scanning remote target: %s", tgt)

	session, err := smbclient.NewSession(ctx, tgt, creds, connectTimeout)
	if err != nil {
		utils.LogError("Failed to connect to %s: %v", tgt, err)
		return
	}
	defer session.Close()

	shares := sharenames
	if len(shares) == 0 {
		shares, err = session.ListShares()
		if err != nil {
			utils.LogError("Failed to list shares on %s: %v", tgt, err)
			if strings.Contains(err.Error(), "signing required") {
				utils.LogWarning("Target requires SMB Signing which interfered with Share Listing.")
				utils.LogWarning("TRY: specifying shares manually with --sharenames (e.g. '--sharenames C$,Users')")
			}
			return
		}
	}

	hostSem := make(chan struct{}, max(sConfig.Threads, 1))
	var shareWG sync.WaitGroup

	for _, share := range shares {
		if share == "IPC$" {
			utils.LogDebug("Skipping IPC$ share")
			continue
		}

		// Mount serially, walk concurrently.
		mountedShare, err := session.Mount(share)
		if err != nil {
			utils.LogWarning("Failed to mount %s on %s: %v", share, tgt, err)
			continue
		}

		shareWG.Add(1)
		go func(sh string, mount *smb2.Share) {
			defer shareWG.Done()
			defer mount.Umount()

			utils.LogInfo("Scanning share: \\\\%s\\%s", tgt, sh)
			shareCfg := sConfig
			shareCfg.Host = tgt
			shareCfg.Share = sh
			walk(shareCfg, mount, hostSem)
		}(share, mountedShare)
	}
	shareWG.Wait()
}

// expandTargets resolves CIDR ranges and target files, dropping targets
// already completed in a previous run.
func expandTargets(args []string, stateMgr *state.Manager) []string {
	var out []string
	add := func(t string) {
		if stateMgr != nil && stateMgr.IsCompleted(t) {
			utils.LogDebug("Skipping completed target: %s", t)
			return
		}
		out = append(out, t)
	}

	for _, arg := range args {
		if _, ipnet, err := net.ParseCIDR(arg); err == nil {
			utils.LogInfo("Expanding CIDR: %s", arg)
			for ip := ipnet.IP.Mask(ipnet.Mask); ipnet.Contains(ip); inc(ip) {
				add(ip.String())
			}
			continue
		}

		// A regular file that is not a document of ours lists targets.
		fi, err := os.Stat(arg)
		if err == nil && !fi.IsDir() && isTargetList(arg) {
			utils.LogInfo("Reading targets from file: %s", arg)
			file, err := os.Open(arg)
			if err != nil {
				utils.LogError("Failed to open target file %s: %v", arg, err)
				continue
			}
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				if t := strings.TrimSpace(scanner.Text()); t != "" && !strings.HasPrefix(t, "#") {
					add(t)
				}
			}
			file.Close()
			continue
		}

		add(arg)
	}
	return out
}

// isTargetList treats *.targets and extensionless files as target lists.
func isTargetList(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".targets") {
		return true
	}
	base := lower[strings.LastIndexAny(lower, `/\`)+1:]
	return !strings.Contains(base, ".")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaults := config.Default()

	// Shared
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debugging messages")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only write to the log file")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Append log lines to this file")
	rootCmd.PersistentFlags().StringVar(&pdfStrategy, "strategy", defaults.PDFStrategy, "PDF partition strategy (auto, fast, hi_res, ocr_only)")
	rootCmd.PersistentFlags().StringSliceVar(&languages, "lang", defaults.OCRLanguages, "OCR languages (tesseract codes)")
	rootCmd.PersistentFlags().StringVar(&sofficeBin, "soffice", defaults.Converter.Binary, "Office converter executable")
	rootCmd.PersistentFlags().IntVar(&convTimeout, "timeout", defaults.Converter.Timeout, "Converter timeout in seconds")
	rootCmd.PersistentFlags().StringVar(&tempDir, "temp-dir", "", "Root for scratch directories")

	// Auth
	rootCmd.Flags().StringVarP(&username, "username", "u", "", "Username for authentication")
	rootCmd.Flags().StringVarP(&password, "password", "p", "", "Password for authentication")
	rootCmd.Flags().StringVarP(&domain, "domain", "d", "", "Domain for authentication")
	rootCmd.Flags().StringVarP(&hash, "hash", "H", "", "NTLM hash for authentication")
	rootCmd.Flags().BoolVar(&noPass, "no-pass", false, "Do not use a password (force empty)")
	rootCmd.Flags().DurationVar(&connectTimeout, "connect-timeout", 30*time.Second, "SMB connect and negotiate timeout")

	// Filters
	rootCmd.Flags().StringSliceVarP(&filenames, "filenames", "f", []string{}, "Report only filenames matching these regexes (OR with --content)")
	rootCmd.Flags().StringSliceVarP(&extensions, "extensions", "e", []string{}, "Only extract files with these extensions")
	rootCmd.Flags().StringSliceVarP(&content, "content", "c", []string{}, "Report only documents whose text matches these regexes")
	rootCmd.Flags().StringSliceVar(&sharenames, "sharenames", []string{}, "Only search shares with these names")
	rootCmd.Flags().StringSliceVar(&dirnames, "dirnames", []string{}, "Only search directories matching these regexes")
	rootCmd.Flags().StringSliceVar(&excludes, "exclude", []string{}, "Extra path fragments to skip")
	rootCmd.Flags().BoolVar(&noExclude, "no-exclude", false, "Disable default exclusions")

	// Batch
	rootCmd.Flags().IntVarP(&threads, "threads", "t", defaults.Batch.Threads, "Concurrent extractions (PER HOST)")
	rootCmd.Flags().IntVarP(&concurrentHosts, "parallel", "P", 5, "Max concurrent targets")
	rootCmd.Flags().IntVarP(&maxDepth, "maxdepth", "m", defaults.Batch.MaxDepth, "Maximum depth to walk, 0 for unlimited")
	rootCmd.Flags().IntVar(&maxSizeMB, "max-size", defaults.Batch.MaxFileMB, "Skip files larger than this many MB, 0 for unlimited")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write results as JSON lines to this file")
	rootCmd.Flags().StringVar(&outputDir, "output-dir", "", "Write extracted text as <name>.txt under this directory")
	rootCmd.Flags().BoolVarP(&structured, "structured", "S", false, "Use structured output directory (Host/Share/File)")
	rootCmd.Flags().BoolVar(&keepEmpty, "keep-empty", false, "Also report documents that produced no text")
	rootCmd.Flags().StringVar(&resumeFile, "resume", "", "Resume state file (JSON)")

	rootCmd.AddCommand(probeCmd, formatsCmd, extractCmd)
}

func inc(ip net.IP) {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] > 0 {
			break
		}
	}
}
