package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"socialgate/internal"
	"socialgate/platform"
	"socialgate/service"
)

var (
	configPath string
	host       string
	port       int
	proxyURL   string
	stateDir   string
	debug      bool
	quiet      bool
	logLevel   string
	logFile    string
	config     *internal.Config
)

var rootCmd = &cobra.Command{
	Use:     "socialgate",
	Short:   "Session-managed HTTP gateway for TikTok and Instagram data",
	Version: "v1.0.0",
	Long: `SocialGate exposes TikTok and Instagram read operations over a single
HTTP API. It manages one authenticated session per platform, persists session
state across restarts, paces outbound requests with randomized delays, and
normalizes every platform failure into a stable error taxonomy.

Examples:
  socialgate
  socialgate --port 9000 --state-dir /var/lib/socialgate
  socialgate --config socialgate.yaml --debug

Environment Variables:
  MS_TOKEN                TikTok ms_token cookie value
  INSTAGRAM_USERNAME      Instagram account username
  INSTAGRAM_PASSWORD      Instagram account password
  INSTAGRAM_SESSION_ID    Existing Instagram session ID (preferred over login)
  API_KEY                 Shared key required in the X-API-Key header
  HOST, PORT              Listen address
  PROXY_URL               Outbound HTTP/SOCKS proxy URL
  MIN_REQUEST_DELAY       Minimum seconds between platform requests
  MAX_REQUEST_DELAY       Maximum seconds between platform requests
  SOCIALGATE_STATE_DIR    Directory for persisted session artifacts

DISCLAIMER: Respect each platform's Terms of Service and applicable laws.`,
	Args: cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfiguration(); err != nil {
			return fmt.Errorf("configuration error: %v", err)
		}

		if err := internal.InitLogger(config); err != nil {
			return fmt.Errorf("failed to initialize logger: %v", err)
		}

		internal.LogInfo("SocialGate starting up")
		internal.LogDebug("Configuration loaded: host=%s, port=%d, state_dir=%s, debug=%v",
			config.Host, config.Port, config.StateDir, config.EnableDebug)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and report which platforms are usable",
	RunE: func(cmd *cobra.Command, args []string) error {
		creds := platform.NewCredentialStore(config)
		for _, p := range []internal.Platform{internal.PlatformTikTok, internal.PlatformInstagram} {
			if creds.Configured(p) {
				fmt.Printf("%s: credentials configured\n", p)
			} else {
				fmt.Printf("%s: not configured\n", p)
			}
		}
		if config.APIKey == "" {
			fmt.Println("warning: API_KEY is empty, endpoints will not require authentication")
		}
		return nil
	},
}

// loadConfiguration merges defaults, the optional config file, environment
// variables, and CLI flags, in increasing precedence.
func loadConfiguration() error {
	config = internal.DefaultConfig()

	if configPath != "" {
		if err := config.LoadFile(configPath); err != nil {
			return err
		}
	}
	config.LoadFromEnv()

	if host != "" {
		config.Host = host
	}
	if port != 0 {
		config.Port = port
	}
	if proxyURL != "" {
		config.ProxyURL = proxyURL
	}
	if stateDir != "" {
		config.StateDir = stateDir
	}
	if debug {
		config.EnableDebug = true
		config.LogLevel = "debug"
	}
	if quiet {
		config.QuietMode = true
	}
	if logLevel != "" {
		config.LogLevel = logLevel
	}
	if logFile != "" {
		config.LogFile = logFile
	}

	return config.ValidateConfig()
}

// runServer wires the full stack and serves until a shutdown signal arrives.
func runServer() error {
	creds := platform.NewCredentialStore(config)
	pacer := platform.NewRandomDelayPacer(map[internal.Platform]internal.PacingWindow{
		internal.PlatformTikTok:    config.Pacing(internal.PlatformTikTok),
		internal.PlatformInstagram: config.Pacing(internal.PlatformInstagram),
	})
	store := platform.NewFileArtifactStore(config.StateDir, config.SessionMaxAge)

	browserClient := platform.NewBrowserClient(platform.BrowserClientConfig{
		Browser:       config.TikTokBrowser,
		Headless:      true,
		AntiDetection: config.AntiDetection,
	})
	defer browserClient.Close()

	instagramProxy := config.InstagramProxy
	if instagramProxy == "" {
		instagramProxy = config.ProxyURL
	}
	protocolClient := platform.NewProtocolClient(platform.ProtocolClientConfig{
		ProxyURL:   instagramProxy,
		Timeout:    time.Duration(config.HTTPTimeout) * time.Second,
		MaxRetries: config.MaxRetries,
	})

	tiktokMgr := platform.NewSessionManager(internal.PlatformTikTok, browserClient, creds, pacer, store)
	instagramMgr := platform.NewSessionManager(internal.PlatformInstagram, protocolClient, creds, pacer, store)

	gateway := service.NewGateway(tiktokMgr, instagramMgr)
	configured := make(map[string]bool, len(internal.Platforms))
	for _, p := range internal.Platforms {
		configured[string(p)] = creds.Configured(p)
	}
	server := service.NewServer(service.ServerConfig{
		Host:        config.Host,
		Port:        config.Port,
		APIKey:      config.APIKey,
		Credentials: configured,
	}, gateway)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		internal.LogInfo("Received signal %v, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			internal.LogError("Shutdown error: %v", err)
			return err
		}
		return nil
	case err := <-errChan:
		if err != nil {
			internal.LogError("Server failed: %v", err)
		}
		return err
	}
}

func init() {
	config = internal.DefaultConfig()

	rootCmd.AddCommand(checkCmd)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging with file and line information")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress informational output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr")

	rootCmd.Flags().StringVar(&host, "host", "", fmt.Sprintf("Listen host (env: HOST) (default %s)", config.Host))
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, fmt.Sprintf("Listen port (env: PORT) (default %d)", config.Port))
	rootCmd.Flags().StringVar(&proxyURL, "proxy", "", "HTTP/SOCKS proxy URL for outbound requests (env: PROXY_URL)")
	rootCmd.Flags().StringVar(&stateDir, "state-dir", "", fmt.Sprintf("Directory for persisted session state (env: SOCIALGATE_STATE_DIR) (default %s)", config.StateDir))
}

func Execute() error {
	return rootCmd.Execute()
}
