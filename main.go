package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/sammcj/mcp-code-research/internal/cache"
	"github.com/sammcj/mcp-code-research/internal/config"
	"github.com/sammcj/mcp-code-research/internal/envelope"
	"github.com/sammcj/mcp-code-research/internal/executor"
	"github.com/sammcj/mcp-code-research/internal/registry"
	"github.com/sammcj/mcp-code-research/internal/tools"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	// Import all tool packages to register them
	_ "github.com/sammcj/mcp-code-research/internal/imports"
)

// Version information (set during build)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var (
	debugLogFile atomic.Pointer[os.File]
	isStdioMode  atomic.Bool
)

// parseLogLevel parses the LOG_LEVEL environment variable and returns the appropriate logrus level.
// Defaults to WarnLevel if not set or invalid.
func parseLogLevel() logrus.Level {
	logLevelStr := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	switch logLevelStr {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.WarnLevel
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Discard output until the transport is known; stdout belongs to the protocol in stdio mode
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(parseLogLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	defer performCleanup(logger)

	app := &cli.App{
		Name:    "mcp-code-research",
		Usage:   "MCP server for searching GitHub code, repositories, pull requests and npm packages",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "transport",
				Aliases: []string{"t"},
				Value:   "stdio",
				Usage:   "Transport type (stdio, sse, or http)",
			},
			&cli.StringFlag{
				Name:  "port",
				Value: "18080",
				Usage: "Port to use for HTTP transports (SSE and Streamable HTTP)",
			},
			&cli.StringFlag{
				Name:  "base-url",
				Value: "http://localhost",
				Usage: "Base URL for HTTP transports",
			},
			&cli.StringFlag{
				Name:    "auth-token",
				Usage:   "Bearer token required by the Streamable HTTP transport; requests without it get 401 (optional)",
				EnvVars: []string{"MCP_AUTH_TOKEN"},
			},
			&cli.StringFlag{
				Name:  "endpoint-path",
				Value: "/http",
				Usage: "Endpoint path for Streamable HTTP transport",
			},
			&cli.DurationFlag{
				Name:  "session-timeout",
				Value: 30 * time.Minute,
				Usage: "Session timeout for Streamable HTTP transport",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file (default: ~/.mcp-code-research/config.yaml)",
				EnvVars: []string{config.ConfigPathEnvVar},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(c *cli.Context) error {
					fmt.Printf("mcp-code-research version %s\n", Version)
					fmt.Printf("Commit: %s\n", Commit)
					fmt.Printf("Built: %s\n", BuildDate)
					return nil
				},
			},
			{
				Name:  "config",
				Usage: "Print the effective configuration with secrets redacted",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					out, err := yaml.Marshal(cfg.Redacted())
					if err != nil {
						return fmt.Errorf("failed to render config: %w", err)
					}
					_, err = os.Stdout.Write(out)
					return err
				},
			},
		},
		Action: func(c *cli.Context) error {
			transport := c.String("transport")
			isStdioMode.Store(transport == "stdio")

			configureLogging(logger)

			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			config.Set(cfg)

			var responseCache *cache.Cache
			if !cfg.Cache.Disabled {
				responseCache = cache.NewCache(cfg.Cache.TTL)
			}
			registry.Init(logger, responseCache)
			executor.SetDefault(executor.New(cfg, responseCache, logger))

			if err := tools.InitGlobalErrorLogger(logger); err != nil {
				logger.WithError(err).Warn("Failed to initialise tool error logger")
			}

			if transport != "stdio" {
				logger.Infof("Starting mcp-code-research version %s (commit: %s, built: %s)",
					Version, Commit, BuildDate)
			}

			mcpSrv := mcpserver.NewMCPServer("mcp-code-research", Version)
			registerTools(mcpSrv, logger, transport)

			logger.WithField("transport", transport).Debug("Starting server")
			switch transport {
			case "stdio":
				return mcpserver.ServeStdio(mcpSrv)
			case "sse":
				port := c.String("port")
				logger.WithField("port", port).Debug("Starting SSE server")
				sseServer := mcpserver.NewSSEServer(mcpSrv, mcpserver.WithBaseURL(c.String("base-url")+"/sse"))
				return sseServer.Start(":" + port)
			case "http":
				return startStreamableHTTPServer(c, mcpSrv, logger)
			default:
				return fmt.Errorf("unsupported transport: %s", transport)
			}
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		// stdout and stderr must stay clean in stdio mode
		if !isStdioMode.Load() {
			logger.SetOutput(os.Stderr)
			logger.Fatalf("Error: %v", err)
		}
		os.Exit(1)
	}
}

// configureLogging always logs to a file so stdio traffic is never corrupted.
// Without a writable log file, stdio mode discards and other modes use stderr.
func configureLogging(logger *logrus.Logger) {
	logLevel := parseLogLevel()
	if isStdioMode.Load() && logLevel < logrus.WarnLevel {
		logLevel = logrus.WarnLevel
	}
	logger.SetLevel(logLevel)
	logrus.SetLevel(logLevel)

	var out io.Writer = os.Stderr
	if isStdioMode.Load() {
		out = io.Discard
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		logDir := filepath.Join(homeDir, ".mcp-code-research", "logs")
		if err := os.MkdirAll(logDir, 0700); err == nil {
			logFile := filepath.Join(logDir, "mcp-code-research.log")
			if file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600); err == nil {
				debugLogFile.Store(file)
				out = file
			}
		}
	}

	logger.SetOutput(out)
	logrus.SetOutput(out)
	logger.WithField("level", logLevel.String()).Debug("Logging configured")
}

// registerTools adds every enabled tool to the MCP server
func registerTools(mcpSrv *mcpserver.MCPServer, logger *logrus.Logger, transport string) {
	enabledTools := registry.GetEnabledTools()
	logger.WithField("tool_count", len(enabledTools)).Debug("Registering tools")

	for name, tool := range enabledTools {
		if transport != "stdio" {
			logger.Infof("Registering tool: %s", name)
		}
		mcpSrv.AddTool(tool.Definition(), toolHandler(name, logger, transport))
	}
}

func toolHandler(name string, logger *logrus.Logger, transport string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tool, ok := registry.GetTool(name)
		if !ok {
			return nil, fmt.Errorf("tool not found: %s", name)
		}

		args, ok := request.Params.Arguments.(map[string]any)
		if !ok {
			if request.Params.Arguments != nil {
				return nil, fmt.Errorf("invalid arguments type: expected map[string]any, got %T", request.Params.Arguments)
			}
			args = map[string]any{}
		}

		errorLogger := tools.GetGlobalErrorLogger()
		result, err := tool.Execute(ctx, registry.GetLogger(), registry.GetCache(), args)
		if err != nil {
			logger.WithError(err).Errorf("Tool execution failed: %s", name)
			errorLogger.LogToolError(name, args, err, transport)
			return nil, fmt.Errorf("tool execution failed: %w", err)
		}

		if result != nil && result.IsError && errorLogger.IsEnabled() {
			message, category := describeErrorResult(result)
			errorLogger.LogToolFailure(name, args, message, category, transport)
		}
		return result, nil
	}
}

// describeErrorResult recovers the message and category from an error envelope
func describeErrorResult(result *mcp.CallToolResult) (message, category string) {
	if len(result.Content) == 0 {
		return "", ""
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "", ""
	}
	var resp envelope.ErrorResponse
	if err := json.Unmarshal([]byte(text.Text), &resp); err != nil || resp.Error == "" {
		return text.Text, string(executor.Classify(text.Text))
	}
	return resp.Error, resp.Category
}

// performCleanup handles cleanup of resources on shutdown
func performCleanup(logger *logrus.Logger) {
	if errorLogger := tools.GetGlobalErrorLogger(); errorLogger != nil {
		if err := errorLogger.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close tool error logger")
		}
	}

	// Closed last as the logger may still write to it
	if file := debugLogFile.Load(); file != nil {
		_ = file.Close()
	}
}

// startStreamableHTTPServer configures and starts the Streamable HTTP server with graceful shutdown
func startStreamableHTTPServer(c *cli.Context, mcpServer *mcpserver.MCPServer, logger *logrus.Logger) error {
	port := c.String("port")
	authToken := c.String("auth-token")
	endpointPath := c.String("endpoint-path")
	sessionTimeout := c.Duration("session-timeout")

	logger.Infof("Starting Streamable HTTP server on port %s with endpoint %s", port, endpointPath)

	opts := []mcpserver.StreamableHTTPOption{
		mcpserver.WithEndpointPath(endpointPath),
		mcpserver.WithLogger(&logrusAdapter{logger: logger}),
	}
	if sessionTimeout > 0 {
		opts = append(opts, mcpserver.WithSessionIdManager(&TimeoutSessionManager{
			timeout: sessionTimeout,
			logger:  logger,
		}))
	}
	if authToken != "" {
		logger.Info("Token authentication enabled")
	}

	heartbeatInterval := 30 * time.Second
	if sessionTimeout > 0 {
		heartbeatInterval = sessionTimeout / 4
	}
	opts = append(opts, mcpserver.WithHeartbeatInterval(heartbeatInterval))

	mux := http.NewServeMux()
	mux.Handle(endpointPath, requireBearerToken(authToken, logger, mcpserver.NewStreamableHTTPServer(mcpServer, opts...)))

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-c.Context.Done():
		logger.Info("Shutdown signal received, stopping HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
		return err
	}
	logger.Info("HTTP server stopped gracefully")
	return nil
}

// requireBearerToken rejects requests without the expected Bearer token. An
// empty expected token leaves the endpoint open.
func requireBearerToken(expectedToken string, logger *logrus.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if version := req.Header.Get("MCP-Protocol-Version"); version != "" && !isValidProtocolVersion(version) {
			logger.Warnf("Unsupported MCP Protocol Version: %s", version)
		}

		// DNS rebinding protection
		if origin := req.Header.Get("Origin"); origin != "" && !isValidOrigin(origin) {
			logger.Warnf("Rejected request from origin %s", origin)
			http.Error(w, "forbidden origin", http.StatusForbidden)
			return
		}

		if expectedToken != "" {
			token, found := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
			if !found || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				logger.Warn("Rejected request with missing or invalid token")
				w.Header().Set("WWW-Authenticate", `Bearer realm="mcp-code-research"`)
				http.Error(w, "unauthorised", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, req)
	})
}

func isValidProtocolVersion(version string) bool {
	return slices.Contains([]string{"2025-06-18", "2025-03-26", "2024-11-05"}, version)
}

func isValidOrigin(origin string) bool {
	for _, allowed := range []string{"http://localhost", "https://localhost", "http://127.0.0.1", "https://127.0.0.1"} {
		if strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}

// TimeoutSessionManager implements SessionIdManager with timeout support
type TimeoutSessionManager struct {
	timeout time.Duration
	logger  *logrus.Logger
}

func (t *TimeoutSessionManager) Generate() string {
	return "session-" + uuid.NewString()
}

func (t *TimeoutSessionManager) Validate(sessionID string) (bool, error) {
	if sessionID == "" {
		return false, fmt.Errorf("empty session ID")
	}
	return false, nil
}

func (t *TimeoutSessionManager) Terminate(sessionID string) (bool, error) {
	t.logger.Debugf("Session terminated: %s", sessionID)
	return true, nil
}

// logrusAdapter adapts logrus.Logger to the mcp-go util.Logger interface
type logrusAdapter struct {
	logger *logrus.Logger
}

func (l *logrusAdapter) Infof(format string, args ...any) {
	l.logger.Infof(format, args...)
}

func (l *logrusAdapter) Errorf(format string, args ...any) {
	l.logger.Errorf(format, args...)
}
