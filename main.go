//	@title			IdentityGate API
//	@version		1.0
//	@description	Multi-tenant identity gateway issuing per-service JWT pairs
//	@termsOfService	http://swagger.io/terms/

//	@license.name	MIT

//	@host		localhost:8080
//	@BasePath	/

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and the access token.

//	@securityDefinitions.apikey	ServiceBearer
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and the service bearer token.

//	@securityDefinitions.apikey	SessionAuth
//	@in							cookie
//	@name						oauth_session
//	@description				Session cookie carrying OAuth login state

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/go-authgate/identitygate/internal/bootstrap"
	"github.com/go-authgate/identitygate/internal/config"
	"github.com/go-authgate/identitygate/internal/version"

	"go.uber.org/zap"
)

//go:generate go run github.com/swaggo/swag/cmd/swag@v1.16.4 init --output api --outputTypes go

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		version.PrintVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "server":
		runServer()
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Usage: %s [OPTIONS] COMMAND\n\n", os.Args[0])
	fmt.Println("Multi-tenant identity gateway")
	fmt.Println("\nCommands:")
	fmt.Println("  server    Start the gateway")
	fmt.Println("\nOptions:")
	fmt.Println("  -v, --version    Show version information")
	fmt.Println("  -h, --help       Show this help message")
}

func runServer() {
	cfg := config.Load()

	logger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := bootstrap.Run(context.Background(), cfg, logger); err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
}
