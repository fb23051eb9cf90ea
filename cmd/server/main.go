// Package main is the entry point for the confdeploy agent.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/widyaops/confdeploy/internal/config"
	"github.com/widyaops/confdeploy/internal/database"
	"github.com/widyaops/confdeploy/internal/health"
	"github.com/widyaops/confdeploy/internal/models"
	"github.com/widyaops/confdeploy/internal/pipeline"
	"github.com/widyaops/confdeploy/internal/router"
	"github.com/widyaops/confdeploy/internal/service"
	"github.com/widyaops/confdeploy/internal/services"
	"github.com/widyaops/confdeploy/internal/version"
)

func main() {
	// Check for subcommands first
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			printVersion()
			os.Exit(0)
		case "service":
			runServiceCommand(os.Args[2:])
			os.Exit(0)
		case "deploy":
			os.Exit(runDeployCommand(os.Args[2:]))
		}
	}

	configPath := flag.String("config", "config.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config from %s: %v", *configPath, err)
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// TOTP secrets are stored encrypted when a key is configured.
	var cryptoService *services.CryptoService
	if cfg.Security.EncryptionKey != "" {
		key, err := hex.DecodeString(cfg.Security.EncryptionKey)
		if err != nil {
			log.Fatalf("Invalid encryption key (must be 64 hex chars for 32 bytes): %v", err)
		}
		cryptoService, err = services.NewCryptoService(key)
		if err != nil {
			log.Fatalf("Failed to initialize crypto service: %v", err)
		}
		log.Println("Encryption enabled for stored TOTP secrets")
	} else {
		log.Println("Warning: security.encryption_key not set, TOTP secrets stored unencrypted")
		log.Println("Generate a key with: openssl rand -hex 32")
	}

	authService := services.NewAuthService(db, cfg, cryptoService)
	targetService := services.NewTargetService(db)
	deployService := services.NewDeployService(db, cfg, map[string]pipeline.ServiceController{
		models.RuntimeSystemd: service.NewSystemdController(),
		models.RuntimeDocker:  service.NewDockerController(),
	})
	snapshotService := services.NewSnapshotService(deployService)
	auditService := services.NewAuditService(db)

	if err := authService.EnsureAdminUser(); err != nil {
		log.Fatalf("Failed to ensure admin user: %v", err)
	}
	if cfg.Admin.Password == "changeme" {
		log.Println("Warning: admin password is still the default, change admin.password in config.yaml")
	}

	r := router.New(cfg, router.Services{
		Auth:     authService,
		Targets:  targetService,
		Deploy:   deployService,
		Snapshot: snapshotService,
		Audit:    auditService,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Confdeploy %s starting on %s", version.Version, addr)
	log.Printf("Access at: http://%s%s", addr, cfg.Server.PathPrefix)

	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func printVersion() {
	fmt.Printf("Confdeploy %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
}

// runServiceCommand manages the agent's own systemd unit.
func runServiceCommand(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: confdeploy service install|uninstall|status")
		os.Exit(1)
	}

	switch args[0] {
	case "install":
		if err := service.Install(service.DefaultAgentConfig()); err != nil {
			fmt.Fprintf(os.Stderr, "Install failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Service installed and started")
	case "uninstall":
		if err := service.Uninstall(); err != nil {
			fmt.Fprintf(os.Stderr, "Uninstall failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Service uninstalled")
	case "status":
		status, err := service.Status()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status check failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Installed: %v\n", status.IsInstalled)
		fmt.Printf("Enabled:   %v\n", status.IsEnabled)
		fmt.Printf("Running:   %v (%s/%s)\n", status.IsRunning, status.ActiveState, status.SubState)
	default:
		fmt.Fprintln(os.Stderr, "usage: confdeploy service install|uninstall|status")
		os.Exit(1)
	}
}

// runDeployCommand runs the deploy pipeline once, without the server:
// it reads an artifact directory and deploys it against a named target
// using derived default paths. Exit code 0 on success, 1 on failure.
func runDeployCommand(args []string) int {
	fs := flag.NewFlagSet("deploy", flag.ExitOnError)
	name := fs.String("target", "", "target name (required)")
	artifactDir := fs.String("artifact", "", "directory containing the config files to deploy (required)")
	servicesFlag := fs.String("services", "", "comma-separated services to restart, in order")
	serviceUser := fs.String("user", "", "owner for deployed files")
	healthURL := fs.String("health-url", "", "base URL for the post-deploy health probe")
	fs.Parse(args)

	if *name == "" || *artifactDir == "" {
		fmt.Fprintln(os.Stderr, "usage: confdeploy deploy -target <name> -artifact <dir> [-services a,b] [-user name] [-health-url url]")
		return 1
	}

	artifact, err := readArtifactDir(*artifactDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read artifact: %v\n", err)
		return 1
	}

	target := pipeline.NewTarget(*name)
	target.ServiceUser = *serviceUser

	p := &pipeline.Pipeline{Controller: service.NewSystemdController()}
	if *healthURL != "" {
		p.Probe = health.NewHTTPProbe(*healthURL, health.DefaultTimeout)
	}

	serviceNames := (&models.Target{Services: *servicesFlag}).ServiceList()

	result := p.Deploy(context.Background(), target, artifact, serviceNames)
	if !result.Succeeded {
		fmt.Fprintf(os.Stderr, "Deployment failed at %s: %s\n", result.FailedStep, result.Message)
		return 1
	}

	fmt.Println(result.Message)
	return 0
}

// readArtifactDir loads every regular file under dir into an artifact,
// keyed by path relative to dir.
func readArtifactDir(dir string) (pipeline.Artifact, error) {
	artifact := pipeline.Artifact{Files: make(map[string][]byte)}

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		artifact.Files[rel] = content
		return nil
	})
	if err != nil {
		return pipeline.Artifact{}, err
	}
	if len(artifact.Files) == 0 {
		return pipeline.Artifact{}, fmt.Errorf("no files found in %s", dir)
	}
	return artifact, nil
}
