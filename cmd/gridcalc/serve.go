package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/onlyadaydreamer/grid/pkg/api"
	grpcapi "github.com/onlyadaydreamer/grid/pkg/api/grpc"
	"github.com/onlyadaydreamer/grid/pkg/calc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the formula engine over HTTP and gRPC",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP server port (default 8790, env PORT)")
	serveCmd.Flags().Int("grpc-port", 0, "gRPC server port (default 8791, env GRPC_PORT)")
	serveCmd.Flags().String("host", "", "Bind address (default 0.0.0.0, env HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	port := envOrDefault("PORT", "8790")
	if v, _ := cmd.Flags().GetInt("port"); v != 0 {
		port = fmt.Sprintf("%d", v)
	}

	grpcPort := envOrDefault("GRPC_PORT", "8791")
	if v, _ := cmd.Flags().GetInt("grpc-port"); v != 0 {
		grpcPort = fmt.Sprintf("%d", v)
	}

	host := envOrDefault("HOST", "0.0.0.0")
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		host = v
	}

	addr := fmt.Sprintf("%s:%s", host, port)
	grpcAddr := fmt.Sprintf("%s:%s", host, grpcPort)

	s, path, err := loadStore(cmd)
	if err != nil {
		return err
	}
	if path != "" {
		log.Printf("Loaded workbook %s (%d sheets)", path, len(s.ListSheets()))
	}

	c := calc.New(calc.WithCells(s))
	server := api.New(s, c)

	grpcServer := grpcapi.New(s, c)
	go func() {
		log.Printf("gRPC server listening on %s", grpcAddr)
		if err := grpcServer.Serve(grpcAddr); err != nil {
			log.Fatalf("gRPC server error: %v", err)
		}
	}()

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down gridcalc...")
		grpcServer.GracefulStop()
		if err := server.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("gridcalc listening on %s", addr)
	return server.Listen(addr)
}
