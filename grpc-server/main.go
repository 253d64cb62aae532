package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"google.golang.org/grpc"

	"github.com/nci/gfocal/utils"
	pb "github.com/nci/gfocal/worker/focalservice"
)

func main() {
	port := flag.Int("p", 6000, "gRPC server listening port.")
	poolSize := flag.Int("n", runtime.NumCPU(), "Maximum number of requests handled concurrently.")
	concurrency := flag.Int("conc", 1, "Goroutines used by each request.")
	maxMsgSize := flag.Int("max_msg_size", utils.DefaultRecvMsgSize, "Maximum gRPC message size in bytes.")
	oomThreshold := flag.Int64("oom_threshold", 512, "Reject tasks that would leave less than this many MB of available memory, 0 disables.")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	p, err := pb.CreateProcessPool(*poolSize, *concurrency, *debug)
	if err != nil {
		log.Printf("Failed to create process pool: %v", err)
		os.Exit(2)
	}

	s := grpc.NewServer(grpc.MaxRecvMsgSize(*maxMsgSize), grpc.MaxSendMsgSize(*maxMsgSize))
	pb.RegisterFocalServer(s, &pb.Server{Pool: p, Guard: pb.NewMemoryGuard(*oomThreshold * 1024)})

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-signals
		log.Printf("shutting down")
		s.GracefulStop()
	}()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	log.Printf("focal worker listening on %v with %d workers", lis.Addr(), *poolSize)
	if err := s.Serve(lis); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
