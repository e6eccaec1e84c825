package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"notifiit/backend/internal/service"
)

const (
	exitOK = iota
	exitError
	exitPartial // 部分批次入库失败
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newSeedCmd().ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var batchErr *service.BatchError
	if errors.As(err, &batchErr) {
		return exitPartial
	}
	fmt.Fprintln(os.Stderr, "错误:", err)
	return exitError
}
