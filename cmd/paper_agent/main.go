package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tradepilot/internal/automation/market"
	"tradepilot/internal/common"
	"tradepilot/internal/paperagent"
	rpccall "tradepilot/internal/server/rpc_call"
)

// paper_agent serves the execution agent contract against simulated balances,
// pricing swaps from the live ticker stream.
func main() {
	config := common.InitConf()
	logger := common.InitLog(config)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache := market.NewCache(5 * time.Minute)
	go market.NewBinanceFeed(config.PriceFeedURL, config.PriceFeedSymbols, cache, nil, logger).Run(ctx)

	prices := func(token string) (float64, bool) {
		snap, err := cache.Snapshot(ctx, token)
		if err != nil {
			return 0, false
		}
		return snap.Price, true
	}
	agent := paperagent.New(logger.Named("paper_agent"), prices, parseBalances(os.Getenv("PAPER_BALANCES")))

	server, err := rpccall.NewServer(agent)
	if err != nil {
		logger.Fatal("register agent service failed", zap.Error(err))
	}
	listener, err := net.Listen("tcp", config.AgentRPCAddr)
	if err != nil {
		logger.Fatal("listen failed", zap.String("addr", config.AgentRPCAddr), zap.Error(err))
	}
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	logger.Info("paper agent listening", zap.String("addr", config.AgentRPCAddr))
	if err := server.Serve(listener); err != nil {
		logger.Error("agent server stopped", zap.Error(err))
	}
}

// parseBalances reads "USDC=10000,ETH=2"; defaults to 10000 USDC.
func parseBalances(raw string) map[string]float64 {
	balances := map[string]float64{}
	for _, item := range strings.Split(raw, ",") {
		token, amount, ok := strings.Cut(strings.TrimSpace(item), "=")
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(amount, 64)
		if err != nil {
			continue
		}
		balances[strings.ToUpper(token)] = v
	}
	if len(balances) == 0 {
		balances["USDC"] = 10000
	}
	return balances
}
