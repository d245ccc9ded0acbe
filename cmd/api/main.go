package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bimakw/dex-client/internal/config"
	"github.com/bimakw/dex-client/internal/domain/entities"
	"github.com/bimakw/dex-client/internal/domain/services"
	"github.com/bimakw/dex-client/internal/infrastructure/cache"
	"github.com/bimakw/dex-client/internal/infrastructure/dex"
	"github.com/bimakw/dex-client/internal/infrastructure/ethereum"
	"github.com/bimakw/dex-client/internal/infrastructure/pricing"
	"github.com/bimakw/dex-client/internal/infrastructure/storage"
	"github.com/bimakw/dex-client/internal/logger"
	"github.com/bimakw/dex-client/internal/presentation/handlers"
	"github.com/bimakw/dex-client/internal/wallet"
	"github.com/bimakw/dex-client/internal/wallet/keywallet"
)

const (
	version      = "0.3.0"
	tokensFile   = "configs/tokens.json"
	pairCacheTTL = 10 * time.Second
)

func main() {
	cfg, err := config.Load(getEnv("DEX_CONFIG", config.DefaultPath))
	if err != nil {
		// No logger yet
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Stage, cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("init logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	network := cfg.DefaultNetwork()

	// Initialize Ethereum client
	ethClient, err := ethereum.NewClient(network.RPCURL)
	if err != nil {
		log.Fatal("Failed to connect to Ethereum", zap.String("network", network.Name), zap.Error(err))
	}
	defer ethClient.Close()
	fields := []zap.Field{zap.String("network", network.Name), zap.String("chain_id", ethClient.ChainID().String())}
	blockCtx, cancelBlock := context.WithTimeout(context.Background(), 5*time.Second)
	if head, err := ethClient.BlockNumber(blockCtx); err == nil {
		fields = append(fields, zap.Uint64("block", head))
	}
	cancelBlock()
	log.Info("Connected to Ethereum", fields...)

	// Initialize cache and storage
	var (
		cacheClient cache.Cache
		store       storage.Store
	)
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("Failed to connect to Redis, using in-memory cache", zap.Error(err))
		} else {
			cacheClient = redisCache
			store = storage.NewRedisStore(redisCache.Client(), "dex-client:")
			log.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
		}
	}
	if cacheClient == nil {
		cacheClient = cache.NewInMemoryCache()
		store = storage.NewFileStore(cfg.Storage.Path)
		log.Info("Using in-memory cache", zap.String("storage", cfg.Storage.Path))
	}

	registry := loadRegistry(cfg, log)

	// Initialize DEX clients
	uniswapV2 := dex.NewUniswapV2Client(ethClient, network.FactoryAddress(), network.RouterAddress())
	erc20 := dex.NewERC20Client(ethClient)
	log.Info("Using Uniswap V2 deployment",
		zap.String("factory", uniswapV2.Factory().Hex()),
		zap.String("router", uniswapV2.Router().Hex()))

	wrappedNative, ok := registry.GetByAddress(network.ChainID, network.WrappedNativeAddress())
	if !ok {
		wrappedNative = entities.Token{
			Name:     "Wrapped " + network.NativeCurrency.Name,
			Symbol:   "W" + network.NativeCurrency.Symbol,
			Address:  network.WrappedNativeAddress(),
			ChainID:  network.ChainID,
			Decimals: network.NativeCurrency.Decimals,
		}
	}

	// Initialize wallet session
	detector := newDetector(cfg, log)
	manager := wallet.NewManager(detector, wallet.ManagerConfig{
		ExpectedChainID: network.ChainID,
		Networks:        cfg.WalletNetworks(),
		SettleDelay:     cfg.Wallet.SettleDelay,
		Notifier: func(n wallet.Notice) {
			log.Info("Wallet notice", zap.String("kind", string(n.Kind)), zap.String("message", n.Message))
		},
		Logger: log,
	})

	// Initialize services
	priceClient := pricing.NewClient(cfg.PriceAPI.BaseURL, log,
		pricing.WithTimeout(cfg.PriceAPI.Timeout),
		pricing.WithMaxRetries(cfg.PriceAPI.MaxRetries),
	)
	oracle := services.NewPriceOracle(priceClient, cacheClient, cfg.PriceAPI.CacheTTL, log)
	quoteService := services.NewQuoteService(uniswapV2, oracle, wrappedNative, cfg.Quote.DefaultSlippage, log).
		WithPairCache(cacheClient, pairCacheTTL)
	scheduler := services.NewQuoteScheduler(cfg.Quote.Debounce, log)
	defer scheduler.Close()

	tokenService := services.NewTokenService(registry, map[uint64]dex.TokenReader{network.ChainID: erc20}, store, log)
	tradingService := services.NewTradingService(uniswapV2, erc20, ethClient, manager, services.TradingConfig{
		WrappedNative:   network.WrappedNativeAddress(),
		Deadline:        cfg.Quote.Deadline,
		DefaultSlippage: cfg.Quote.DefaultSlippage,
		ReceiptPoll:     2 * time.Second,
		ReceiptTimeout:  5 * time.Minute,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Restore a previously authorized session; if the wallet shows up later,
	// the watcher retries once it appears
	watcher := wallet.NewWatcher(detector, cfg.Wallet.PollInterval, func(wallet.Provider) {
		if manager.AutoReconnect(ctx) {
			log.Info("Wallet reconnected", zap.Stringer("account", manager.Session().Account))
		}
	}, log)
	go func() {
		if !manager.AutoReconnect(ctx) {
			watcher.Start(ctx)
		}
	}()

	router := handlers.NewRouter(handlers.Dependencies{
		Version: version,
		ChainID: network.ChainID,
		Tokens:  tokenService,
		Prices:  oracle,
		Quotes:  quoteService,
		Drafts:  scheduler,
		Session: manager,
		Prober:  watcher,
		Trader:  tradingService,
		Logger:  log,
	})

	// Trading routes wait for receipts, so there is no server write timeout
	server := &http.Server{
		Addr:        ":" + cfg.HTTP.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info("Starting DEX client API", zap.String("version", version), zap.String("port", cfg.HTTP.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	watcher.Stop()
	manager.Disconnect(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
		return
	}
	log.Info("Server stopped")
}

// loadRegistry starts from the built-in tokens, adds each network's native
// coin and merges tokens.json when present
func loadRegistry(cfg *config.Config, log *zap.Logger) *entities.TokenRegistry {
	base := func() *entities.TokenRegistry {
		r := entities.DefaultRegistry()
		for _, n := range cfg.Networks {
			r.Register(entities.NativeToken(n.ChainID, n.NativeCurrency.Name, n.NativeCurrency.Symbol, n.NativeCurrency.Decimals))
		}
		return r
	}

	registry := base()
	path := getEnv("DEX_TOKENS", tokensFile)
	if _, err := os.Stat(path); err != nil {
		log.Info("Using default token list", zap.Int("tokens", registry.Count()))
		return registry
	}
	if err := registry.LoadFromFile(path); err != nil {
		log.Warn("Failed to load token list, using defaults", zap.String("path", path), zap.Error(err))
		return base()
	}
	log.Info("Loaded token list", zap.String("path", path), zap.Int("tokens", registry.Count()))
	return registry
}

// newDetector picks the wallet source. A configured private key backs a
// local key wallet; otherwise the process looks for an injected provider,
// which a headless server never has.
func newDetector(cfg *config.Config, log *zap.Logger) wallet.Detector {
	if cfg.Wallet.PrivateKey == "" {
		return &wallet.InjectedDetector{
			Env:       wallet.EnvironmentFunc(func(string) any { return nil }),
			Namespace: cfg.Wallet.Namespace,
			Generic:   "ethereum",
			Flag:      cfg.Wallet.Flag,
		}
	}

	kw, err := keywallet.New(cfg.Wallet.PrivateKey, cfg.DefaultChainID, cfg.WalletNetworks(), dialBackend, log)
	if err != nil {
		log.Error("Key wallet unavailable", zap.Error(err))
		return wallet.StaticDetector{}
	}
	return wallet.StaticDetector{Provider: kw}
}

func dialBackend(rpcURL string) (keywallet.Backend, error) {
	client, err := ethereum.NewClient(rpcURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
