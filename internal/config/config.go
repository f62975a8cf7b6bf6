package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the tradeflow pipeline.
type Config struct {
	Storage       Storage           `yaml:"storage"`
	Server        Server            `yaml:"server"`
	Logging       Logging           `yaml:"logging"`
	Pipeline      Pipeline          `yaml:"pipeline"`
	Risk          Risk              `yaml:"risk"`
	Pricing       Pricing           `yaml:"pricing"`
	Tax           Tax               `yaml:"tax"`
	Account       Account           `yaml:"account"`
	Symbols       map[string]Symbol `yaml:"symbols"`
	Market        Market            `yaml:"market"`
	Institutional Institutional     `yaml:"institutional"`
	Algo          Algo              `yaml:"algo"`
	Faults        Faults            `yaml:"faults"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Pipeline controls per-stage execution behaviour of the orchestrator.
type Pipeline struct {
	// StageTimeoutMS bounds every stage call; expiry maps to an
	// ERRORED outcome with an upstream-timeout cause.
	StageTimeoutMS int `yaml:"stage_timeout_ms"`
	// RetryBudget is the number of retries after the first attempt.
	RetryBudget      int `yaml:"retry_budget"`
	RetryBaseDelayMS int `yaml:"retry_base_delay_ms"`

	// ExpressNotionalLimit is the maximum quantity x base price for an
	// order to qualify for the express fast path.
	ExpressNotionalLimit float64 `yaml:"express_notional_limit"`
}

// Risk holds the score-composition parameters of the risk assessor.
type Risk struct {
	// LevelLowMax and LevelMediumMax are inclusive upper bounds:
	// score <= low max is LOW, <= medium max is MEDIUM, above is HIGH.
	LevelLowMax    float64 `yaml:"level_low_max"`
	LevelMediumMax float64 `yaml:"level_medium_max"`

	// EscalationThreshold routes the order to the escalation branch;
	// ManualApprovalThreshold is the score above which manual review
	// rejects.
	EscalationThreshold     float64 `yaml:"escalation_threshold"`
	ManualApprovalThreshold float64 `yaml:"manual_approval_threshold"`

	VolatilityMultipliers map[string]float64 `yaml:"volatility_multipliers"`
	SectorMultipliers     map[string]float64 `yaml:"sector_multipliers"`
	DefaultSectorMult     float64            `yaml:"default_sector_multiplier"`

	// Compliance pre-checks, run before scoring. An order for a
	// restricted symbol, above the regulatory notional ceiling, or above
	// its sector's exposure cap is rejected regardless of score.
	RestrictedSymbols  []string           `yaml:"restricted_symbols"`
	NotionalCeiling    float64            `yaml:"notional_ceiling"`
	SectorExposureCaps map[string]float64 `yaml:"sector_exposure_caps"`

	// ConcentrationDelayMS simulates the per-sector portfolio
	// concentration check; HighValueDelayMS applies above
	// HighValueThreshold during escalation.
	ConcentrationDelayMS map[string]int `yaml:"concentration_delay_ms"`
	HighValueThreshold   float64        `yaml:"high_value_threshold"`
	HighValueDelayMS     int            `yaml:"high_value_delay_ms"`
}

// Pricing holds commission, fee, and discount parameters for all workflows.
type Pricing struct {
	RetailCommissionRate float64 `yaml:"retail_commission_rate"`
	BuyFeePerShare       float64 `yaml:"buy_fee_per_share"`
	SellSECFeeRate       float64 `yaml:"sell_sec_fee_rate"`

	// Large SELL surcharge: applied when quantity exceeds the threshold
	// and the symbol is in scope (empty scope means all symbols).
	SurchargeQuantity int64    `yaml:"surcharge_quantity"`
	SurchargeRate     float64  `yaml:"surcharge_rate"`
	SurchargeSymbols  []string `yaml:"surcharge_symbols"`

	BulkDiscountQuantity int64   `yaml:"bulk_discount_quantity"`
	BulkDiscountFactor   float64 `yaml:"bulk_discount_factor"`

	InstitutionalCommissionRate float64      `yaml:"institutional_commission_rate"`
	VolumeDiscountTiers         []VolumeTier `yaml:"volume_discount_tiers"`

	AlgoCommissionRate float64 `yaml:"algo_commission_rate"`
	AlgoFeePerShare    float64 `yaml:"algo_fee_per_share"`

	// PriceVariancePct is the half-width of the uniform price jitter
	// applied on every quote.
	PriceVariancePct float64 `yaml:"price_variance_pct"`

	TotalTolerance      float64 `yaml:"total_tolerance"`
	CommissionTolerance float64 `yaml:"commission_tolerance"`
}

// VolumeTier is one step of the institutional volume discount schedule.
type VolumeTier struct {
	MinQuantity int64   `yaml:"min_quantity"`
	Discount    float64 `yaml:"discount"`
}

// Tax configures the tax-loss analysis branch.
type Tax struct {
	Bracket           float64 `yaml:"bracket"`
	DeductionLimit    float64 `yaml:"deduction_limit"`
	ShortTermQuantity int64   `yaml:"short_term_quantity"`
	WashSaleCheckMS   int     `yaml:"wash_sale_check_ms"`
	CostBasisVerifyMS int     `yaml:"cost_basis_verify_ms"`
}

// Account holds the simulated account state the validators check against.
type Account struct {
	Balance        float64          `yaml:"balance"`
	Holdings       map[string]int64 `yaml:"holdings"`
	GlobalOrderCap int64            `yaml:"global_order_cap"`
}

// Symbol is static reference data for one tradeable instrument. A zero
// CostBasis means no basis is on record for the symbol.
type Symbol struct {
	Exchange   string  `yaml:"exchange"`
	Sector     string  `yaml:"sector"`
	BasePrice  float64 `yaml:"base_price"`
	CostBasis  float64 `yaml:"cost_basis"`
	LotSize    int64   `yaml:"lot_size"`
	MaxOrder   int64   `yaml:"max_order"`
	Tradeable  bool    `yaml:"tradeable"`
	Volatility string  `yaml:"volatility"`
}

// Market configures the trading window and the symbols whose price feed is
// down.
type Market struct {
	OpenTime  string `yaml:"open_time"`
	CloseTime string `yaml:"close_time"`
	// AlwaysOpen skips the window check entirely (used by tests and the
	// scenario runner; the algorithmic workflow skips it regardless).
	AlwaysOpen bool `yaml:"always_open"`

	FeedUnavailable []string `yaml:"feed_unavailable"`
}

// Institutional configures the institutional workflow's extra checks.
type Institutional struct {
	PMApprovalQuantity int64    `yaml:"pm_approval_quantity"`
	Custodians         []string `yaml:"custodians"`
}

// Algo configures the algorithmic workflow's strategy controls.
type Algo struct {
	// Strategies maps strategy id to its expected credential.
	Strategies        map[string]string `yaml:"strategies"`
	CircuitBreakerQty int64             `yaml:"circuit_breaker_qty"`
	DailyExecutionCap int               `yaml:"daily_execution_cap"`
}

// Faults holds deliberately wrong behaviours that can be switched on for
// failure-injection demos. All default to off.
type Faults struct {
	// LegacyBulkDiscount applies the bulk discount to the base amount but
	// reports the undiscounted amount as expected.
	LegacyBulkDiscount bool `yaml:"legacy_bulk_discount"`
	// SkipCostBasisGuard runs PnL on a zero cost basis instead of
	// short-circuiting.
	SkipCostBasisGuard bool `yaml:"skip_cost_basis_guard"`
	// ShadowCostBasis overrides the recorded basis for the named symbol.
	ShadowCostBasisSymbol string  `yaml:"shadow_cost_basis_symbol"`
	ShadowCostBasisValue  float64 `yaml:"shadow_cost_basis_value"`
}

// ---------------------------------------------------------------------------
// Defaults and loading
// ---------------------------------------------------------------------------

// Default returns a fully-populated configuration with the stock demo
// universe. Load unmarshals on top of it, so a config file only needs to
// state what it changes.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/tradeflow.db",
		},
		Server: Server{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Pipeline: Pipeline{
			StageTimeoutMS:       5000,
			RetryBudget:          0,
			RetryBaseDelayMS:     100,
			ExpressNotionalLimit: 10000,
		},
		Risk: Risk{
			LevelLowMax:             40,
			LevelMediumMax:          75,
			EscalationThreshold:     75,
			ManualApprovalThreshold: 85,
			VolatilityMultipliers: map[string]float64{
				"low":    1.0,
				"medium": 1.5,
				"high":   2.5,
			},
			SectorMultipliers: map[string]float64{
				"Technology": 1.25,
				"Automotive": 1.1,
			},
			DefaultSectorMult: 1.0,
			NotionalCeiling:   1000000,
			SectorExposureCaps: map[string]float64{
				"Technology": 750000,
			},
			ConcentrationDelayMS: map[string]int{
				"Technology": 3000,
			},
			HighValueThreshold: 500000,
			HighValueDelayMS:   6000,
		},
		Pricing: Pricing{
			RetailCommissionRate:        0.005,
			BuyFeePerShare:              0.01,
			SellSECFeeRate:              0.0000207,
			SurchargeQuantity:           200,
			SurchargeRate:               0.02,
			SurchargeSymbols:            []string{"TSLA", "NVDA"},
			BulkDiscountQuantity:        500,
			BulkDiscountFactor:          0.98,
			InstitutionalCommissionRate: 0.001,
			VolumeDiscountTiers: []VolumeTier{
				{MinQuantity: 10000, Discount: 0.005},
				{MinQuantity: 5000, Discount: 0.003},
				{MinQuantity: 1000, Discount: 0.001},
			},
			AlgoCommissionRate:  0.0001,
			AlgoFeePerShare:     0.005,
			PriceVariancePct:    0.02,
			TotalTolerance:      0.01,
			CommissionTolerance: 0.001,
		},
		Tax: Tax{
			Bracket:           0.24,
			DeductionLimit:    3000,
			ShortTermQuantity: 100,
			WashSaleCheckMS:   200,
			CostBasisVerifyMS: 200,
		},
		Account: Account{
			Balance: 500000,
			Holdings: map[string]int64{
				"AAPL":  500,
				"GOOGL": 200,
				"MSFT":  800,
				"TSLA":  300,
				"NVDA":  300,
			},
			GlobalOrderCap: 10000,
		},
		Symbols: map[string]Symbol{
			"AAPL":  {Exchange: "NASDAQ", Sector: "Technology", BasePrice: 175.50, CostBasis: 165.00, LotSize: 1, MaxOrder: 10000, Tradeable: true, Volatility: "low"},
			"GOOGL": {Exchange: "NASDAQ", Sector: "Technology", BasePrice: 140.25, CostBasis: 135.00, LotSize: 1, MaxOrder: 5000, Tradeable: true, Volatility: "low"},
			"MSFT":  {Exchange: "NASDAQ", Sector: "Technology", BasePrice: 378.90, CostBasis: 360.00, LotSize: 1, MaxOrder: 10000, Tradeable: true, Volatility: "low"},
			"AMZN":  {Exchange: "NASDAQ", Sector: "Consumer", BasePrice: 152.75, CostBasis: 145.00, LotSize: 1, MaxOrder: 5000, Tradeable: true, Volatility: "medium"},
			"TSLA":  {Exchange: "NASDAQ", Sector: "Automotive", BasePrice: 242.80, CostBasis: 230.00, LotSize: 1, MaxOrder: 3000, Tradeable: true, Volatility: "high"},
			"META":  {Exchange: "NASDAQ", Sector: "Technology", BasePrice: 356.20, CostBasis: 340.00, LotSize: 1, MaxOrder: 5000, Tradeable: true, Volatility: "medium"},
			"NVDA":  {Exchange: "NASDAQ", Sector: "Technology", BasePrice: 495.60, CostBasis: 475.00, LotSize: 1, MaxOrder: 5000, Tradeable: true, Volatility: "high"},
		},
		Market: Market{
			OpenTime:        "09:30",
			CloseTime:       "16:00",
			FeedUnavailable: []string{"GME", "AMC"},
		},
		Institutional: Institutional{
			PMApprovalQuantity: 1000,
			Custodians:         []string{"CUST-STATE-ST", "CUST-BNY", "CUST-JPM"},
		},
		Algo: Algo{
			Strategies: map[string]string{
				"momentum-v2":   "mv2-secret",
				"meanrev-alpha": "mra-secret",
			},
			CircuitBreakerQty: 2000,
			DailyExecutionCap: 100,
		},
	}
}

// Load reads the YAML configuration file at the given path, parses it on top
// of the defaults, and then applies environment variable overrides. An empty
// path returns the defaults with env overrides only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("TRADEFLOW_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("TRADEFLOW_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
}
