// Package constants provides shared constants for the reverse consolidation calculator.
package constants

// DateLayout is the format expected for dates in deal files and is also the
// output date format.
const DateLayout = "2006-01-02"

// Calendar constants
const (
	// BusinessDaysPerWeek is the number of business days in a schedule week.
	BusinessDaysPerWeek = 5

	// BusinessDaysPerMonth is the canonical business-days-per-month figure used
	// for leverage and monthly savings.
	BusinessDaysPerMonth = 22

	// OneMonthCheckpoint is the business day used for the 1-month savings milestone.
	OneMonthCheckpoint = BusinessDaysPerMonth

	// ThreeMonthCheckpoint is the business day used for the 3-month savings milestone.
	ThreeMonthCheckpoint = 3 * BusinessDaysPerMonth
)

// Simulation constants
const (
	// MaxScheduleDays caps the number of simulated business days.
	MaxScheduleDays = 500

	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0
)

// Fee schedule labels
const (
	// FeeScheduleAverage spreads the fee proportionally across the contract.
	FeeScheduleAverage = "average"

	// FeeScheduleUpfront takes the full fee on day 1.
	FeeScheduleUpfront = "upfront"
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the machine-readable JSON output format
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default deal file name
	DefaultConfigFile = "deal.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum upload size for YAML deal files (256 KB)
	DefaultMaxUploadSizeBytes int64 = 256 * 1024

	// DefaultCacheTTL is the default lifetime of a cached evaluation.
	DefaultCacheTTL = "10m"
)
