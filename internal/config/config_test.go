package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/reverse-consolidation/pkg/datetime"
)

const exampleDeal = `
logging:
  level: debug
  format: console
output:
  format: csv
merchant:
  name: Corner Bakery
  businessType: Restaurant
  monthlyRevenue: 110000
asOf: "2026-01-12"
settings:
  dailyPaymentDecrease: 0.30
  feePercent: 0.10
  feeSchedule: average
  rate: 1.5
  brokerCommission: 0.04
  earlyPayOptions:
    - daysAfterFalloff: 30
      discountPercent: 0.10
positions:
  - id: 1
    entity: Alpha Capital
    balance: 50000
    dailyPayment: 500
  - id: 2
    entity: Bravo Funding
    dailyPayment: 150
    fundedDate: "2026-01-05"
    amountFunded: 8000
  - id: 3
    entity: Charlie Advance
    balance: 12000
    dailyPayment: 200
    includeInReverse: false
  - id: 4
    entity: Us
    balance: 20000
    dailyPayment: 250
    isOurPosition: true
`

func writeDeal(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deal.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write deal file: %v", err)
	}
	return path
}

func TestLoadConfiguration(t *testing.T) {
	tests := []struct {
		name       string
		configPath string
		wantError  bool
	}{
		{
			name:       "Non-existent config file",
			configPath: "nonexistent.yaml",
			wantError:  true,
		},
		{
			name:       "Example deal",
			configPath: writeDeal(t, exampleDeal),
		},
		{
			name:       "Malformed YAML",
			configPath: writeDeal(t, "positions: [\n"),
			wantError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadConfiguration(tt.configPath)
			if tt.wantError {
				if err == nil {
					t.Errorf("LoadConfiguration() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("LoadConfiguration() error = %v", err)
				return
			}
			if config == nil {
				t.Errorf("LoadConfiguration() returned nil config")
			}
		})
	}
}

func TestLoadConfigurationStructure(t *testing.T) {
	config, err := LoadConfigurationFromReader(strings.NewReader(exampleDeal))
	if err != nil {
		t.Fatalf("LoadConfigurationFromReader() error = %v", err)
	}

	if config.Logging.Level != "debug" || config.Logging.Format != "console" {
		t.Errorf("unexpected logging config %+v", config.Logging)
	}
	if config.Output.Format != "csv" {
		t.Errorf("Output.Format = %q, expected csv", config.Output.Format)
	}
	if config.Merchant.Name != "Corner Bakery" || config.Merchant.MonthlyRevenue != 110000 {
		t.Errorf("unexpected merchant %+v", config.Merchant)
	}
	if config.Settings.Rate != 1.5 || config.Settings.FeePercent != 0.10 {
		t.Errorf("unexpected settings %+v", config.Settings)
	}
	if len(config.Settings.EarlyPayOptions) != 1 || config.Settings.EarlyPayOptions[0].DaysAfterFalloff != 30 {
		t.Errorf("unexpected early pay options %+v", config.Settings.EarlyPayOptions)
	}
	if config.Settings.TermDays != nil || config.Settings.DailyPaymentOverride != nil {
		t.Error("absent term and override should stay nil")
	}

	if len(config.Positions) != 4 {
		t.Fatalf("expected 4 positions, got %d", len(config.Positions))
	}
	if config.Positions[0].Balance == nil || *config.Positions[0].Balance != 50000 {
		t.Errorf("position 1 balance not loaded")
	}
	if config.Positions[1].Balance != nil {
		t.Errorf("position 2 balance should be unknown")
	}
	if config.Positions[1].FundedDate != "2026-01-05" {
		t.Errorf("FundedDate = %q, expected 2026-01-05", config.Positions[1].FundedDate)
	}
	if !config.Positions[0].Included() {
		t.Error("includeInReverse should default to true")
	}
	if config.Positions[2].Included() {
		t.Error("explicit includeInReverse: false was ignored")
	}
	if !config.Positions[3].IsOurPosition {
		t.Error("isOurPosition was not loaded")
	}
}

func TestLoadConfigurationUnquotedDates(t *testing.T) {
	unquoted := strings.NewReplacer(`"2026-01-12"`, "2026-01-12", `"2026-01-05"`, "2026-01-05").Replace(exampleDeal)

	config, err := LoadConfigurationFromReader(strings.NewReader(unquoted))
	if err != nil {
		t.Fatalf("LoadConfigurationFromReader() error = %v", err)
	}
	if config.AsOf != "2026-01-12" {
		t.Errorf("AsOf = %q, expected 2026-01-12", config.AsOf)
	}
	if config.Positions[1].FundedDate != "2026-01-05" {
		t.Errorf("FundedDate = %q, expected 2026-01-05", config.Positions[1].FundedDate)
	}

	path := writeDeal(t, unquoted)
	if _, err := LoadConfiguration(path); err != nil {
		t.Errorf("LoadConfiguration() error = %v", err)
	}
}

func TestToInputWithFixedTime(t *testing.T) {
	config, err := LoadConfigurationFromReader(strings.NewReader(exampleDeal))
	if err != nil {
		t.Fatalf("LoadConfigurationFromReader() error = %v", err)
	}

	in, err := config.ToInputWithFixedTime(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ToInputWithFixedTime() error = %v", err)
	}
	if !in.AsOf.Equal(datetime.MustParseDate("2026-01-12")) {
		t.Errorf("AsOf = %s, expected the configured 2026-01-12", in.AsOf)
	}
	if in.MonthlyRevenue != 110000 {
		t.Errorf("MonthlyRevenue = %.2f, expected 110000", in.MonthlyRevenue)
	}
	if in.Settings.BrokerCommission != 0.04 || len(in.Settings.EarlyPayOptions) != 1 {
		t.Errorf("unexpected settings %+v", in.Settings)
	}
	if len(in.Positions) != 4 {
		t.Fatalf("expected 4 positions, got %d", len(in.Positions))
	}
	if in.Positions[1].FundedDate == nil || in.Positions[1].FundedDate.Format(DateLayout) != "2026-01-05" {
		t.Errorf("funded date was not parsed: %v", in.Positions[1].FundedDate)
	}
	if !in.Positions[0].IncludeInReverse || in.Positions[2].IncludeInReverse {
		t.Error("inclusion flags were not converted")
	}
}

func TestAsOfDefaultsToFixedTime(t *testing.T) {
	config := &Configuration{}
	fixed := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)

	asOf, err := config.AsOfDateWithFixedTime(fixed)
	if err != nil {
		t.Fatalf("AsOfDateWithFixedTime() error = %v", err)
	}
	if asOf.Format(DateLayout) != "2026-03-04" || asOf.Hour() != 0 {
		t.Errorf("asOf = %s, expected the start of 2026-03-04", asOf)
	}

	config.AsOf = "03/04/2026"
	if _, err := config.AsOfDateWithFixedTime(fixed); err == nil {
		t.Error("expected an error for a malformed asOf")
	}
}

func TestToPositionInvalidFundedDate(t *testing.T) {
	p := Position{ID: 9, Entity: "Broken", DailyPayment: 10, FundedDate: "last tuesday"}
	if _, err := p.ToPosition(); err == nil {
		t.Error("expected an error for an invalid fundedDate")
	}
}

func TestToSettingsDefaultsFeeSchedule(t *testing.T) {
	s := Settings{Rate: 1.4}.ToSettings()
	if s.FeeSchedule != "average" {
		t.Errorf("FeeSchedule = %q, expected average", s.FeeSchedule)
	}
}

func TestValidateConfiguration(t *testing.T) {
	config, err := LoadConfigurationFromReader(strings.NewReader(exampleDeal))
	if err != nil {
		t.Fatalf("LoadConfigurationFromReader() error = %v", err)
	}
	if warnings := config.ValidateConfigurationWithFixedTime(time.Now()); len(warnings) != 0 {
		t.Errorf("expected no warnings for the example deal, got %v", warnings)
	}

	manual := 1000.0
	config.Positions[1].Balance = &manual
	config.Settings.Rate = 0.95
	config.Positions = append(config.Positions, Position{ID: 1, Entity: "Duplicate", DailyPayment: 10})

	warnings := config.ValidateConfigurationWithFixedTime(time.Now())
	expected := []string{"Factor rate", "more than once", "no known balance", "disagrees with the funded-date estimate"}
	if len(warnings) != len(expected) {
		t.Fatalf("expected %d warnings, got %d: %v", len(expected), len(warnings), warnings)
	}
	for i, want := range expected {
		if !strings.Contains(warnings[i], want) {
			t.Errorf("warning %d = %q, expected it to mention %q", i, warnings[i], want)
		}
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	config, err := LoadConfigurationFromReader(strings.NewReader(exampleDeal))
	if err != nil {
		t.Fatalf("LoadConfigurationFromReader() error = %v", err)
	}
	data, err := config.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	reloaded, err := LoadConfigurationFromReader(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("reloading marshaled config: %v", err)
	}
	if len(reloaded.Positions) != 4 || reloaded.Positions[2].Included() || reloaded.Merchant.Name != "Corner Bakery" {
		t.Errorf("marshaled config did not round trip:\n%s", data)
	}
}
