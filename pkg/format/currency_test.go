package format

import "testing"

func TestCurrency(t *testing.T) {
	tests := map[float64]string{
		0:           "$0.00",
		5:           "$5.00",
		1234.5:      "$1,234.50",
		-1234.567:   "-$1,234.57",
		55555.5555:  "$55,555.56",
		1000000:     "$1,000,000.00",
		-0.001:      "$0.00",
		83333.33333: "$83,333.33",
	}

	for input, expected := range tests {
		if got := Currency(input); got != expected {
			t.Errorf("Currency(%v) = %s, expected %s", input, got, expected)
		}
	}
}

func TestWholeCurrency(t *testing.T) {
	tests := map[float64]string{
		55555.5555: "$55,556",
		350:        "$350",
		-2500.4:    "-$2,500",
		999.5:      "$1,000",
	}

	for input, expected := range tests {
		if got := WholeCurrency(input); got != expected {
			t.Errorf("WholeCurrency(%v) = %s, expected %s", input, got, expected)
		}
	}
}

func TestPercentAndFactor(t *testing.T) {
	if got := Percent(7.7); got != "7.70%" {
		t.Errorf("Percent(7.7) = %s", got)
	}
	if got := Factor(1.499); got != "1.499" {
		t.Errorf("Factor(1.499) = %s", got)
	}
	if got := Factor(1.5); got != "1.500" {
		t.Errorf("Factor(1.5) = %s", got)
	}
}
