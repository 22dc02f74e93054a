package harvester

import "testing"

func TestDutyCycleIsPositive(t *testing.T) {
	if dutyCycle <= 0 {
		t.Fatal("dutyCycle must be positive or rate.Every produces an unlimited limiter")
	}
}
