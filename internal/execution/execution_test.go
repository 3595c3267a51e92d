package execution

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSubmitLogsOrder(t *testing.T) {
	var buf bytes.Buffer
	exec := NewExecutor(zerolog.New(&buf))

	err := exec.Submit(Order{Symbol: "BTCUSDT", Side: Buy, Qty: 0.5, Price: 50000, Reason: "alpha=0.8"})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "submit order") {
		t.Fatalf("expected submit order log, got %s", out)
	}
	if !strings.Contains(out, "BTCUSDT") || !strings.Contains(out, "BUY") {
		t.Fatalf("log should carry symbol and side, got %s", out)
	}
}
