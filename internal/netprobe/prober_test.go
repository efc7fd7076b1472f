package netprobe

import (
	"io"
	"log/slog"
	"testing"

	"github.com/mintya/auto-proxy/internal/cron"
	"github.com/mintya/auto-proxy/internal/obs"
	"github.com/mintya/auto-proxy/internal/security"
)

var _ cron.Job = (*Prober)(nil)

func newTestProber() *Prober {
	sink := obs.New(slog.NewTextHandler(io.Discard, nil), security.NewRedactor(), security.NewCredentialStore())
	return New(sink)
}

func TestProber_NameAndSchedule(t *testing.T) {
	t.Parallel()
	p := newTestProber()
	if p.Name() != "netprobe" {
		t.Errorf("Name() = %q, want netprobe", p.Name())
	}
	if p.Schedule() != "@every 30s" {
		t.Errorf("Schedule() = %q, want @every 30s", p.Schedule())
	}
}

func TestProber_LastDefaultsToZeroValue(t *testing.T) {
	t.Parallel()
	p := newTestProber()
	got := p.Last()
	if got.Online || got.DNSWorking || got.LatencyMS != 0 {
		t.Errorf("Last() before any Run() = %+v, want zero value", got)
	}
}
