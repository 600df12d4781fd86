package health

import (
	"sync"
	"testing"
	"time"
)

func TestEmptyMonitorIsUnknown(t *testing.T) {
	m := NewMonitor()
	if got := m.Overall(); got != Unknown {
		t.Fatalf("Overall() = %q, want %q", got, Unknown)
	}
	s := m.Summary()
	if s.Status != Unknown {
		t.Fatalf("Summary status = %v", s.Status)
	}
	if len(s.Components) != 0 {
		t.Fatalf("components = %v, want empty", s.Components)
	}
}

func TestOverallIsWorst(t *testing.T) {
	m := NewMonitor()
	m.Update(ComponentConfig, Healthy, "")
	m.Update(ComponentUpdate, Degraded, "Could not download the newest version!")
	if got := m.Overall(); got != Degraded {
		t.Fatalf("Overall = %q, want degraded", got)
	}
	m.Update(ComponentMetrics, Unhealthy, "submit failed")
	if got := m.Overall(); got != Unhealthy {
		t.Fatalf("Overall = %q, want unhealthy", got)
	}
}

func TestFailuresCountAndReset(t *testing.T) {
	m := NewMonitor()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	m.Update(ComponentMetrics, Degraded, "timeout")
	m.Update(ComponentMetrics, Degraded, "timeout")
	c, ok := m.Get(ComponentMetrics)
	if !ok || c.Failures != 2 || !c.UpdatedAt.Equal(fixed) {
		t.Fatalf("check = %+v", c)
	}

	m.Update(ComponentMetrics, Healthy, "")
	c, _ = m.Get(ComponentMetrics)
	if c.Failures != 0 {
		t.Fatalf("Failures = %d after healthy report", c.Failures)
	}
}

func TestAllSorted(t *testing.T) {
	m := NewMonitor()
	m.Update("update", Healthy, "")
	m.Update("config", Healthy, "")
	m.Update("metrics", Healthy, "")
	all := m.All()
	if len(all) != 3 || all[0].Name != "config" || all[2].Name != "update" {
		t.Fatalf("All = %+v", all)
	}
}

func TestConcurrentUpdates(t *testing.T) {
	m := NewMonitor()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				m.Update(ComponentUpdate, Healthy, "")
			} else {
				m.Summary()
			}
		}(i)
	}
	wg.Wait()
	if _, ok := m.Get(ComponentUpdate); !ok {
		t.Fatal("update check missing")
	}
}

func TestSinceTracksStatusChanges(t *testing.T) {
	m := NewMonitor()
	clock := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	m.Update(ComponentUpdate, Degraded, "Could not download the newest version!")
	first := clock
	clock = clock.Add(time.Minute)
	m.Update(ComponentUpdate, Degraded, "Could not download the newest version!")

	c, _ := m.Get(ComponentUpdate)
	if !c.Since.Equal(first) || !c.UpdatedAt.Equal(clock) {
		t.Fatalf("repeated status moved Since: %+v", c)
	}

	clock = clock.Add(time.Minute)
	m.Update(ComponentUpdate, Healthy, "")
	c, _ = m.Get(ComponentUpdate)
	if !c.Since.Equal(clock) {
		t.Fatalf("transition did not reset Since: %+v", c)
	}
}

func TestSummaryComponents(t *testing.T) {
	m := NewMonitor()
	m.Update(ComponentConfig, Healthy, "")
	m.Update(ComponentMetrics, Degraded, "timeout")
	s := m.Summary()
	if s.Status != Degraded || s.Components[ComponentMetrics] != Degraded || s.Components[ComponentConfig] != Healthy {
		t.Fatalf("Summary = %+v", s)
	}
}

func TestStatusWorse(t *testing.T) {
	if !Unhealthy.Worse(Degraded) || !Degraded.Worse(Healthy) || !Healthy.Worse(Unknown) {
		t.Fatal("severity order wrong")
	}
	if Unknown.Worse(Healthy) {
		t.Fatal("unknown should rank below healthy")
	}
}
