package metrics

import (
	"context"
	"testing"
)

func TestGetHostMetrics(t *testing.T) {
	metrics, err := GetHostMetrics(context.Background())
	if err != nil {
		t.Fatalf("GetHostMetrics returned error: %v", err)
	}
	if metrics == nil {
		t.Fatal("GetHostMetrics returned nil metrics")
	}

	t.Run("CPU", func(t *testing.T) {
		if metrics.CPU.UsagePercent < 0 || metrics.CPU.UsagePercent > 100 {
			t.Errorf("CPU usage percent should be between 0 and 100, got %f", metrics.CPU.UsagePercent)
		}
		if metrics.CPU.Cores <= 0 {
			t.Errorf("CPU cores should be > 0, got %d", metrics.CPU.Cores)
		}
	})

	t.Run("Memory", func(t *testing.T) {
		if metrics.Memory.Total == 0 {
			t.Error("Memory total should not be 0")
		}
		if metrics.Memory.Used > metrics.Memory.Total {
			t.Error("Memory used should not exceed total")
		}
	})

	t.Run("Uptime", func(t *testing.T) {
		if metrics.Uptime <= 0 {
			t.Errorf("Uptime should be positive, got %d", metrics.Uptime)
		}
	})

	t.Run("LoadAvg", func(t *testing.T) {
		// Not available on every platform; check shape only.
		if len(metrics.LoadAvg) > 0 && len(metrics.LoadAvg) != 3 {
			t.Errorf("LoadAvg should have 3 values, got %d", len(metrics.LoadAvg))
		}
	})
}

func TestGetHostMetrics_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := GetHostMetrics(ctx); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestGetPathUsage(t *testing.T) {
	usage, err := GetPathUsage(t.TempDir())
	if err != nil {
		t.Fatalf("GetPathUsage returned error: %v", err)
	}
	if usage.Total == 0 {
		t.Error("expected non-zero filesystem size")
	}
	if usage.UsedPercent < 0 || usage.UsedPercent > 100 {
		t.Errorf("used percent should be between 0 and 100, got %f", usage.UsedPercent)
	}
}

func TestIsVirtualFilesystem(t *testing.T) {
	tests := []struct {
		fstype   string
		expected bool
	}{
		{"ext4", false},
		{"xfs", false},
		{"btrfs", false},
		{"tmpfs", true},
		{"proc", true},
		{"sysfs", true},
		{"cgroup2", true},
		{"overlay", true},
	}

	for _, tc := range tests {
		t.Run(tc.fstype, func(t *testing.T) {
			if got := isVirtualFilesystem(tc.fstype); got != tc.expected {
				t.Errorf("isVirtualFilesystem(%q) = %v, expected %v", tc.fstype, got, tc.expected)
			}
		})
	}
}
