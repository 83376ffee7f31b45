package bot

import (
	"strings"
	"testing"
)

func TestApprovalUsageNamesInvokedCommand(t *testing.T) {
	got := approvalUsage("/reject")
	if !strings.Contains(got, "/reject") || strings.Contains(got, "/approve") {
		t.Fatalf("usage for /reject must name /reject, got %q", got)
	}
	got = approvalUsage("/approve")
	if !strings.Contains(got, "/approve") {
		t.Fatalf("usage for /approve must name /approve, got %q", got)
	}
}
