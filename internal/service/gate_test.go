package service

import (
	"context"
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/groupwarden/internal/domain"
)

func TestIsUserApprovedPaths(t *testing.T) {
	users := newFakeUsers()
	gate := NewGate(users, newFakeGroups(), []int64{10})
	ctx := context.Background()

	if !gate.IsUserApproved(ctx, 10) {
		t.Fatal("allowlisted id must be approved")
	}
	if gate.IsUserApproved(ctx, 20) {
		t.Fatal("unknown id must not be approved")
	}

	users.byID[20] = &domain.User{ID: 20, IsApproved: true}
	if !gate.IsUserApproved(ctx, 20) {
		t.Fatal("stored approved user must pass")
	}

	users.byID[30] = &domain.User{ID: 30, IsAdmin: true}
	if !gate.IsUserApproved(ctx, 30) {
		t.Fatal("stored admin user must pass")
	}

	users.byID[40] = &domain.User{ID: 40}
	if gate.IsUserApproved(ctx, 40) {
		t.Fatal("plain stored user must not pass")
	}
}

func TestEnsureUserCreatesOnFirstContact(t *testing.T) {
	users := newFakeUsers()
	gate := NewGate(users, newFakeGroups(), []int64{10})
	ctx := context.Background()

	u, err := gate.EnsureUser(ctx, &tele.User{ID: 55, FirstName: "Bob", Username: "bob"})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if u.IsApproved {
		t.Fatal("non-allowlisted user must start unapproved")
	}

	admin, err := gate.EnsureUser(ctx, &tele.User{ID: 10, FirstName: "Root"})
	if err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if !admin.IsApproved || !admin.IsAdmin {
		t.Fatal("allowlisted user must be created pre-approved")
	}
}

func TestApprovalWorkflow(t *testing.T) {
	users := newFakeUsers()
	gate := NewGate(users, newFakeGroups(), []int64{10})
	ctx := context.Background()

	if _, err := gate.EnsureUser(ctx, &tele.User{ID: 70, FirstName: "Eve"}); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	u, pending, err := gate.RequestApproval(ctx, 70)
	if err != nil || pending {
		t.Fatalf("first request: pending=%v err=%v", pending, err)
	}
	if u.RequestedAt == nil {
		t.Fatal("requested_at must be set")
	}

	if _, pending, err = gate.RequestApproval(ctx, 70); err != nil || !pending {
		t.Fatalf("second request should report pending, got pending=%v err=%v", pending, err)
	}

	list, err := gate.PendingRequests(ctx)
	if err != nil || len(list) != 1 || list[0].ID != 70 {
		t.Fatalf("pending list: %v %v", list, err)
	}

	approved, err := gate.Approve(ctx, 10, 70)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !approved.IsApproved || approved.RequestedAt != nil || approved.ApprovedBy == nil || *approved.ApprovedBy != 10 {
		t.Fatalf("unexpected approved record: %+v", approved)
	}

	if _, err := gate.Approve(ctx, 10, 70); !errors.Is(err, ErrAlreadyApproved) {
		t.Fatalf("re-approve should report ErrAlreadyApproved, got %v", err)
	}
}

func TestRejectClearsRequest(t *testing.T) {
	users := newFakeUsers()
	gate := NewGate(users, newFakeGroups(), nil)
	ctx := context.Background()

	now := time.Now()
	users.byID[80] = &domain.User{ID: 80, RequestedAt: &now}

	u, err := gate.Reject(ctx, 10, 80)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if u.RequestedAt != nil || u.IsApproved {
		t.Fatalf("reject must clear the request without approving: %+v", u)
	}
}

func TestEnsureGroupAutoApproval(t *testing.T) {
	users := newFakeUsers()
	groups := newFakeGroups()
	gate := NewGate(users, groups, []int64{10})
	ctx := context.Background()

	g, ok, err := gate.EnsureGroup(ctx, -100, "Ops", 10)
	if err != nil || !ok {
		t.Fatalf("allowlisted adder must auto-approve: ok=%v err=%v", ok, err)
	}
	if !g.IsApproved || g.AddedBy != 10 {
		t.Fatalf("unexpected group: %+v", g)
	}

	_, ok, err = gate.EnsureGroup(ctx, -200, "Strangers", 99)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if ok {
		t.Fatal("unapproved requester must not approve the group")
	}

	// Once the requester is approved, re-entry approves the stored group.
	users.byID[99] = &domain.User{ID: 99, IsApproved: true}
	_, ok, err = gate.EnsureGroup(ctx, -200, "Strangers", 99)
	if err != nil || !ok {
		t.Fatalf("approved requester must approve existing group: ok=%v err=%v", ok, err)
	}
}

func TestSeedAdminKeepsStoredProfile(t *testing.T) {
	users := newFakeUsers()
	gate := NewGate(users, newFakeGroups(), []int64{10})
	ctx := context.Background()

	last := "Ops"
	handle := "alice"
	users.byID[10] = &domain.User{
		ID:        10,
		FirstName: "Alice",
		LastName:  &last,
		Username:  &handle,
	}

	u, err := gate.SeedAdmin(ctx, 10)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !u.IsAdmin || !u.IsApproved || u.ApprovedAt == nil {
		t.Fatalf("seed must raise the admin flags: %+v", u)
	}
	if u.FirstName != "Alice" || u.LastName == nil || *u.LastName != "Ops" || u.Username == nil || *u.Username != "alice" {
		t.Fatalf("seed must not touch the stored profile: %+v", u)
	}

	// A second startup is a no-op on an already seeded row.
	again, err := gate.SeedAdmin(ctx, 10)
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if again.FirstName != "Alice" || again.Username == nil || *again.Username != "alice" {
		t.Fatalf("reseed must not touch the stored profile: %+v", again)
	}
}

func TestSeedAdminCreatesMissingRow(t *testing.T) {
	users := newFakeUsers()
	gate := NewGate(users, newFakeGroups(), []int64{10})

	u, err := gate.SeedAdmin(context.Background(), 10)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !u.IsAdmin || !u.IsApproved {
		t.Fatalf("fresh seed row must be pre-approved: %+v", u)
	}
	if _, ok := users.byID[10]; !ok {
		t.Fatal("seed must persist the row")
	}
}
