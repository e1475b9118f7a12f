package lease

import (
	"testing"
	"time"

	"calyx/internal/calyxmodel"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(t.TempDir(), []byte("test-secret"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestIssueAndVerifyLeaseRequiresBothRoles(t *testing.T) {
	m := newTestManager(t)
	l, err := m.IssueLease("intent-1", "scheduler", calyxmodel.LeaseLimits{WallclockTimeoutS: 60}, time.Hour)
	if err != nil {
		t.Fatalf("IssueLease: %v", err)
	}

	res, err := m.VerifyLease(l.LeaseID)
	if err != nil {
		t.Fatalf("VerifyLease: %v", err)
	}
	if res.Usable {
		t.Fatalf("expected not usable before any cosignatures")
	}

	humanSig := Sign(m.Secret, l.LeaseID, calyxmodel.RoleHuman, "operator1")
	if err := m.AddCosignature(l.LeaseID, calyxmodel.RoleHuman, "operator1", humanSig); err != nil {
		t.Fatalf("AddCosignature human: %v", err)
	}
	res, _ = m.VerifyLease(l.LeaseID)
	if res.Usable {
		t.Fatalf("expected not usable with only human cosigner, reason=%s", res.Reason)
	}
	if res.Reason != "missing_agent_cosignature" {
		t.Fatalf("expected missing_agent_cosignature, got %s", res.Reason)
	}

	agentSig := Sign(m.Secret, l.LeaseID, calyxmodel.RoleAgent, "cp14")
	if err := m.AddCosignature(l.LeaseID, calyxmodel.RoleAgent, "cp14", agentSig); err != nil {
		t.Fatalf("AddCosignature agent: %v", err)
	}
	res, err = m.VerifyLease(l.LeaseID)
	if err != nil {
		t.Fatalf("VerifyLease: %v", err)
	}
	if !res.Usable {
		t.Fatalf("expected usable with both cosigners, reason=%s", res.Reason)
	}
}

func TestForgedSignatureRejected(t *testing.T) {
	m := newTestManager(t)
	l, _ := m.IssueLease("intent-2", "scheduler", calyxmodel.LeaseLimits{}, time.Hour)
	err := m.AddCosignature(l.LeaseID, calyxmodel.RoleHuman, "operator1", "not-a-real-signature")
	if err == nil {
		t.Fatalf("expected error for forged signature")
	}
}

func TestExpiredLeaseNotUsable(t *testing.T) {
	m := newTestManager(t)
	l, _ := m.IssueLease("intent-3", "scheduler", calyxmodel.LeaseLimits{}, -time.Minute)
	humanSig := Sign(m.Secret, l.LeaseID, calyxmodel.RoleHuman, "op")
	agentSig := Sign(m.Secret, l.LeaseID, calyxmodel.RoleAgent, "cp14")
	_ = m.AddCosignature(l.LeaseID, calyxmodel.RoleHuman, "op", humanSig)
	_ = m.AddCosignature(l.LeaseID, calyxmodel.RoleAgent, "cp14", agentSig)

	res, err := m.VerifyLease(l.LeaseID)
	if err != nil {
		t.Fatalf("VerifyLease: %v", err)
	}
	if res.Usable {
		t.Fatalf("expected expired lease to be unusable")
	}
}

func TestDuplicateCosignerReplaces(t *testing.T) {
	m := newTestManager(t)
	l, _ := m.IssueLease("intent-4", "scheduler", calyxmodel.LeaseLimits{}, time.Hour)
	sig1 := Sign(m.Secret, l.LeaseID, calyxmodel.RoleHuman, "op")
	_ = m.AddCosignature(l.LeaseID, calyxmodel.RoleHuman, "op", sig1)
	_ = m.AddCosignature(l.LeaseID, calyxmodel.RoleHuman, "op", sig1)

	got, err := m.Get(l.LeaseID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	count := 0
	for _, c := range got.Cosigners {
		if c.Role == calyxmodel.RoleHuman && c.ID == "op" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 cosigner entry for duplicate (role,id), got %d", count)
	}
}

func TestRevokedLeaseCannotBeReused(t *testing.T) {
	m := newTestManager(t)
	l, _ := m.IssueLease("intent-5", "scheduler", calyxmodel.LeaseLimits{}, time.Hour)
	if err := m.ExpireLease(l.LeaseID); err != nil {
		t.Fatalf("ExpireLease: %v", err)
	}
	sig := Sign(m.Secret, l.LeaseID, calyxmodel.RoleHuman, "op")
	if err := m.AddCosignature(l.LeaseID, calyxmodel.RoleHuman, "op", sig); err == nil {
		t.Fatalf("expected error cosigning a revoked lease")
	}
	res, err := m.VerifyLease(l.LeaseID)
	if err != nil {
		t.Fatalf("VerifyLease: %v", err)
	}
	if res.Usable || res.Reason != "revoked" {
		t.Fatalf("expected revoked/unusable, got %+v", res)
	}
}

func TestAutoRejectIfHumanMissing(t *testing.T) {
	m := newTestManager(t)
	l, _ := m.IssueLease("intent-6", "scheduler", calyxmodel.LeaseLimits{}, -time.Minute)
	rejected, err := m.AutoRejectIfHumanMissing(l.LeaseID)
	if err != nil {
		t.Fatalf("AutoRejectIfHumanMissing: %v", err)
	}
	if !rejected {
		t.Fatalf("expected auto-reject for expired lease with no human cosigner")
	}
	got, _ := m.Get(l.LeaseID)
	if got.Status != calyxmodel.LeaseRevoked {
		t.Fatalf("expected status revoked, got %s", got.Status)
	}
}
